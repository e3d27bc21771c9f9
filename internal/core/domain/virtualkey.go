package domain

import (
	"fmt"
	"slices"
	"strings"
)

// VirtualKeyCodec joins and splits the components of a synthesized xmlId.
//
// Components listed in Escaped have every Delimiter replaced by Substitute on
// encode and restored on decode, so they must not contain Substitute
// themselves. Other components must not contain Delimiter, except the last one
// when Tail is set: it takes the remainder of the key on decode.
type VirtualKeyCodec struct {
	Kind       string
	Delimiter  byte
	Substitute byte
	Arity      int
	Escaped    []int
	Tail       bool
}

// Encode joins components into a key.
func (c VirtualKeyCodec) Encode(parts []string) (string, error) {
	if len(parts) != c.Arity {
		return "", c.malformed(strings.Join(parts, string(c.Delimiter)),
			fmt.Sprintf("expected %d components, got %d", c.Arity, len(parts)))
	}

	delim := string(c.Delimiter)
	sub := string(c.Substitute)
	out := make([]string, len(parts))
	for i, p := range parts {
		switch {
		case c.isEscaped(i):
			if strings.Contains(p, sub) {
				return "", c.malformed(p, fmt.Sprintf("component %d contains reserved %q", i, sub))
			}
			out[i] = strings.ReplaceAll(p, delim, sub)
		case c.isTail(i):
			out[i] = p
		default:
			if strings.Contains(p, delim) {
				return "", c.malformed(p, fmt.Sprintf("component %d contains delimiter %q", i, delim))
			}
			out[i] = p
		}
	}
	return strings.Join(out, delim), nil
}

// Decode splits a key into exactly Arity components.
func (c VirtualKeyCodec) Decode(key string) ([]string, error) {
	delim := string(c.Delimiter)

	var parts []string
	if c.Tail {
		parts = strings.SplitN(key, delim, c.Arity)
	} else {
		parts = strings.Split(key, delim)
	}
	if len(parts) != c.Arity {
		return nil, c.malformed(key, fmt.Sprintf("expected %d components, got %d", c.Arity, len(parts)))
	}

	for _, i := range c.Escaped {
		if i >= 0 && i < len(parts) {
			parts[i] = strings.ReplaceAll(parts[i], string(c.Substitute), delim)
		}
	}
	return parts, nil
}

func (c VirtualKeyCodec) isEscaped(i int) bool {
	return slices.Contains(c.Escaped, i)
}

func (c VirtualKeyCodec) isTail(i int) bool {
	return c.Tail && i == c.Arity-1
}

func (c VirtualKeyCodec) malformed(key, reason string) error {
	return &MalformedKeyError{Kind: c.Kind, Key: key, Reason: reason}
}
