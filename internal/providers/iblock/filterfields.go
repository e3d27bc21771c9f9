package iblock

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

const (
	propertyMarker = "PROPERTY_"
	notRef         = "NOT_REF"
)

var (
	propertyField = regexp.MustCompile(`^([^_]*_?)PROPERTY_([^_\s]+)(_?.*)$`)
	customField   = regexp.MustCompile(`^(UF_[A-Z0-9_]+)(_?.*)$`)
)

// FieldRef is the classification of one filter field name.
type FieldRef interface {
	fieldRef()
}

// FieldNotMatched is a field that references nothing.
type FieldNotMatched struct{}

// FieldProperty is a field on an info-block property:
// Prefix + "PROPERTY_" + Ref + Suffix. Ref is a live ID or a property xmlId.
type FieldProperty struct {
	Prefix string
	Ref    string
	Suffix string
}

// FieldCustom is a field on a custom (UF) field.
type FieldCustom struct {
	Name string
}

func (FieldNotMatched) fieldRef() {}
func (FieldProperty) fieldRef()   {}
func (FieldCustom) fieldRef()     {}

// Name rebuilds the field name.
func (f FieldProperty) Name() string {
	return f.Prefix + propertyMarker + f.Ref + f.Suffix
}

// ClassifyField parses a filter field name.
func ClassifyField(name string) FieldRef {
	if m := propertyField.FindStringSubmatch(name); m != nil && m[2] != "" {
		return FieldProperty{Prefix: m[1], Ref: m[2], Suffix: m[3]}
	}
	if m := customField.FindStringSubmatch(name); m != nil {
		if uf := strings.TrimRight(m[1], "_"); uf != "UF" {
			return FieldCustom{Name: uf}
		}
	}
	return FieldNotMatched{}
}

type propertyInfo struct {
	list bool
}

type customInfo struct {
	enumeration bool
}

// fieldMapper translates the references found in a filter blob in one
// direction. ok is false when the reference is unknown and kept as is.
type fieldMapper interface {
	property(ctx context.Context, ref FieldProperty) (out FieldProperty, info propertyInfo, ok bool, err error)
	enum(ctx context.Context, value string) (string, error)
	field(ctx context.Context, name string) (info customInfo, ok bool, err error)
	fieldEnum(ctx context.Context, value string) (string, error)
}

// fieldClassifier is implemented by mappers that know more property keys
// than ClassifyField can recognise.
type fieldClassifier interface {
	classify(name string) FieldRef
}

func classify(m fieldMapper, name string) FieldRef {
	if c, ok := m.(fieldClassifier); ok {
		return c.classify(name)
	}
	return ClassifyField(name)
}

// matchProperty splits name around the longest key in keys that follows
// "PROPERTY_" and ends the name or is followed by "_". The text before
// the marker must look like a ClassifyField prefix.
func matchProperty(name string, keys []string) (FieldProperty, bool) {
	var (
		best  FieldProperty
		found bool
	)
	for i := strings.Index(name, propertyMarker); i >= 0; {
		prefix := name[:i]
		if !strings.Contains(strings.TrimSuffix(prefix, "_"), "_") {
			tail := name[i+len(propertyMarker):]
			for _, k := range keys {
				if k == "" || !strings.HasPrefix(tail, k) || (found && len(k) <= len(best.Ref)) {
					continue
				}
				if rest := tail[len(k):]; rest == "" || rest[0] == '_' {
					best, found = FieldProperty{Prefix: prefix, Ref: k, Suffix: rest}, true
				}
			}
		}
		next := strings.Index(name[i+1:], propertyMarker)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return best, found
}

// translateTree rewrites property and custom field references in a decoded
// filter blob. The input is not modified.
func translateTree(ctx context.Context, v any, m fieldMapper) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			var (
				tr  any
				err error
			)
			rows, isRows := e.(string)
			fields, isFields := e.(map[string]any)
			switch {
			case k == "filter_rows" && isRows:
				tr, err = translateRows(ctx, rows, m)
			case k == "fields" && isFields:
				tr, err = translateFields(ctx, fields, m)
			default:
				tr, err = translateTree(ctx, e, m)
			}
			if err != nil {
				return nil, err
			}
			out[k] = tr
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			var err error
			if out[i], err = translateTree(ctx, e, m); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return v, nil
	}
}

// translateRows renames the property entries of a comma separated list.
func translateRows(ctx context.Context, rows string, m fieldMapper) (string, error) {
	if rows == "" {
		return rows, nil
	}
	names := strings.Split(rows, ",")
	for i, name := range names {
		ref, ok := classify(m, name).(FieldProperty)
		if !ok {
			continue
		}
		out, _, found, err := m.property(ctx, ref)
		if err != nil {
			return "", err
		}
		if found {
			names[i] = out.Name()
		}
	}
	return strings.Join(names, ","), nil
}

func translateFields(ctx context.Context, fields map[string]any, m fieldMapper) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		newName, newValue := name, domain.CloneValue(value)

		switch ref := classify(m, name).(type) {
		case FieldProperty:
			mapped, info, ok, err := m.property(ctx, ref)
			if err != nil {
				return nil, err
			}
			if ok {
				newName = mapped.Name()
				if info.list {
					if newValue, err = translateValues(ctx, newValue, m.enum); err != nil {
						return nil, err
					}
				}
			}
		case FieldCustom:
			info, ok, err := m.field(ctx, ref.Name)
			if err != nil {
				return nil, err
			}
			if _, isList := newValue.([]any); ok && info.enumeration && isList {
				if newValue, err = translateValues(ctx, newValue, m.fieldEnum); err != nil {
					return nil, err
				}
			}
		}

		out[newName] = newValue
	}
	return out, nil
}

// translateValues maps a single value or each value of a list.
// Empty values and NOT_REF are kept.
func translateValues(ctx context.Context, v any, fn func(context.Context, string) (string, error)) (any, error) {
	one := func(e any) (any, error) {
		switch e.(type) {
		case map[string]any, []any, nil:
			return e, nil
		}
		s := domain.ScalarString(e)
		if s == "" || s == notRef {
			return e, nil
		}
		return fn(ctx, s)
	}

	list, ok := v.([]any)
	if !ok {
		return one(v)
	}
	out := make([]any, len(list))
	for i, e := range list {
		var err error
		if out[i], err = one(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}
