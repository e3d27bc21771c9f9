package domain

import (
	"fmt"
	"strconv"
)

// RecordIDKind discriminates numeric and string identifiers.
type RecordIDKind uint8

// Identifier kinds.
const (
	// RecordIDNone marks the zero RecordID.
	RecordIDNone RecordIDKind = iota

	// RecordIDNumeric is an integer primary key.
	RecordIDNumeric

	// RecordIDString is a string primary key (e.g. an info-block type code).
	RecordIDString
)

// RecordID identifies one entity instance within one live database.
// The zero value means "no identifier".
type RecordID struct {
	kind RecordIDKind
	num  int64
	str  string
}

// NumericID creates a numeric identifier.
func NumericID(v int64) RecordID {
	return RecordID{kind: RecordIDNumeric, num: v}
}

// StringID creates a string identifier.
func StringID(v string) RecordID {
	return RecordID{kind: RecordIDString, str: v}
}

// Kind returns the identifier kind.
func (id RecordID) Kind() RecordIDKind {
	return id.kind
}

// IsZero reports whether the identifier is absent.
func (id RecordID) IsZero() bool {
	return id.kind == RecordIDNone
}

// Int returns the numeric value, or 0 for string identifiers.
func (id RecordID) Int() int64 {
	return id.num
}

// Value returns the identifier as stored in the live database.
func (id RecordID) Value() any {
	switch id.kind {
	case RecordIDNumeric:
		return id.num
	case RecordIDString:
		return id.str
	default:
		return nil
	}
}

// Equal compares kind and value.
func (id RecordID) Equal(other RecordID) bool {
	return id == other
}

// String returns the identifier value as text.
func (id RecordID) String() string {
	switch id.kind {
	case RecordIDNumeric:
		return strconv.FormatInt(id.num, 10)
	case RecordIDString:
		return id.str
	default:
		return ""
	}
}

// GoString implements fmt.GoStringer for readable test failures.
func (id RecordID) GoString() string {
	switch id.kind {
	case RecordIDNumeric:
		return fmt.Sprintf("NumericID(%d)", id.num)
	case RecordIDString:
		return fmt.Sprintf("StringID(%q)", id.str)
	default:
		return "RecordID{}"
	}
}
