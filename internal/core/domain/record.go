package domain

import (
	"fmt"
	"strconv"
)

// NodeKey identifies a record across environments: its kind plus its xmlId.
type NodeKey struct {
	Kind  string
	XMLID string
}

// String returns "kind:xmlId".
func (k NodeKey) String() string {
	return k.Kind + ":" + k.XMLID
}

// Record is the portable representation of one configuration entity.
//
// A record with an ID denotes an entity that exists in exactly one live
// database. A record with only an XMLID is desired state that has not yet
// been reconciled with any database.
type Record struct {
	// Kind names the provider that owns the record.
	Kind string

	// ID is the live identifier, nil until the entity is known or created.
	ID *RecordID

	// XMLID is the environment-independent key.
	XMLID string

	// Fields holds the raw field payload: scalars, nested maps, lists,
	// or opaque serialized blobs.
	Fields map[string]any

	// Dependencies maps dependency names to their references.
	Dependencies map[string]Dependency
}

// NewRecord creates an empty record of the given kind.
func NewRecord(kind, xmlID string) Record {
	return Record{
		Kind:         kind,
		XMLID:        xmlID,
		Fields:       make(map[string]any),
		Dependencies: make(map[string]Dependency),
	}
}

// Key returns the record's node key.
func (r *Record) Key() NodeKey {
	return NodeKey{Kind: r.Kind, XMLID: r.XMLID}
}

// SetID records the live identifier.
func (r *Record) SetID(id RecordID) {
	r.ID = &id
}

// LiveID returns the live identifier, or the zero RecordID.
func (r *Record) LiveID() RecordID {
	if r.ID == nil {
		return RecordID{}
	}
	return *r.ID
}

// SetField sets one raw field.
func (r *Record) SetField(name string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = value
}

// SetFields merges raw fields into the record.
func (r *Record) SetFields(fields map[string]any) {
	for k, v := range fields {
		r.SetField(k, v)
	}
}

// Field returns one raw field.
func (r *Record) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// FieldString returns a raw field as text. Missing fields are empty.
func (r *Record) FieldString(name string) string {
	v, ok := r.Fields[name]
	if !ok {
		return ""
	}
	return ScalarString(v)
}

// SetDependency attaches a dependency under the given name.
func (r *Record) SetDependency(name string, dep Dependency) {
	if r.Dependencies == nil {
		r.Dependencies = make(map[string]Dependency)
	}
	r.Dependencies[name] = dep
}

// Dependency returns the named dependency.
func (r *Record) Dependency(name string) (Dependency, bool) {
	dep, ok := r.Dependencies[name]
	return dep, ok
}

// Clone returns a deep copy of the record's maps and slices.
// Field values that are maps or lists are copied recursively.
func (r Record) Clone() Record {
	out := Record{
		Kind:         r.Kind,
		XMLID:        r.XMLID,
		Fields:       make(map[string]any, len(r.Fields)),
		Dependencies: make(map[string]Dependency, len(r.Dependencies)),
	}
	if r.ID != nil {
		id := *r.ID
		out.ID = &id
	}
	for k, v := range r.Fields {
		out.Fields[k] = CloneValue(v)
	}
	for k, d := range r.Dependencies {
		out.Dependencies[k] = d.Clone()
	}
	return out
}

// Dependency is a typed reference from a record to one or more records of
// another kind.
type Dependency struct {
	// Kind names the provider that resolves the referenced records.
	Kind string

	// Values holds the referenced xmlIds in order.
	Values []string

	// IDs holds the live identifiers matching Values, once resolved.
	IDs []RecordID
}

// NewDependency creates a dependency on the given xmlIds.
func NewDependency(kind string, values ...string) Dependency {
	return Dependency{Kind: kind, Values: values}
}

// Value returns the first referenced xmlId.
func (d Dependency) Value() string {
	if len(d.Values) == 0 {
		return ""
	}
	return d.Values[0]
}

// ID returns the first resolved identifier, or the zero RecordID.
func (d Dependency) ID() RecordID {
	if len(d.IDs) == 0 {
		return RecordID{}
	}
	return d.IDs[0]
}

// Resolved reports whether every value has a live identifier.
func (d Dependency) Resolved() bool {
	if len(d.IDs) != len(d.Values) {
		return false
	}
	for _, id := range d.IDs {
		if id.IsZero() {
			return false
		}
	}
	return true
}

// Lookup returns the resolved identifier for one referenced xmlId.
func (d Dependency) Lookup(xmlID string) (RecordID, bool) {
	for i, v := range d.Values {
		if v == xmlID && i < len(d.IDs) && !d.IDs[i].IsZero() {
			return d.IDs[i], true
		}
	}
	return RecordID{}, false
}

// Clone returns a copy that shares no slices with d.
func (d Dependency) Clone() Dependency {
	out := Dependency{Kind: d.Kind}
	if d.Values != nil {
		out.Values = append([]string(nil), d.Values...)
	}
	if d.IDs != nil {
		out.IDs = append([]RecordID(nil), d.IDs...)
	}
	return out
}

// ScalarString formats a scalar field value as text.
// Nil is empty; maps and lists fall back to fmt formatting.
func ScalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "Y"
		}
		return "N"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// CloneValue deep-copies maps and lists of a dynamically shaped value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
