package types

import (
	"maps"
	"slices"
	"strconv"
)

// Record is the serialization unit of every cluster property.
//
// A record carries an identifier and three field maps:
//   - SimpleFields: flat string to string values
//   - ListFields: string to ordered string sequence
//   - MapFields: string to string-to-string map
//
// Records are JSON encoded with the keys "id", "simpleFields", "listFields"
// and "mapFields". A Record is not safe for concurrent mutation; components
// that share records hand out clones.
type Record struct {
	ID           string                       `json:"id"`
	SimpleFields map[string]string            `json:"simpleFields"`
	ListFields   map[string][]string          `json:"listFields"`
	MapFields    map[string]map[string]string `json:"mapFields"`
}

// NewRecord creates an empty record with the given id.
func NewRecord(id string) *Record {
	return &Record{
		ID:           id,
		SimpleFields: make(map[string]string),
		ListFields:   make(map[string][]string),
		MapFields:    make(map[string]map[string]string),
	}
}

// SimpleField returns a simple field and whether it is set.
func (r *Record) SimpleField(key string) (string, bool) {
	v, ok := r.SimpleFields[key]
	return v, ok
}

// SetSimpleField sets a simple field.
func (r *Record) SetSimpleField(key, value string) {
	if r.SimpleFields == nil {
		r.SimpleFields = make(map[string]string)
	}
	r.SimpleFields[key] = value
}

// SimpleFieldInt parses a simple field as an int, returning def when the
// field is missing or not a number.
func (r *Record) SimpleFieldInt(key string, def int) int {
	v, ok := r.SimpleFields[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

// SetSimpleFieldInt sets a simple field to the decimal form of value.
func (r *Record) SetSimpleFieldInt(key string, value int) {
	r.SetSimpleField(key, strconv.Itoa(value))
}

// SimpleFieldBool parses a simple field as a bool, returning def when the
// field is missing or malformed.
func (r *Record) SimpleFieldBool(key string, def bool) bool {
	v, ok := r.SimpleFields[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}

	return b
}

// ListField returns a list field and whether it is set.
func (r *Record) ListField(key string) ([]string, bool) {
	v, ok := r.ListFields[key]
	return v, ok
}

// SetListField sets a list field. The slice is copied.
func (r *Record) SetListField(key string, values []string) {
	if r.ListFields == nil {
		r.ListFields = make(map[string][]string)
	}
	r.ListFields[key] = slices.Clone(values)
}

// MapField returns a map field and whether it is set.
func (r *Record) MapField(key string) (map[string]string, bool) {
	v, ok := r.MapFields[key]
	return v, ok
}

// SetMapField sets a map field. The map is copied.
func (r *Record) SetMapField(key string, values map[string]string) {
	if r.MapFields == nil {
		r.MapFields = make(map[string]map[string]string)
	}
	r.MapFields[key] = maps.Clone(values)
	if r.MapFields[key] == nil {
		r.MapFields[key] = make(map[string]string)
	}
}

// SetMapFieldEntry sets one entry inside a map field, creating the field when needed.
func (r *Record) SetMapFieldEntry(field, key, value string) {
	if r.MapFields == nil {
		r.MapFields = make(map[string]map[string]string)
	}
	m, ok := r.MapFields[field]
	if !ok {
		m = make(map[string]string)
		r.MapFields[field] = m
	}
	m[key] = value
}

// Merge folds other into r.
//
// Simple fields and individual map-field entries from other overwrite those
// in r; list fields from other replace the whole list. The id of r is kept.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	for k, v := range other.SimpleFields {
		r.SetSimpleField(k, v)
	}
	for k, v := range other.ListFields {
		r.SetListField(k, v)
	}
	for field, m := range other.MapFields {
		if len(m) == 0 {
			if _, ok := r.MapFields[field]; !ok {
				r.SetMapField(field, nil)
			}
			continue
		}
		for k, v := range m {
			r.SetMapFieldEntry(field, k, v)
		}
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	c := NewRecord(r.ID)
	maps.Copy(c.SimpleFields, r.SimpleFields)
	for k, v := range r.ListFields {
		c.ListFields[k] = slices.Clone(v)
	}
	for k, v := range r.MapFields {
		c.MapFields[k] = maps.Clone(v)
		if c.MapFields[k] == nil {
			c.MapFields[k] = make(map[string]string)
		}
	}

	return c
}

// Equal reports whether r and other carry the same id and fields.
//
// Nil and empty field maps are treated as equal.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID {
		return false
	}
	if !maps.Equal(r.SimpleFields, other.SimpleFields) {
		return false
	}
	if !maps.EqualFunc(r.ListFields, other.ListFields, func(a, b []string) bool { return slices.Equal(a, b) }) {
		return false
	}

	return maps.EqualFunc(r.MapFields, other.MapFields, func(a, b map[string]string) bool { return maps.Equal(a, b) })
}
