package ldapdb

// Entry is one directory object of a schema: a field-name to typed-value
// map plus the DN it was loaded from or saved to. An empty DN marks an
// entry that has never been persisted.
//
// The loaded map snapshots the decoded attribute state at load or last
// save time; Save diffs current values against it.
type Entry struct {
	schema *Schema
	dn     string

	values map[string]any
	loaded map[string]any

	lastChanged []string
}

// Schema returns the declaration this entry belongs to.
func (e *Entry) Schema() *Schema {
	return e.schema
}

// DN returns the entry's distinguished name, or "" if never persisted.
func (e *Entry) DN() string {
	return e.dn
}

// LastChanged returns the field names the most recent Save modified.
func (e *Entry) LastChanged() []string {
	return append([]string(nil), e.lastChanged...)
}

// Get returns the field's typed value, or the type's zero value when
// the field is unset. Unknown field names return nil.
func (e *Entry) Get(name string) any {
	f, ok := e.schema.byName[name]
	if !ok {
		return nil
	}
	if v, ok := e.values[name]; ok {
		return v
	}
	switch f.Type {
	case Text:
		return ""
	case Integer:
		return int64(0)
	case TextList:
		return []string(nil)
	case Binary:
		return []byte(nil)
	default:
		return nil
	}
}

// Set assigns a field value, rejecting unknown fields and wrong-typed
// values with a *TypeError.
func (e *Entry) Set(name string, value any) error {
	f, err := e.schema.fieldByName(name)
	if err != nil {
		return err
	}
	switch f.Type {
	case Text:
		s, ok := value.(string)
		if !ok {
			return &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		e.values[name] = s
	case Integer:
		n, err := toInt64(value)
		if err != nil {
			return &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		e.values[name] = n
	case TextList:
		list, ok := value.([]string)
		if !ok {
			return &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		e.values[name] = append([]string(nil), list...)
	case Binary:
		b, ok := value.([]byte)
		if !ok {
			return &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		e.values[name] = append([]byte(nil), b...)
	default:
		return &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
	}
	return nil
}

// Unset clears a field so the next Save deletes its attribute.
func (e *Entry) Unset(name string) error {
	if _, err := e.schema.fieldByName(name); err != nil {
		return err
	}
	delete(e.values, name)
	return nil
}

// GetString returns a Text field's value, "" when unset.
func (e *Entry) GetString(name string) string {
	s, _ := e.Get(name).(string)
	return s
}

// SetString assigns a Text field.
func (e *Entry) SetString(name, value string) error {
	return e.Set(name, value)
}

// GetInt returns an Integer field's value, 0 when unset.
func (e *Entry) GetInt(name string) int64 {
	n, _ := e.Get(name).(int64)
	return n
}

// SetInt assigns an Integer field.
func (e *Entry) SetInt(name string, value int64) error {
	return e.Set(name, value)
}

// GetStrings returns a TextList field's values in server order.
func (e *Entry) GetStrings(name string) []string {
	list, _ := e.Get(name).([]string)
	return list
}

// SetStrings assigns a TextList field, preserving element order.
func (e *Entry) SetStrings(name string, values []string) error {
	return e.Set(name, values)
}

// GetBytes returns a Binary field's raw value.
func (e *Entry) GetBytes(name string) []byte {
	b, _ := e.Get(name).([]byte)
	return b
}

// SetBytes assigns a Binary field.
func (e *Entry) SetBytes(name string, value []byte) error {
	return e.Set(name, value)
}

// snapshot copies the current values for later diffing. Values stored
// by Set are already defensive copies, so a shallow copy suffices here
// as long as callers treat returned slices as read-only.
func (e *Entry) snapshot() map[string]any {
	snap := make(map[string]any, len(e.values))
	for name, value := range e.values {
		snap[name] = value
	}
	return snap
}
