package ldapdb

import (
	"fmt"
	"strings"

	"github.com/isometry/ldapdb/directory"
)

// Schema declares one entry type: the object classes stamped on new
// entries, the base DN searches are scoped to, and the typed fields
// mapped onto directory attributes. A Schema is immutable after
// construction apart from signal registration, and is shared by all
// entries of the type.
type Schema struct {
	objectClasses []string
	baseDN        string
	scope         directory.Scope
	fields        []Field

	byName  map[string]*Field
	byAttr  map[string]*Field // keyed by lowercased attribute name
	primary []*Field

	signals signals
}

// NewSchema validates the declaration and builds the field indexes.
func NewSchema(objectClasses []string, baseDN string, scope directory.Scope, fields []Field) (*Schema, error) {
	if len(objectClasses) == 0 {
		return nil, fmt.Errorf("ldapdb: schema requires at least one object class")
	}
	if baseDN == "" {
		return nil, fmt.Errorf("ldapdb: schema requires a base DN")
	}
	if scope != directory.ScopeSubtree && scope != directory.ScopeOneLevel {
		return nil, fmt.Errorf("ldapdb: invalid search scope %d", scope)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("ldapdb: schema requires at least one field")
	}

	s := &Schema{
		objectClasses: append([]string(nil), objectClasses...),
		baseDN:        baseDN,
		scope:         scope,
		fields:        append([]Field(nil), fields...),
		byName:        make(map[string]*Field, len(fields)),
		byAttr:        make(map[string]*Field, len(fields)),
	}

	for i := range s.fields {
		f := &s.fields[i]
		if f.Name == "" || f.Attr == "" {
			return nil, fmt.Errorf("ldapdb: field %d requires a name and an attribute", i)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("ldapdb: duplicate field name %q", f.Name)
		}
		attrKey := strings.ToLower(f.Attr)
		if _, dup := s.byAttr[attrKey]; dup {
			return nil, fmt.Errorf("ldapdb: duplicate attribute %q", f.Attr)
		}
		s.byName[f.Name] = f
		s.byAttr[attrKey] = f
		if f.PrimaryKey {
			if f.Type == Binary {
				return nil, fmt.Errorf("ldapdb: primary key field %q cannot be binary", f.Name)
			}
			s.primary = append(s.primary, f)
		}
	}
	if len(s.primary) == 0 {
		return nil, fmt.Errorf("ldapdb: schema requires a primary key field")
	}
	return s, nil
}

// ObjectClasses returns the declared object classes.
func (s *Schema) ObjectClasses() []string {
	return append([]string(nil), s.objectClasses...)
}

// BaseDN returns the subtree root the schema's entries live under.
func (s *Schema) BaseDN() string {
	return s.baseDN
}

func (s *Schema) fieldByName(name string) (*Field, error) {
	f, ok := s.byName[name]
	if !ok {
		return nil, &TypeError{Field: name}
	}
	return f, nil
}

// attributeNames returns every mapped attribute, for search requests.
func (s *Schema) attributeNames() []string {
	names := make([]string, len(s.fields))
	for i := range s.fields {
		names[i] = s.fields[i].Attr
	}
	return names
}

// binaryAttributeNames returns the attributes that bypass charset
// transcoding on the connection.
func (s *Schema) binaryAttributeNames() []string {
	var names []string
	for i := range s.fields {
		if s.fields[i].Type == Binary {
			names = append(names, s.fields[i].Attr)
		}
	}
	return names
}

// New returns an unpersisted entry with declared defaults applied.
func (s *Schema) New() *Entry {
	e := &Entry{
		schema: s,
		values: make(map[string]any, len(s.fields)),
	}
	for i := range s.fields {
		f := &s.fields[i]
		if f.Default == nil {
			continue
		}
		// a bad default is a declaration bug; surface it on first use
		if err := e.Set(f.Name, f.Default); err != nil {
			panic(err)
		}
	}
	return e
}

// FromRaw decodes a search result into an entry of this schema and
// records the decoded state as the diff snapshot.
func (s *Schema) FromRaw(raw directory.RawEntry) (*Entry, error) {
	e := &Entry{
		schema: s,
		dn:     raw.DN,
		values: make(map[string]any, len(s.fields)),
	}
	for attr, values := range raw.Attrs {
		f, ok := s.byAttr[strings.ToLower(attr)]
		if !ok || len(values) == 0 {
			continue
		}
		decoded, err := f.decode(values)
		if err != nil {
			return nil, err
		}
		e.values[f.Name] = decoded
	}
	e.loaded = e.snapshot()
	return e, nil
}
