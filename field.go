package ldapdb

import (
	"fmt"
	"strconv"

	ldap "github.com/go-ldap/ldap/v3"
)

// FieldType is the closed set of value types a field can carry.
type FieldType int

const (
	// Text is a single case-preserving string value.
	Text FieldType = iota
	// Integer is a single numeric value stored as a decimal string.
	Integer
	// TextList is an ordered multi-valued string attribute.
	TextList
	// Binary is a single raw byte value, never transcoded.
	Binary
)

func (t FieldType) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case TextList:
		return "text-list"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Operator identifies a lookup in a filter predicate.
type Operator string

const (
	OpExact      Operator = "exact"
	OpStartsWith Operator = "startswith"
	OpEndsWith   Operator = "endswith"
	OpContains   Operator = "contains"
	OpIn         Operator = "in"
	OpGte        Operator = "gte"
	OpLte        Operator = "lte"

	// opRaw embeds a caller-escaped operand verbatim. Usable on any
	// field type, including Binary (e.g. adattr.GUIDSearchValue output).
	opRaw Operator = "raw"

	// opSet marks type errors raised by value assignment rather than
	// by a lookup.
	opSet Operator = "set"
)

// Field binds one schema field name to one directory attribute.
type Field struct {
	Name       string // field name used by accessors, filters and ordering
	Attr       string // directory attribute name
	Type       FieldType
	PrimaryKey bool // participates in the entry's RDN
	Default    any  // applied by Schema.New
}

// encode converts a typed field value into wire values.
func (f *Field) encode(value any) ([][]byte, error) {
	switch f.Type {
	case Text:
		s, ok := value.(string)
		if !ok {
			return nil, &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		return [][]byte{[]byte(s)}, nil
	case Integer:
		n, err := toInt64(value)
		if err != nil {
			return nil, &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		return [][]byte{[]byte(strconv.FormatInt(n, 10))}, nil
	case TextList:
		list, ok := value.([]string)
		if !ok {
			return nil, &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		values := make([][]byte, len(list))
		for i, s := range list {
			values[i] = []byte(s)
		}
		return values, nil
	case Binary:
		b, ok := value.([]byte)
		if !ok {
			return nil, &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
		}
		out := make([]byte, len(b))
		copy(out, b)
		return [][]byte{out}, nil
	default:
		return nil, &TypeError{Field: f.Name, FieldType: f.Type, Op: opSet}
	}
}

// decode converts wire values back into the field's typed value. Empty
// wire input decodes to the type's zero value.
func (f *Field) decode(values [][]byte) (any, error) {
	switch f.Type {
	case Text:
		if len(values) == 0 {
			return "", nil
		}
		return string(values[0]), nil
	case Integer:
		if len(values) == 0 {
			return int64(0), nil
		}
		n, err := strconv.ParseInt(string(values[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ldapdb: field %q: parsing %q: %w", f.Name, string(values[0]), err)
		}
		return n, nil
	case TextList:
		if len(values) == 0 {
			return []string(nil), nil
		}
		list := make([]string, len(values))
		for i, v := range values {
			list[i] = string(v)
		}
		return list, nil
	case Binary:
		if len(values) == 0 {
			return []byte(nil), nil
		}
		out := make([]byte, len(values[0]))
		copy(out, values[0])
		return out, nil
	default:
		return nil, &TypeError{Field: f.Name, FieldType: f.Type}
	}
}

// encodeString renders a single value as its wire string form, used for
// RDN construction and filter operands.
func (f *Field) encodeString(value any) (string, error) {
	values, err := f.encode(value)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	return string(values[0]), nil
}

// escapeFilterValue escapes filter metacharacters per RFC 4515. It must
// run before any wildcard injection so injected stars survive unescaped.
func escapeFilterValue(value string) string {
	return ldap.EscapeFilter(value)
}

// supportsLookup reports whether the operator is valid for the field's
// type. The table is exhaustive over the type union.
func (f *Field) supportsLookup(op Operator) bool {
	if op == opRaw {
		return true
	}
	switch f.Type {
	case Text:
		switch op {
		case OpExact, OpStartsWith, OpEndsWith, OpContains, OpIn:
			return true
		}
	case Integer:
		switch op {
		case OpExact, OpGte, OpLte, OpIn:
			return true
		}
	case TextList:
		switch op {
		case OpExact, OpContains, OpIn:
			return true
		}
	case Binary:
		// no lookups; search binary attributes via Raw conditions
	}
	return false
}

// prepareLookup renders a single filter operand for the operator,
// escaping the value before wildcard injection.
func (f *Field) prepareLookup(op Operator, value any) (string, error) {
	if !f.supportsLookup(op) {
		return "", &TypeError{Field: f.Name, FieldType: f.Type, Op: op}
	}
	if op == opRaw {
		s, ok := value.(string)
		if !ok {
			return "", &TypeError{Field: f.Name, FieldType: f.Type, Op: op}
		}
		return s, nil
	}
	var s string
	if f.Type == TextList {
		// list lookups match against a single member value
		member, ok := value.(string)
		if !ok {
			return "", &TypeError{Field: f.Name, FieldType: f.Type, Op: op}
		}
		s = member
	} else {
		var err error
		s, err = f.encodeString(value)
		if err != nil {
			return "", &TypeError{Field: f.Name, FieldType: f.Type, Op: op}
		}
	}
	escaped := escapeFilterValue(s)
	switch op {
	case OpStartsWith:
		return escaped + "*", nil
	case OpEndsWith:
		return "*" + escaped, nil
	case OpContains:
		return "*" + escaped + "*", nil
	default:
		return escaped, nil
	}
}

// isEmptyValue reports whether a typed value counts as "no value" for
// persistence purposes. Integers are never empty once set.
func (f *Field) isEmptyValue(value any) bool {
	switch f.Type {
	case Text:
		s, _ := value.(string)
		return s == ""
	case TextList:
		list, _ := value.([]string)
		return len(list) == 0
	case Binary:
		b, _ := value.([]byte)
		return len(b) == 0
	default:
		return false
	}
}

// valuesEqual compares two typed values of this field.
func (f *Field) valuesEqual(a, b any) bool {
	switch f.Type {
	case Text:
		as, aok := a.(string)
		bs, bok := b.(string)
		return aok && bok && as == bs
	case Integer:
		an, aok := a.(int64)
		bn, bok := b.(int64)
		return aok && bok && an == bn
	case TextList:
		al, aok := a.([]string)
		bl, bok := b.([]string)
		if !aok || !bok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if al[i] != bl[i] {
				return false
			}
		}
		return true
	case Binary:
		ab, aok := a.([]byte)
		bb, bok := b.([]byte)
		if !aok || !bok || len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toInt64(value any) (int64, error) {
	switch n := value.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", value)
	}
}
