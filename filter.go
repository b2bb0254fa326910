package ldapdb

import "strings"

// Cond is a node in a predicate tree: either a leaf comparing one field
// against a value, or a boolean group over child conditions. Conditions
// are immutable; combinators return new nodes.
type Cond struct {
	field  string
	op     Operator
	value  any
	values []any

	connector string // "&" or "|" for group nodes
	children  []*Cond
	negated   bool
}

// Eq matches entries whose attribute equals value.
func Eq(field string, value any) *Cond {
	return &Cond{field: field, op: OpExact, value: value}
}

// StartsWith matches entries whose attribute starts with value.
func StartsWith(field, value string) *Cond {
	return &Cond{field: field, op: OpStartsWith, value: value}
}

// EndsWith matches entries whose attribute ends with value.
func EndsWith(field, value string) *Cond {
	return &Cond{field: field, op: OpEndsWith, value: value}
}

// Contains matches entries whose attribute contains value as a
// substring. On a list field it matches when any value of the attribute
// contains the substring.
func Contains(field, value string) *Cond {
	return &Cond{field: field, op: OpContains, value: value}
}

// In matches entries whose attribute equals any of the given values.
func In(field string, values ...any) *Cond {
	return &Cond{field: field, op: OpIn, values: values}
}

// Gte matches entries whose attribute is ordered at or above value.
func Gte(field string, value any) *Cond {
	return &Cond{field: field, op: OpGte, value: value}
}

// Lte matches entries whose attribute is ordered at or below value.
func Lte(field string, value any) *Cond {
	return &Cond{field: field, op: OpLte, value: value}
}

// Raw matches entries whose attribute equals a pre-escaped operand,
// embedded verbatim. This is the only lookup valid on Binary fields;
// see adattr.GUIDSearchValue for producing such operands.
func Raw(field, escaped string) *Cond {
	return &Cond{field: field, op: opRaw, value: escaped}
}

// And groups conditions with the AND connector.
func And(conds ...*Cond) *Cond {
	return &Cond{connector: "&", children: conds}
}

// Or groups conditions with the OR connector.
func Or(conds ...*Cond) *Cond {
	return &Cond{connector: "|", children: conds}
}

// Not returns a negated copy of the condition.
func Not(c *Cond) *Cond {
	neg := *c
	neg.negated = !c.negated
	return &neg
}

// compileFilter renders the predicate tree into an RFC 4515 filter
// string, prefixed with one objectClass clause per declared class. The
// whole filter is always wrapped in an AND group, even when the tree is
// empty or a single class is declared.
func compileFilter(s *Schema, root *Cond) (string, error) {
	var b strings.Builder
	b.WriteString("(&")
	for _, class := range s.objectClasses {
		b.WriteString("(objectClass=")
		b.WriteString(escapeFilterValue(class))
		b.WriteString(")")
	}
	if root != nil {
		clause, err := renderCond(s, root)
		if err != nil {
			return "", err
		}
		b.WriteString(clause)
	}
	b.WriteString(")")
	return b.String(), nil
}

func renderCond(s *Schema, c *Cond) (string, error) {
	var clause string
	var err error
	if c.connector != "" {
		clause, err = renderGroup(s, c)
	} else {
		clause, err = renderLeaf(s, c)
	}
	if err != nil {
		return "", err
	}
	if clause == "" {
		return "", nil
	}
	if c.negated {
		return "(!" + clause + ")", nil
	}
	return clause, nil
}

func renderGroup(s *Schema, c *Cond) (string, error) {
	clauses := make([]string, 0, len(c.children))
	for _, child := range c.children {
		clause, err := renderCond(s, child)
		if err != nil {
			return "", err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	switch len(clauses) {
	case 0:
		return "", nil
	case 1:
		// a single-child group collapses to the child
		return clauses[0], nil
	default:
		return "(" + c.connector + strings.Join(clauses, "") + ")", nil
	}
}

func renderLeaf(s *Schema, c *Cond) (string, error) {
	field, err := s.fieldByName(c.field)
	if err != nil {
		return "", err
	}
	switch c.op {
	case OpIn:
		if !field.supportsLookup(OpIn) {
			return "", &TypeError{Field: field.Name, FieldType: field.Type, Op: OpIn}
		}
		if len(c.values) == 0 {
			return "", &TypeError{Field: field.Name, FieldType: field.Type, Op: OpIn}
		}
		clauses := make([]string, 0, len(c.values))
		for _, v := range c.values {
			operand, err := field.prepareLookup(OpExact, v)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, "("+field.Attr+"="+operand+")")
		}
		if len(clauses) == 1 {
			return clauses[0], nil
		}
		return "(|" + strings.Join(clauses, "") + ")", nil
	case OpGte, OpLte:
		operand, err := field.prepareLookup(c.op, c.value)
		if err != nil {
			return "", err
		}
		cmp := ">="
		if c.op == OpLte {
			cmp = "<="
		}
		return "(" + field.Attr + cmp + operand + ")", nil
	default:
		operand, err := field.prepareLookup(c.op, c.value)
		if err != nil {
			return "", err
		}
		return "(" + field.Attr + "=" + operand + ")", nil
	}
}
