package ldapdb

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/ldapdb/directory"
)

// Query is a value-typed, chainable search description. Each chaining
// call returns a new Query, so partial queries can be shared and
// extended independently.
type Query struct {
	schema *Schema
	conds  []*Cond
	order  []string
	low    int
	high   int // 0 means unbounded
}

// Query starts a query over the schema's base DN and scope.
func (s *Schema) Query() Query {
	return Query{schema: s}
}

// Filter restricts the result set to entries matching all conditions.
func (q Query) Filter(conds ...*Cond) Query {
	q.conds = append(q.conds[:len(q.conds):len(q.conds)], conds...)
	return q
}

// Exclude restricts the result set to entries matching none of the
// conditions.
func (q Query) Exclude(conds ...*Cond) Query {
	return q.Filter(Not(And(conds...)))
}

// OrderBy sets the client-side sort keys. A "-" prefix sorts a key
// descending; "dn" is a valid key. Without keys, results stay in
// directory order.
func (q Query) OrderBy(keys ...string) Query {
	q.order = append([]string(nil), keys...)
	return q
}

// Slice bounds the sorted result set to [low, high); high 0 means
// unbounded.
func (q Query) Slice(low, high int) Query {
	q.low = low
	q.high = high
	return q
}

// FilterString returns the filter the query would send, for logging
// and debugging.
func (q Query) FilterString() (string, error) {
	return compileFilter(q.schema, q.root())
}

func (q Query) root() *Cond {
	if len(q.conds) == 0 {
		return nil
	}
	return And(q.conds...)
}

func (q Query) search(ctx context.Context, conn directory.Conn, attrs []string, binaryAttrs []string) ([]directory.RawEntry, error) {
	filter, err := compileFilter(q.schema, q.root())
	if err != nil {
		return nil, err
	}
	tflog.SubsystemDebug(ctx, logSubsystem, "searching", map[string]any{
		"base_dn": q.schema.baseDN,
		"scope":   q.schema.scope.String(),
		"filter":  filter,
	})
	raw, err := conn.Search(ctx, &directory.SearchRequest{
		BaseDN:           q.schema.baseDN,
		Scope:            q.schema.scope,
		Filter:           filter,
		Attributes:       attrs,
		BinaryAttributes: binaryAttrs,
	})
	if err != nil {
		// a missing base yields an empty result set
		if directory.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

// All executes the query: search, decode, sort, slice.
func (q Query) All(ctx context.Context, conn directory.Conn) ([]*Entry, error) {
	keys, err := q.sortKeys()
	if err != nil {
		return nil, err
	}
	raw, err := q.search(ctx, conn, q.schema.attributeNames(), q.schema.binaryAttributeNames())
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(raw))
	for _, r := range raw {
		e, err := q.schema.FromRaw(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sortEntries(entries, keys)
	return q.slice(entries), nil
}

// Count returns the number of matching entries after slicing, without
// transferring any attribute values.
func (q Query) Count(ctx context.Context, conn directory.Conn) (int, error) {
	if _, err := q.sortKeys(); err != nil {
		return 0, err
	}
	raw, err := q.search(ctx, conn, nil, nil)
	if err != nil {
		return 0, err
	}
	n := len(raw) - q.low
	if n < 0 {
		n = 0
	}
	if q.high > 0 {
		n = min(n, q.high-q.low)
	}
	return n, nil
}

// Get returns the single matching entry. Zero matches yield
// ErrNotFound, more than one ErrMultipleResults.
func (q Query) Get(ctx context.Context, conn directory.Conn) (*Entry, error) {
	entries, err := q.All(ctx, conn)
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return entries[0], nil
	default:
		return nil, ErrMultipleResults
	}
}

// First returns the first entry of the sorted result set, or
// ErrNotFound when nothing matches.
func (q Query) First(ctx context.Context, conn directory.Conn) (*Entry, error) {
	entries, err := q.All(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0], nil
}

// DeleteAll removes every matching entry, children before parents, and
// returns the number of deletions performed. Deletion stops at the
// first error; the count reflects the partial state.
func (q Query) DeleteAll(ctx context.Context, conn directory.Conn) (int, error) {
	raw, err := q.search(ctx, conn, nil, nil)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(raw, func(i, j int) bool {
		di, dj := dnDepth(raw[i].DN), dnDepth(raw[j].DN)
		if di != dj {
			return di > dj
		}
		return raw[i].DN > raw[j].DN
	})
	deleted := 0
	for _, r := range raw {
		if err := conn.Delete(ctx, r.DN); err != nil {
			return deleted, err
		}
		deleted++
		e := &Entry{schema: q.schema, dn: r.DN, values: map[string]any{}}
		q.schema.signals.firePostDelete(ctx, e)
	}
	return deleted, nil
}

func (q Query) slice(entries []*Entry) []*Entry {
	low := q.low
	if low > len(entries) {
		low = len(entries)
	}
	high := len(entries)
	if q.high > 0 {
		high = min(q.high, len(entries))
	}
	if high < low {
		high = low
	}
	return entries[low:high]
}

type sortKey struct {
	field *Field // nil for the DN pseudo-key
	desc  bool
}

// sortKeys resolves and validates the order specification.
func (q Query) sortKeys() ([]sortKey, error) {
	keys := make([]sortKey, 0, len(q.order))
	for _, spec := range q.order {
		key := sortKey{}
		name := spec
		if strings.HasPrefix(name, "-") {
			key.desc = true
			name = name[1:]
		}
		if name == "dn" {
			keys = append(keys, key)
			continue
		}
		f, err := q.schema.fieldByName(name)
		if err != nil {
			return nil, err
		}
		key.field = f
		keys = append(keys, key)
	}
	return keys, nil
}

func sortEntries(entries []*Entry, keys []sortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		for _, key := range keys {
			c := compareByKey(entries[i], entries[j], key.field)
			if c == 0 {
				continue
			}
			if key.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareByKey orders two entries on one key. Text compares
// case-insensitively, Integer numerically, TextList by its first value
// case-insensitively, Binary and DN bytewise.
func compareByKey(a, b *Entry, f *Field) int {
	if f == nil {
		return strings.Compare(a.dn, b.dn)
	}
	switch f.Type {
	case Text:
		return strings.Compare(strings.ToLower(a.GetString(f.Name)), strings.ToLower(b.GetString(f.Name)))
	case Integer:
		an, bn := a.GetInt(f.Name), b.GetInt(f.Name)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case TextList:
		return strings.Compare(strings.ToLower(firstString(a.GetStrings(f.Name))), strings.ToLower(firstString(b.GetStrings(f.Name))))
	case Binary:
		return bytes.Compare(a.GetBytes(f.Name), b.GetBytes(f.Name))
	default:
		return 0
	}
}

func firstString(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// dnDepth counts the RDN components of a DN, so deeper entries can be
// deleted before their parents.
func dnDepth(dn string) int {
	depth := 0
	escaped := false
	for i := 0; i < len(dn); i++ {
		switch {
		case escaped:
			escaped = false
		case dn[i] == '\\':
			escaped = true
		case dn[i] == ',':
			depth++
		}
	}
	return depth + 1
}
