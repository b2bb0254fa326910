package ldapdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeFilterValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo*bar", `foo\2abar`},
		{"foo(bar", `foo\28bar`},
		{"foo)bar", `foo\29bar`},
		{`a\b`, `a\5cb`},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, escapeFilterValue(tc.in), "input %q", tc.in)
	}
}

func TestPrepareLookupWildcards(t *testing.T) {
	f := &Field{Name: "name", Attr: "cn", Type: Text}

	tests := []struct {
		op    Operator
		value string
		want  string
	}{
		{OpExact, "foo", "foo"},
		{OpStartsWith, "foo", "foo*"},
		{OpEndsWith, "foo", "*foo"},
		{OpContains, "foo", "*foo*"},
	}

	for _, tc := range tests {
		got, err := f.prepareLookup(tc.op, tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "op %s", tc.op)
	}
}

func TestPrepareLookupEscapesBeforeWildcardInjection(t *testing.T) {
	f := &Field{Name: "name", Attr: "cn", Type: Text}

	got, err := f.prepareLookup(OpContains, "a*b")
	require.NoError(t, err)
	assert.Equal(t, `*a\2ab*`, got)

	got, err = f.prepareLookup(OpStartsWith, "(x)")
	require.NoError(t, err)
	assert.Equal(t, `\28x\29*`, got)
}

func TestPrepareLookupIntegerOperand(t *testing.T) {
	f := &Field{Name: "gid", Attr: "gidNumber", Type: Integer}

	got, err := f.prepareLookup(OpExact, int64(1000))
	require.NoError(t, err)
	assert.Equal(t, "1000", got)

	got, err = f.prepareLookup(OpGte, 500)
	require.NoError(t, err)
	assert.Equal(t, "500", got)
}

func TestUnsupportedLookupsFailWithTypeError(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		op    Operator
		value any
	}{
		{"integer contains", Field{Name: "gid", Type: Integer}, OpContains, "10"},
		{"integer startswith", Field{Name: "gid", Type: Integer}, OpStartsWith, "10"},
		{"text gte", Field{Name: "name", Type: Text}, OpGte, "a"},
		{"list startswith", Field{Name: "members", Type: TextList}, OpStartsWith, "a"},
		{"binary exact", Field{Name: "photo", Type: Binary}, OpExact, []byte{1}},
		{"binary contains", Field{Name: "photo", Type: Binary}, OpContains, "x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.field.prepareLookup(tc.op, tc.value)
			var typeErr *TypeError
			require.True(t, errors.As(err, &typeErr))
			assert.Equal(t, tc.field.Name, typeErr.Field)
			assert.Equal(t, tc.op, typeErr.Op)
		})
	}
}

func TestListContainsMatchesMemberValue(t *testing.T) {
	f := &Field{Name: "members", Attr: "memberUid", Type: TextList}

	got, err := f.prepareLookup(OpContains, "ali")
	require.NoError(t, err)
	assert.Equal(t, "*ali*", got)
}

func TestFieldEncode(t *testing.T) {
	text := &Field{Name: "name", Type: Text}
	values, err := text.encode("foo")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("foo")}, values)

	integer := &Field{Name: "gid", Type: Integer}
	values, err = integer.encode(int64(1000))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("1000")}, values)

	list := &Field{Name: "members", Type: TextList}
	values, err = list.encode([]string{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("alice"), []byte("bob")}, values)

	binary := &Field{Name: "photo", Type: Binary}
	values, err = binary.encode([]byte{0x00, 0xff})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x00, 0xff}}, values)
}

func TestFieldDecode(t *testing.T) {
	text := &Field{Name: "name", Type: Text}
	v, err := text.decode([][]byte{[]byte("foo"), []byte("ignored")})
	require.NoError(t, err)
	assert.Equal(t, "foo", v)

	integer := &Field{Name: "gid", Type: Integer}
	v, err = integer.decode([][]byte{[]byte("1000")})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	_, err = integer.decode([][]byte{[]byte("abc")})
	assert.Error(t, err)

	list := &Field{Name: "members", Type: TextList}
	v, err = list.decode([][]byte{[]byte("alice"), []byte("bob")})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, v)

	binary := &Field{Name: "photo", Type: Binary}
	v, err = binary.decode([][]byte{{0x00, 0xff}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, v)
}

func TestFieldDecodeEmptyYieldsZeroValues(t *testing.T) {
	for _, f := range []Field{
		{Name: "name", Type: Text},
		{Name: "gid", Type: Integer},
		{Name: "members", Type: TextList},
		{Name: "photo", Type: Binary},
	} {
		v, err := f.decode(nil)
		require.NoError(t, err)
		switch f.Type {
		case Text:
			assert.Equal(t, "", v)
		case Integer:
			assert.Equal(t, int64(0), v)
		case TextList:
			assert.Nil(t, v)
		case Binary:
			assert.Nil(t, v)
		}
	}
}
