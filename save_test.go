package ldapdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/isometry/ldapdb/directory"
)

func loadedGroup(t *testing.T, s *Schema) *Entry {
	t.Helper()
	e, err := s.FromRaw(directory.RawEntry{
		DN: "cn=foogroup,ou=groups,dc=example,dc=org",
		Attrs: map[string][][]byte{
			"cn":        {[]byte("foogroup")},
			"gidNumber": {[]byte("1000")},
			"memberUid": {[]byte("alice"), []byte("bob")},
		},
	})
	require.NoError(t, err)
	return e
}

func TestRDN(t *testing.T) {
	s := groupSchema(t)
	e := s.New()

	require.NoError(t, e.SetString("name", "foogroup"))
	rdn, err := e.RDN()
	require.NoError(t, err)
	assert.Equal(t, "cn=foogroup", rdn)
}

func TestRDNEscapesValues(t *testing.T) {
	s := groupSchema(t)
	e := s.New()

	require.NoError(t, e.SetString("name", "foo, bar+baz"))
	rdn, err := e.RDN()
	require.NoError(t, err)
	assert.Equal(t, `cn=foo\, bar\+baz`, rdn)
}

func TestRDNJoinsMultiplePrimaryKeys(t *testing.T) {
	s, err := NewSchema(
		[]string{"device"},
		"ou=devices,dc=example,dc=org",
		directory.ScopeSubtree,
		[]Field{
			{Name: "name", Attr: "cn", Type: Text, PrimaryKey: true},
			{Name: "serial", Attr: "serialNumber", Type: Text, PrimaryKey: true},
		},
	)
	require.NoError(t, err)

	e := s.New()
	require.NoError(t, e.SetString("name", "router"))
	require.NoError(t, e.SetString("serial", "X1"))

	rdn, err := e.RDN()
	require.NoError(t, err)
	assert.Equal(t, "cn=router+serialNumber=X1", rdn)
}

func TestRDNWithoutIdentityFails(t *testing.T) {
	s := groupSchema(t)
	e := s.New()

	_, err := e.RDN()
	var idErr *IdentityError
	assert.True(t, errors.As(err, &idErr))
}

func TestSaveCreatesNewEntry(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := s.New()
	require.NoError(t, e.SetString("name", "foogroup"))
	require.NoError(t, e.SetInt("gid", 1000))
	require.NoError(t, e.SetStrings("members", []string{"alice", "bob"}))

	wantDN := "cn=foogroup,ou=groups,dc=example,dc=org"
	conn.On("Add", ctx, wantDN, mock.MatchedBy(func(attrs []directory.Attribute) bool {
		byName := map[string][][]byte{}
		for _, a := range attrs {
			byName[a.Name] = a.Values
		}
		return len(attrs) == 4 &&
			string(byName["objectClass"][0]) == "posixGroup" &&
			string(byName["cn"][0]) == "foogroup" &&
			string(byName["gidNumber"][0]) == "1000" &&
			len(byName["memberUid"]) == 2
	})).Return(nil)

	require.NoError(t, e.Save(ctx, conn))
	assert.Equal(t, wantDN, e.DN())
	conn.AssertExpectations(t)
}

func TestSaveOmitsEmptyAttributesOnCreate(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := s.New()
	require.NoError(t, e.SetString("name", "foogroup"))
	require.NoError(t, e.SetInt("gid", 1000))

	conn.On("Add", ctx, mock.Anything, mock.MatchedBy(func(attrs []directory.Attribute) bool {
		for _, a := range attrs {
			if a.Name == "memberUid" || a.Name == "jpegPhoto" {
				return false
			}
		}
		return true
	})).Return(nil)

	require.NoError(t, e.Save(ctx, conn))
	conn.AssertExpectations(t)
}

func TestSaveWithoutChangesIssuesNoDirectoryCalls(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := loadedGroup(t, s)

	require.NoError(t, e.Save(ctx, conn))
	assert.Empty(t, e.LastChanged())
	conn.AssertNotCalled(t, "Modify", mock.Anything, mock.Anything, mock.Anything)
	conn.AssertNotCalled(t, "Rename", mock.Anything, mock.Anything, mock.Anything)
	conn.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveReplacesChangedField(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := loadedGroup(t, s)
	require.NoError(t, e.SetInt("gid", 1001))

	conn.On("Modify", ctx, e.DN(), []directory.Modification{
		{Op: directory.ModReplace, Name: "gidNumber", Values: [][]byte{[]byte("1001")}},
	}).Return(nil)

	require.NoError(t, e.Save(ctx, conn))
	assert.Equal(t, []string{"gid"}, e.LastChanged())
	conn.AssertExpectations(t)
}

func TestSaveDeletesClearedField(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := loadedGroup(t, s)
	require.NoError(t, e.Unset("members"))

	conn.On("Modify", ctx, e.DN(), []directory.Modification{
		{Op: directory.ModDelete, Name: "memberUid"},
	}).Return(nil)

	require.NoError(t, e.Save(ctx, conn))
	conn.AssertExpectations(t)
}

func TestSaveRenamesOnIdentityChange(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := loadedGroup(t, s)
	oldDN := e.DN()
	require.NoError(t, e.SetString("name", "newgroup"))
	require.NoError(t, e.SetInt("gid", 2000))

	newDN := "cn=newgroup,ou=groups,dc=example,dc=org"
	conn.On("Rename", ctx, oldDN, "cn=newgroup").Return(nil)
	// the naming attribute is omitted; the rename already applied it
	conn.On("Modify", ctx, newDN, []directory.Modification{
		{Op: directory.ModReplace, Name: "gidNumber", Values: [][]byte{[]byte("2000")}},
	}).Return(nil)

	require.NoError(t, e.Save(ctx, conn))
	assert.Equal(t, newDN, e.DN())
	conn.AssertExpectations(t)
}

func TestSaveRenameOnlySkipsModify(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := loadedGroup(t, s)
	require.NoError(t, e.SetString("name", "newgroup"))

	conn.On("Rename", ctx, mock.Anything, "cn=newgroup").Return(nil)

	require.NoError(t, e.Save(ctx, conn))
	conn.AssertNotCalled(t, "Modify", mock.Anything, mock.Anything, mock.Anything)
	conn.AssertExpectations(t)
}

func TestSaveSkipsRenameWhenDNEquivalent(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e, err := s.FromRaw(directory.RawEntry{
		DN: "CN=Foogroup,OU=Groups,DC=example,DC=org",
		Attrs: map[string][][]byte{
			"cn": {[]byte("Foogroup")},
		},
	})
	require.NoError(t, err)

	// a case-only change of the naming value is not a rename
	require.NoError(t, e.SetString("name", "foogroup"))
	conn.On("Modify", ctx, e.DN(), []directory.Modification{
		{Op: directory.ModReplace, Name: "cn", Values: [][]byte{[]byte("foogroup")}},
	}).Return(nil)

	require.NoError(t, e.Save(ctx, conn))
	conn.AssertNotCalled(t, "Rename", mock.Anything, mock.Anything, mock.Anything)
	conn.AssertExpectations(t)
}

func TestSavePropagatesDirectoryErrors(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	opErr := &directory.OperationError{Op: "add", Category: directory.ErrorCategoryConflict}
	conn.On("Add", ctx, mock.Anything, mock.Anything).Return(opErr)

	e := s.New()
	require.NoError(t, e.SetString("name", "foogroup"))

	err := e.Save(ctx, conn)
	require.Error(t, err)
	assert.True(t, directory.IsAlreadyExists(err))
	assert.Equal(t, "", e.DN())
}

func TestDelete(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := loadedGroup(t, s)
	conn.On("Delete", ctx, e.DN()).Return(nil)

	require.NoError(t, e.Delete(ctx, conn))
	conn.AssertExpectations(t)
}

func TestDeleteUnpersistedFails(t *testing.T) {
	s := groupSchema(t)
	e := s.New()

	err := e.Delete(context.Background(), &MockConn{})
	var idErr *IdentityError
	assert.True(t, errors.As(err, &idErr))
}

func TestRefreshReplacesState(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	e := loadedGroup(t, s)
	require.NoError(t, e.SetInt("gid", 9999)) // local change, never saved

	conn.On("Search", ctx, mock.MatchedBy(func(req *directory.SearchRequest) bool {
		return req.Filter == "(&(objectClass=posixGroup)(cn=foogroup))"
	})).Return([]directory.RawEntry{
		{
			DN: e.DN(),
			Attrs: map[string][][]byte{
				"cn":        {[]byte("foogroup")},
				"gidNumber": {[]byte("1000")},
			},
		},
	}, nil)

	require.NoError(t, e.Refresh(ctx, conn))
	assert.Equal(t, int64(1000), e.GetInt("gid"))
	conn.AssertExpectations(t)
}

func TestSignalsFireOncePerOperation(t *testing.T) {
	s := groupSchema(t)
	conn := &MockConn{}
	ctx := context.Background()

	var created, updated, deleted int
	s.OnPostCreate(func(ctx context.Context, e *Entry) { created++ })
	s.OnPostUpdate(func(ctx context.Context, e *Entry) { updated++ })
	s.OnPostDelete(func(ctx context.Context, e *Entry) { deleted++ })

	conn.On("Add", ctx, mock.Anything, mock.Anything).Return(nil)
	conn.On("Modify", ctx, mock.Anything, mock.Anything).Return(nil)
	conn.On("Delete", ctx, mock.Anything).Return(nil)

	e := s.New()
	require.NoError(t, e.SetString("name", "foogroup"))
	require.NoError(t, e.Save(ctx, conn))
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, updated)

	require.NoError(t, e.SetInt("gid", 5))
	require.NoError(t, e.Save(ctx, conn))
	assert.Equal(t, 1, updated)
	assert.Equal(t, []string{"gid"}, e.LastChanged())

	require.NoError(t, e.Delete(ctx, conn))
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, created)
}

func TestPostUpdateFiresOnNoOpSave(t *testing.T) {
	s := groupSchema(t)
	ctx := context.Background()

	var updated int
	s.OnPostUpdate(func(ctx context.Context, e *Entry) { updated++ })

	e := loadedGroup(t, s)
	require.NoError(t, e.Save(ctx, &MockConn{}))
	assert.Equal(t, 1, updated)
}
