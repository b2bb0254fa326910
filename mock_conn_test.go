package ldapdb

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/isometry/ldapdb/directory"
)

// MockConn implements directory.Conn for testing the ORM core.
type MockConn struct {
	mock.Mock
}

func (m *MockConn) Add(ctx context.Context, dn string, attrs []directory.Attribute) error {
	args := m.Called(ctx, dn, attrs)
	return args.Error(0)
}

func (m *MockConn) Delete(ctx context.Context, dn string) error {
	args := m.Called(ctx, dn)
	return args.Error(0)
}

func (m *MockConn) Modify(ctx context.Context, dn string, mods []directory.Modification) error {
	args := m.Called(ctx, dn, mods)
	return args.Error(0)
}

func (m *MockConn) Rename(ctx context.Context, dn, newRDN string) error {
	args := m.Called(ctx, dn, newRDN)
	return args.Error(0)
}

func (m *MockConn) Search(ctx context.Context, req *directory.SearchRequest) ([]directory.RawEntry, error) {
	args := m.Called(ctx, req)
	if result := args.Get(0); result != nil {
		if entries, ok := result.([]directory.RawEntry); ok {
			return entries, args.Error(1)
		}
	}
	return nil, args.Error(1)
}

func (m *MockConn) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConn) Stats() directory.PoolStats {
	args := m.Called()
	if stats, ok := args.Get(0).(directory.PoolStats); ok {
		return stats
	}
	return directory.PoolStats{}
}

func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}
