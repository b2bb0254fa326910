// Package ldapdb maps LDAP directory entries onto declared schemas. A
// Schema binds a set of object classes and a base DN to a list of typed
// fields; entries of that schema are created, fetched, updated and
// deleted through a fluent Query surface and a minimal-diff Save engine.
//
// All directory round-trips go through the directory.Conn interface, so
// the core can be exercised against a pooled connection or a test double
// interchangeably.
package ldapdb

import (
	"errors"
	"fmt"
)

const logSubsystem = "ldapdb"

var (
	// ErrNotFound is returned by single-entry fetches that match nothing.
	ErrNotFound = errors.New("ldapdb: entry not found")

	// ErrMultipleResults is returned by Get when more than one entry matches.
	ErrMultipleResults = errors.New("ldapdb: multiple entries found")
)

// TypeError reports an operation that is invalid for a field's declared
// type: an unsupported lookup operator, a wrong-typed value, or an
// unknown field name. It indicates a programming error and is never
// retried.
type TypeError struct {
	Field     string
	FieldType FieldType
	Op        Operator
}

func (e *TypeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("ldapdb: field %q (%s) does not support %q", e.Field, e.FieldType, e.Op)
	}
	return fmt.Sprintf("ldapdb: invalid operation on field %q (%s)", e.Field, e.FieldType)
}

// IdentityError reports that a DN had to be built or used but no
// identifying state was available.
type IdentityError struct {
	Reason string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("ldapdb: %s", e.Reason)
}
