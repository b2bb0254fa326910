// Package adattr converts Active Directory binary attribute values, such
// as objectGUID and objectSid, to and from their text forms. The values
// come out of Binary schema fields untouched by the wire codec; these
// helpers give them a readable shape.
package adattr

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// guidLength is the objectGUID value size. Active Directory stores GUIDs
// in a mixed-endian layout: the first three groups little-endian, the rest
// big-endian.
const guidLength = 16

// GUIDString converts an objectGUID value to the canonical hyphenated UUID
// string.
func GUIDString(value []byte) (string, error) {
	if len(value) != guidLength {
		return "", fmt.Errorf("invalid GUID length: expected %d bytes, got %d", guidLength, len(value))
	}

	id, err := uuid.FromBytes(swapGUIDEndianness(value))
	if err != nil {
		return "", fmt.Errorf("failed to parse GUID bytes: %w", err)
	}
	return id.String(), nil
}

// GUIDBytes converts a UUID string (hyphenated or compact) to the
// objectGUID wire layout.
func GUIDBytes(guid string) ([]byte, error) {
	id, err := uuid.Parse(guid)
	if err != nil {
		return nil, fmt.Errorf("invalid GUID %q: %w", guid, err)
	}

	b := id[:]
	return swapGUIDEndianness(b), nil
}

// GUIDSearchValue returns the filter-escaped operand for matching a Binary
// GUID field, suitable for direct embedding in an equality clause.
func GUIDSearchValue(guid string) (string, error) {
	b, err := GUIDBytes(guid)
	if err != nil {
		return "", err
	}
	return ldap.EscapeFilter(string(b)), nil
}

// swapGUIDEndianness reorders between the RFC 4122 byte layout and Active
// Directory's mixed-endian layout. The transform is its own inverse.
func swapGUIDEndianness(in []byte) []byte {
	out := make([]byte, guidLength)

	// Data1: 4 bytes reversed
	out[0], out[1], out[2], out[3] = in[3], in[2], in[1], in[0]
	// Data2, Data3: 2 bytes reversed each
	out[4], out[5] = in[5], in[4]
	out[6], out[7] = in[7], in[6]
	// Data4: unchanged
	copy(out[8:], in[8:])

	return out
}
