package adattr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGUIDStringKnownVector(t *testing.T) {
	// Mixed-endian wire layout of 01020304-0506-0708-090a-0b0c0d0e0f10
	wire := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x06, 0x05,
		0x08, 0x07,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	}

	guid, err := GUIDString(wire)
	require.NoError(t, err)
	assert.Equal(t, "01020304-0506-0708-090a-0b0c0d0e0f10", guid)
}

func TestGUIDBytesInvertsGUIDString(t *testing.T) {
	const guid = "12345678-9abc-def0-1234-56789abcdef0"

	wire, err := GUIDBytes(guid)
	require.NoError(t, err)
	require.Len(t, wire, 16)

	back, err := GUIDString(wire)
	require.NoError(t, err)
	assert.Equal(t, guid, back)
}

func TestGUIDBytesAcceptsCompactForm(t *testing.T) {
	hyphenated, err := GUIDBytes("12345678-9abc-def0-1234-56789abcdef0")
	require.NoError(t, err)

	compact, err := GUIDBytes("123456789abcdef0123456789abcdef0")
	require.NoError(t, err)

	assert.Equal(t, hyphenated, compact)
}

func TestGUIDStringRejectsBadLength(t *testing.T) {
	_, err := GUIDString([]byte{0x01, 0x02})
	assert.Error(t, err)

	_, err = GUIDString(nil)
	assert.Error(t, err)
}

func TestGUIDBytesRejectsGarbage(t *testing.T) {
	_, err := GUIDBytes("not-a-guid")
	assert.Error(t, err)
}

func TestGUIDSearchValueEscapesWireBytes(t *testing.T) {
	// Every wire byte of this GUID is above 0x7f, so the operand must be
	// fully hex-escaped with no raw bytes left.
	operand, err := GUIDSearchValue("8b8a8988-8d8c-8f8e-9091-929394959697")
	require.NoError(t, err)

	assert.NotEmpty(t, operand)
	for _, r := range operand {
		assert.True(t, r == '\\' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F'),
			"unexpected rune %q in escaped operand", r)
	}
}
