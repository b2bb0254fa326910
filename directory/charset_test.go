package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCharset(t *testing.T) {
	for _, name := range []string{"", "utf-8", "UTF-8", "utf8"} {
		codec, err := lookupCharset(name)
		require.NoError(t, err, "charset %q", name)
		assert.Nil(t, codec.enc, "charset %q should be pass-through", name)
	}

	codec, err := lookupCharset("iso-8859-1")
	require.NoError(t, err)
	assert.NotNil(t, codec.enc)

	_, err = lookupCharset("no-such-charset")
	assert.Error(t, err)
}

func TestCharsetPassThrough(t *testing.T) {
	codec, err := lookupCharset("utf-8")
	require.NoError(t, err)

	in := []byte("héllo wörld")
	out, err := codec.encodeValue(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	back, err := codec.decodeValue(out)
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestCharsetTranscodingRoundTrip(t *testing.T) {
	codec, err := lookupCharset("iso-8859-1")
	require.NoError(t, err)

	original := "héllo"
	wire, err := codec.encodeString(original)
	require.NoError(t, err)
	// é is a single byte in latin-1, two bytes in UTF-8
	assert.Len(t, wire, len(original)-1)

	back, err := codec.decodeString(wire)
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestCharsetBinarySafety(t *testing.T) {
	codec, err := lookupCharset("utf-8")
	require.NoError(t, err)

	// Arbitrary non-UTF-8 bytes must survive the pass-through codec
	blob := []byte{0x00, 0xff, 0xfe, 0x89, 0x50, 0x4e, 0x47}
	out, err := codec.encodeValue(blob)
	require.NoError(t, err)
	assert.Equal(t, blob, out)
}
