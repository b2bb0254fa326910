package directory

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// charsetCodec transcodes attribute values between UTF-8 (the in-process
// representation) and the configured wire character set. A nil enc means
// the wire charset is UTF-8 and values pass through unchanged.
type charsetCodec struct {
	name string
	enc  encoding.Encoding
}

// lookupCharset resolves an IANA character set name. UTF-8 and its aliases
// resolve to the pass-through codec.
func lookupCharset(name string) (*charsetCodec, error) {
	if name == "" || isUTF8Name(name) {
		return &charsetCodec{name: "utf-8"}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}

	return &charsetCodec{name: name, enc: enc}, nil
}

func isUTF8Name(name string) bool {
	switch strings.ToLower(name) {
	case "utf-8", "utf8", "unicode-1-1-utf-8":
		return true
	}
	return false
}

// encodeValue converts a UTF-8 value to the wire charset.
func (c *charsetCodec) encodeValue(value []byte) ([]byte, error) {
	if c.enc == nil || len(value) == 0 {
		return value, nil
	}

	out, err := c.enc.NewEncoder().Bytes(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value to %s: %w", c.name, err)
	}
	return out, nil
}

// decodeValue converts a wire-charset value back to UTF-8.
func (c *charsetCodec) decodeValue(value []byte) ([]byte, error) {
	if c.enc == nil || len(value) == 0 {
		return value, nil
	}

	out, err := c.enc.NewDecoder().Bytes(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode value from %s: %w", c.name, err)
	}
	return out, nil
}

// encodeString converts a UTF-8 string to the wire charset.
func (c *charsetCodec) encodeString(value string) (string, error) {
	if c.enc == nil {
		return value, nil
	}

	out, err := c.encodeValue([]byte(value))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeString converts a wire-charset string back to UTF-8.
func (c *charsetCodec) decodeString(value string) (string, error) {
	if c.enc == nil {
		return value, nil
	}

	out, err := c.decodeValue([]byte(value))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
