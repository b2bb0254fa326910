package directory

import (
	"strings"
)

// EscapeDNValue escapes special characters in a DN attribute value per
// RFC 4514: the characters , + " \ < > ; always, # when leading, spaces
// when leading or trailing, and NUL as \00. The identity engine runs every
// RDN value through this before assembling a DN.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 10)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// UnescapeDNValue is the inverse of EscapeDNValue: it removes backslash
// escapes, including two-digit hex escapes like \00, restoring the original
// value. Malformed trailing escapes are preserved literally.
func UnescapeDNValue(value string) string {
	if value == "" || !strings.Contains(value, "\\") {
		return value
	}

	var result strings.Builder
	result.Grow(len(value))

	escaped := false
	hexBuffer := make([]rune, 0, 2)

	for i, r := range value {
		if escaped {
			if isHexDigit(r) {
				hexBuffer = append(hexBuffer, r)
				if len(hexBuffer) == 2 {
					result.WriteRune(rune(hexValue(hexBuffer[0])<<4 | hexValue(hexBuffer[1])))
					hexBuffer = hexBuffer[:0]
					escaped = false
				}
				continue
			}

			// A lone hex digit after the backslash was not an escape after
			// all; emit it literally.
			if len(hexBuffer) > 0 {
				result.WriteRune('\\')
				result.WriteRune(hexBuffer[0])
				hexBuffer = hexBuffer[:0]
			}

			result.WriteRune(r)
			escaped = false
		} else if r == '\\' {
			if i == len(value)-1 {
				result.WriteRune(r)
			} else {
				escaped = true
			}
		} else {
			result.WriteRune(r)
		}
	}

	if escaped {
		result.WriteRune('\\')
	}
	if len(hexBuffer) > 0 {
		result.WriteRune('\\')
		result.WriteRune(hexBuffer[0])
	}

	return result.String()
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}
