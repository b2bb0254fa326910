package adattr

import (
	"fmt"
	"regexp"

	"github.com/bwmarrin/go-objectsid"
)

// minSIDLength is the smallest well-formed binary SID: revision byte,
// sub-authority count, and the 6-byte identifier authority.
const minSIDLength = 8

var sidStringPattern = regexp.MustCompile(`^S-\d+-\d+(-\d+)*$`)

// SIDString converts an objectSid value to its S-1-5-21-... string form.
func SIDString(value []byte) (string, error) {
	if len(value) < minSIDLength {
		return "", fmt.Errorf("invalid SID length: expected at least %d bytes, got %d", minSIDLength, len(value))
	}

	// The declared sub-authority count must match the remaining bytes,
	// 4 per sub-authority.
	subAuthorityCount := int(value[1])
	if len(value) != minSIDLength+4*subAuthorityCount {
		return "", fmt.Errorf("invalid SID: %d sub-authorities declared in %d bytes", subAuthorityCount, len(value))
	}

	sid := objectsid.Decode(value)
	return sid.String(), nil
}

// ValidSIDString reports whether a string is a well-formed SID text form.
func ValidSIDString(sid string) bool {
	return sidStringPattern.MatchString(sid)
}
