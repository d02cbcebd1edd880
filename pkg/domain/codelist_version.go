package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CodeListVersion is a MAJOR.MINOR.PATCH version of the controlled
// vocabularies a package was collected against. A MAJOR gap between the
// package's declared version and the canonical one quarantines the package;
// MINOR/PATCH gaps are advisory only.
type CodeListVersion struct {
	Major int
	Minor int
	Patch int
}

// ParseCodeListVersion parses "MAJOR.MINOR.PATCH". All three parts are
// required; leading/trailing whitespace is rejected.
func ParseCodeListVersion(s string) (CodeListVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return CodeListVersion{}, fmt.Errorf("invalid code-list version %q: want MAJOR.MINOR.PATCH", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (len(p) > 1 && p[0] == '0') {
			return CodeListVersion{}, fmt.Errorf("invalid code-list version %q", s)
		}
		nums[i] = n
	}
	return CodeListVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v CodeListVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v CodeListVersion) IsZero() bool {
	return v == CodeListVersion{}
}

// MajorMismatch reports whether v and other differ in MAJOR, the condition
// that invalidates a whole package.
func (v CodeListVersion) MajorMismatch(other CodeListVersion) bool {
	return v.Major != other.Major
}

// Equal reports exact equality across all three parts.
func (v CodeListVersion) Equal(other CodeListVersion) bool {
	return v == other
}
