package dependabot

import (
	"strings"
)

// ClassifyUpdate derives an update type from a version change. An old
// version with no new version is a removal; anything that cannot be read
// as at least major.minor.patch on both sides is unknown (nil).
func ClassifyUpdate(oldVersion, newVersion string) *string {
	if oldVersion != "" && newVersion == "" {
		return updateType("removal")
	}
	if oldVersion == "" || newVersion == "" {
		return nil
	}

	oldParts, ok := versionParts(oldVersion)
	if !ok {
		return nil
	}
	newParts, ok := versionParts(newVersion)
	if !ok {
		return nil
	}

	switch {
	case newParts[0] > oldParts[0]:
		return updateType("major")
	case newParts[1] > oldParts[1]:
		return updateType("minor")
	case newParts[2] > oldParts[2]:
		return updateType("patch")
	}
	return nil
}

// versionParts reads the leading numeric value of the first three
// dot-separated components. Fewer than three components means the
// version cannot be classified.
func versionParts(version string) ([3]int, bool) {
	var parts [3]int
	split := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(split) < 3 {
		return parts, false
	}
	for i := 0; i < 3; i++ {
		parts[i] = leadingInt(split[i])
	}
	return parts, true
}

// leadingInt mirrors a permissive to-integer cast: digits up to the
// first non-digit, zero when there are none.
func leadingInt(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func updateType(t string) *string {
	return &t
}
