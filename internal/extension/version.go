package extension

import (
	"strconv"
	"strings"
)

// CompatibleVersion reports whether an extension targeting extVersion may
// load against a host at hostVersion, per original_source/loader.rs's
// semver gate: major versions must match exactly, and the extension's
// minor version must be <= the host's. Unparsable versions are allowed
// through, matching the original's fail-open behavior.
func CompatibleVersion(extVersion, hostVersion string) bool {
	extParts, ok := parseVersion(extVersion)
	if !ok {
		return true
	}
	hostParts, ok := parseVersion(hostVersion)
	if !ok {
		return true
	}
	if extParts[0] != hostParts[0] {
		return false
	}
	return extParts[1] <= hostParts[1]
}

func parseVersion(v string) ([2]int, bool) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return [2]int{}, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return [2]int{}, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return [2]int{}, false
	}
	return [2]int{major, minor}, true
}
