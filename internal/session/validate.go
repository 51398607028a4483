package session

import (
	"fmt"
	"regexp"
)

// MaxNameLen keeps <base>/sessions/<name>/daemon.sock under the unix
// socket path limit for ordinary home directories.
const MaxNameLen = 32

// The first character cannot be '-' or tgtriagectl would parse it as a flag.
var namePattern = regexp.MustCompile(fmt.Sprintf(`^[a-z0-9_][a-z0-9_-]{0,%d}$`, MaxNameLen-1))

// ValidateName reports whether name can be used as a session directory
// and socket path component.
func ValidateName(name string) error {
	if namePattern.MatchString(name) {
		return nil
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("session name %q is longer than %d characters", name, MaxNameLen)
	}
	return fmt.Errorf("invalid session name %q: use lowercase letters, digits, _ and - (not leading)", name)
}
