package session

import (
	"fmt"
	"regexp"
)

// MaxNameLength bounds session names so the daemon socket path under
// BaseDir stays within the Unix socket path limit.
const MaxNameLength = 32

// A session name becomes a directory under sessions/ and must not look like
// a command-line flag.
var nameRegexp = regexp.MustCompile(fmt.Sprintf(`^[a-z0-9][a-z0-9_-]{0,%d}$`, MaxNameLength-1))

// ValidateName checks that name can be used as a session directory.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: want 1-%d lowercase letters, digits, '-' or '_', starting with a letter or digit",
			name, MaxNameLength)
	}
	return nil
}
