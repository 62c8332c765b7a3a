package session

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory, mainly for tests and packaging.
const HomeEnv = "PHONECONTACT_HOME"

// BaseDir returns $PHONECONTACT_HOME, or ~/.phonecontact.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".phonecontact")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the contacts cache database path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "contacts.db")
}

// AddressBookDir returns the directory contacts are exported to as vCards.
func AddressBookDir(name string) string {
	return filepath.Join(Dir(name), "addressbook")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "contactsd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name), AddressBookDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
