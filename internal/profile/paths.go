package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns $CONVO_HOME, or ~/.convo when unset.
func BaseDir() string {
	if dir := os.Getenv("CONVO_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".convo")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the UDS socket path of the profile's daemon.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "convod.sock")
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the default SQLite database path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "convo.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the log file path of the named program.
func LogPath(name, program string) string {
	return filepath.Join(LogDir(name), program+".log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
