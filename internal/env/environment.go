package env

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

var (
	EnvVarDataDir     = "FIXNESTED_DATA"     // path to data directory
	EnvVarLogFile     = "FIXNESTED_LOG_FILE" // JSON log file, disabled when unset
	EnvVarJournalPath = "FIXNESTED_JOURNAL"  // move journal database
	EnvVarEnvironment = "FIXNESTED_ENV"      // "prod" selects plain JSON console logs
)

// DataDir
// - *nix systems use $XDG_DATA_HOME/fixnested
// - windows uses %APPDATA%/fixnested/data
func DataDir() string {
	if val := os.Getenv(EnvVarDataDir); val != "" {
		return val
	}
	if val := os.Getenv("XDG_DATA_HOME"); val != "" {
		return filepath.Join(val, "fixnested")
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(getConfigDir(), "fixnested", "data")
	}
	return filepath.Join(getHomeDir(), ".local", "share", "fixnested")
}

func LocksDir() string {
	return filepath.Join(DataDir(), "locks")
}

func JournalPath() string {
	if val := os.Getenv(EnvVarJournalPath); val != "" {
		return val
	}
	return filepath.Join(DataDir(), "journal.boltdb")
}

func LogFile() string {
	return os.Getenv(EnvVarLogFile)
}

func IsProd() bool {
	return os.Getenv(EnvVarEnvironment) == "prod"
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("couldn't determine home directory: %v", err))
	}
	return home
}

func getConfigDir() string {
	if runtime.GOOS == "windows" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			panic(fmt.Errorf("couldn't determine config directory: %v", err))
		}
		return cfgDir
	}
	if val := os.Getenv("XDG_CONFIG_HOME"); val != "" {
		return val
	}
	return filepath.Join(getHomeDir(), ".config")
}
