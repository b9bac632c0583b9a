package consts

import (
	"os"
	"path/filepath"
)

const (
	TeleworkerDirName = ".teleworker"
	ConfigFileName    = "config.yaml"
	EnvFileName       = ".env"
	RemindersFileName = "reminders.json"
	SQLiteFileName    = "reminders.db"
)

func TeleworkerHomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, TeleworkerDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(TeleworkerHomeDir(), ConfigFileName)
}

func DefaultStorePath(driver string) string {
	if driver == "sqlite" {
		return filepath.Join(TeleworkerHomeDir(), "data", SQLiteFileName)
	}
	return filepath.Join(TeleworkerHomeDir(), "data", RemindersFileName)
}
