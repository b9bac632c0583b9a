package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tgifai/teleworker/internal/consts"
)

const (
	keepBackups = 5
	backupStamp = "20060102-150405"

	lockWait  = 5 * time.Second
	lockStale = 30 * time.Second
	lockPoll  = 50 * time.Millisecond
)

var ErrLocked = errors.New("config file is locked")

// Load reads the YAML file at path. ${VAR} references are expanded after any
// .env next to the working directory or the file has been loaded, then the
// result is validated and defaulted.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = consts.DefaultConfigPath()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv(cfgDir string) error {
	files := []string{consts.EnvFileName}
	if cfgDir != "" && cfgDir != "." {
		files = append(files, filepath.Join(cfgDir, consts.EnvFileName))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Write validates cfg and atomically replaces the file at path. An existing
// file is first copied to path.<stamp> and only the newest backups are kept.
// New files are created 0600 since they usually carry channel secrets.
func Write(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	raw, err := encodeYAML(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	unlock, err := lockPath(path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	mode := os.FileMode(0o600)
	if prev, err := os.ReadFile(path); err == nil {
		if info, statErr := os.Stat(path); statErr == nil {
			mode = info.Mode().Perm()
		}
		if err := writeBackup(path, prev, mode); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read current config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

func encodeYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBackup(path string, prev []byte, mode os.FileMode) error {
	name := path + "." + time.Now().Format(backupStamp)
	for i := 1; ; i++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s.%s.%d", path, time.Now().Format(backupStamp), i)
	}
	if err := os.WriteFile(name, prev, mode); err != nil {
		return fmt.Errorf("write config backup: %w", err)
	}
	pruneBackups(path)
	return nil
}

// pruneBackups relies on the stamp sorting lexically in time order.
func pruneBackups(path string) {
	matches, err := filepath.Glob(path + ".[0-9]*")
	if err != nil || len(matches) <= keepBackups {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-keepBackups] {
		_ = os.Remove(old)
	}
}

// lockPath takes an exclusive lock file, breaking one older than lockStale.
func lockPath(name string) (func(), error) {
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(name) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if info, statErr := os.Stat(name); statErr == nil && time.Since(info.ModTime()) > lockStale {
			_ = os.Remove(name)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, name)
		}
		time.Sleep(lockPoll)
	}
}
