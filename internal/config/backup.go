package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MaxBackups is the maximum number of config backups to keep
	MaxBackups = 3

	// BackupSuffix is the file extension for backup files
	BackupSuffix = ".bak"
)

// BackupFile creates a timestamped copy of the config file at path.
// Returns the backup file path on success.
// If the file does not exist, returns empty string and nil error.
func BackupFile(path string) (string, error) {
	if !fileExists(path) {
		return "", nil
	}

	timestamp := time.Now().Format("20060102-150405.000")
	backupPath := fmt.Sprintf("%s%s.%s", path, BackupSuffix, timestamp)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	// Cleanup is best-effort; the backup itself succeeded.
	_ = cleanupOldBackups(path)

	return backupPath, nil
}

// ListBackups returns all backup files for the config at path,
// sorted newest first.
func ListBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	var backups []string
	prefix := base + BackupSuffix + "."
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}

	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	return backups, nil
}

// cleanupOldBackups removes backups beyond MaxBackups, keeping the newest.
func cleanupOldBackups(path string) error {
	backups, err := ListBackups(path)
	if err != nil {
		return err
	}

	if len(backups) <= MaxBackups {
		return nil
	}

	for _, backup := range backups[MaxBackups:] {
		_ = os.Remove(backup)
	}

	return nil
}

// RestoreFile replaces the config at path with the contents of backupPath.
// The backup must hold a valid configuration. The current file, if any, is
// backed up first; the restored data is read before that so rotation cannot
// remove it.
func RestoreFile(path, backupPath string) (string, error) {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to read backup: %w", err)
	}

	candidate := NewConfig()
	if err := yaml.Unmarshal(data, candidate); err != nil {
		return "", fmt.Errorf("backup %s is not valid YAML: %w", filepath.Base(backupPath), err)
	}
	if err := candidate.Validate(); err != nil {
		return "", fmt.Errorf("backup %s holds an invalid configuration: %w", filepath.Base(backupPath), err)
	}

	previous, err := BackupFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to backup current config before restore: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return previous, fmt.Errorf("failed to write restored config: %w", err)
	}
	return previous, nil
}

// LatestBackup returns the newest backup of path, or "" when there is none.
func LatestBackup(path string) (string, error) {
	backups, err := ListBackups(path)
	if err != nil || len(backups) == 0 {
		return "", err
	}
	return backups[0], nil
}
