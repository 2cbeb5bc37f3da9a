package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shrike/config"

	"go.uber.org/zap"
)

// DataDirectories defines the paths that need to exist before an analysis runs.
type DataDirectories struct {
	Base    string // Base data directory (default: ./data)
	Reports string // Report export directory
	SQLite  string // Report database path
}

// DataDirectoriesFromConfig creates DataDirectories from configuration.
func DataDirectoriesFromConfig(cfg *config.Config) DataDirectories {
	return DataDirectories{
		Base:    cfg.GetDataDir(),
		Reports: cfg.GetReportsDir(),
		SQLite:  cfg.GetSQLitePath(),
	}
}

// EnsureDataDirectories creates required data directories and verifies
// they are writable. This is a pre-flight check that runs before any
// storage initialization.
func EnsureDataDirectories(dirs DataDirectories, sugar *zap.SugaredLogger) error {
	directoriesToCreate := []string{dirs.Base, dirs.Reports}

	for _, dir := range directoriesToCreate {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
		}

		if err := os.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w\n"+
				"  Remediation: Ensure the parent directory exists and is writable\n"+
				"  For Docker: Check volume mount permissions\n"+
				"  For bare metal: Run 'mkdir -p %s && chmod 755 %s'", dir, err, absPath, absPath)
		}

		// Verify write permissions
		testFile := filepath.Join(absPath, ".shrike_write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return fmt.Errorf("directory %s is not writable: %w\n"+
				"  Remediation: Check file system permissions\n"+
				"  For Docker: Ensure volume is mounted with write access\n"+
				"  For bare metal: Run 'chmod -R u+w %s'", dir, err, absPath)
		}
		os.Remove(testFile)

		sugar.Debugw("Data directory ready", "path", absPath)
	}

	return nil
}

// ClassifySQLiteError provides specific error messages based on the type of SQLite failure.
func ClassifySQLiteError(err error, dbPath string) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	absPath, _ := filepath.Abs(dbPath)
	parentDir := filepath.Dir(absPath)

	if containsIgnoreCase(errStr, "permission denied") || containsIgnoreCase(errStr, "access denied") {
		return fmt.Sprintf("Permission denied accessing the report database at %s.\n"+
			"  Remediation:\n"+
			"  - Check file permissions: ls -la %s\n"+
			"  - Check directory permissions: ls -la %s\n"+
			"  - For Docker: Ensure volume is mounted with proper user permissions",
			absPath, absPath, parentDir)
	}

	if containsIgnoreCase(errStr, "database is locked") || containsIgnoreCase(errStr, "SQLITE_BUSY") {
		return fmt.Sprintf("Report database at %s is locked by another process.\n"+
			"  Remediation:\n"+
			"  - Check for other running analyses: ps aux | grep shrike\n"+
			"  - If a crashed run left a stale lock, remove the -shm and -wal files\n"+
			"    (only when no process is using them): ls -la %s*", absPath, absPath)
	}

	if containsIgnoreCase(errStr, "disk full") || containsIgnoreCase(errStr, "no space") || containsIgnoreCase(errStr, "SQLITE_FULL") {
		return fmt.Sprintf("Disk full - cannot write to the report database at %s.\n"+
			"  Remediation:\n"+
			"  - Check available disk space: df -h %s\n"+
			"  - Free up disk space or move the data directory via SHRIKE_DATA_DIR", absPath, parentDir)
	}

	if containsIgnoreCase(errStr, "corrupt") || containsIgnoreCase(errStr, "malformed") || containsIgnoreCase(errStr, "SQLITE_CORRUPT") {
		return fmt.Sprintf("Report database at %s appears to be corrupted.\n"+
			"  Back up any existing data before proceeding.\n"+
			"  Remediation options:\n"+
			"  1. Try recovery: sqlite3 %s \".recover\" | sqlite3 %s.recovered\n"+
			"  2. Check integrity: sqlite3 %s \"PRAGMA integrity_check;\"\n"+
			"  3. As last resort, delete %s and re-run (stored reports are lost)",
			absPath, absPath, absPath, absPath, absPath)
	}

	if containsIgnoreCase(errStr, "read-only") {
		return fmt.Sprintf("Report database location is on a read-only file system: %s.\n"+
			"  Remediation:\n"+
			"  - Remount the file system as read-write\n"+
			"  - Move the database to a writable location via SHRIKE_SQLITE_PATH", absPath)
	}

	return fmt.Sprintf("Failed to initialize the report database at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure the directory %s exists and is writable\n"+
		"  - Check disk space and permissions", absPath, err, parentDir)
}

// ClassifyMongoError provides specific error messages based on the type of MongoDB failure.
func ClassifyMongoError(err error, uri string) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	if containsIgnoreCase(errStr, "connection refused") || containsIgnoreCase(errStr, "actively refused") {
		return fmt.Sprintf("Connection refused by MongoDB at %s.\n"+
			"  This usually means MongoDB is not running.\n"+
			"  Remediation:\n"+
			"  - Start MongoDB: docker compose up -d mongodb\n"+
			"  - Verify the URI in config.yaml or SHRIKE_MONGODB_URI", uri)
	}

	if containsIgnoreCase(errStr, "no such host") || containsIgnoreCase(errStr, "lookup") {
		return fmt.Sprintf("Cannot resolve hostname in MongoDB URI %s.\n"+
			"  Remediation:\n"+
			"  - Verify the hostname is correct\n"+
			"  - Try using an IP address (127.0.0.1) instead of a hostname", uri)
	}

	if containsIgnoreCase(errStr, "auth") || containsIgnoreCase(errStr, "unauthorized") {
		return fmt.Sprintf("Authentication failed for MongoDB at %s.\n"+
			"  Remediation:\n"+
			"  - Verify the credentials embedded in the URI\n"+
			"  - Check the user has access to the configured database", uri)
	}

	if containsIgnoreCase(errStr, "timeout") || containsIgnoreCase(errStr, "deadline") {
		return fmt.Sprintf("Connection to MongoDB at %s timed out.\n"+
			"  Remediation:\n"+
			"  - Check if MongoDB is running and reachable\n"+
			"  - Check network latency and firewall rules", uri)
	}

	return fmt.Sprintf("Failed to connect to MongoDB at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure MongoDB is running and accessible\n"+
		"  - Check the mongodb section of config.yaml", uri, err)
}

// containsIgnoreCase checks if a string contains a substring (case-insensitive).
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
