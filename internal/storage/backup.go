package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/common"
)

// Backup errors.
var (
	ErrBackupNotFound  = fmt.Errorf("%w: backup", common.ErrNotFound)
	ErrBackupExists    = fmt.Errorf("%w: backup", common.ErrDuplicateEntry)
	ErrBackupCorrupted = fmt.Errorf("%w: backup integrity check failed", common.ErrPersistence)
	ErrInvalidTag      = fmt.Errorf("%w: backup tag cannot contain path separators", common.ErrValidation)
)

// maxAutoBackups is how many automatic backups survive pruning.
const maxAutoBackups = 5

// BackupInfo describes one backup on disk.
type BackupInfo struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	FileSize      int64     `json:"file_size"`
	Accounts      int       `json:"accounts"`
	Categories    int       `json:"categories"`
	Transactions  int       `json:"transactions"`
	SchemaVersion int       `json:"schema_version"`
	Auto          bool      `json:"auto"`
}

// Backups manages point-in-time copies of the ledger database. Copies live
// in a "backups" directory next to the database file.
type Backups struct {
	store *SQLiteStorage
	dir   string
}

// BackupDir returns the directory backups of dbPath are kept in.
func BackupDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "backups")
}

// Backups returns the backup manager for this store. In-memory databases
// cannot be backed up.
func (s *SQLiteStorage) Backups() (*Backups, error) {
	if s.dbPath == ":memory:" {
		return nil, fmt.Errorf("%w: in-memory database has no backups", common.ErrValidation)
	}
	dir := BackupDir(s.dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &Backups{store: s, dir: dir}, nil
}

func checkTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, `/\`) || strings.Contains(tag, "..") {
		return ErrInvalidTag
	}
	return nil
}

func (b *Backups) dbFile(id string) string   { return filepath.Join(b.dir, id+".db") }
func (b *Backups) metaFile(id string) string { return filepath.Join(b.dir, id+".meta.json") }

// Create snapshots the ledger under tag. An empty tag is generated from the
// current time.
func (b *Backups) Create(ctx context.Context, tag, description string) (*BackupInfo, error) {
	return b.create(ctx, tag, description, false)
}

// Auto takes an automatic backup before a risky operation and prunes older
// automatic backups.
func (b *Backups) Auto(ctx context.Context, operation string) (*BackupInfo, error) {
	now := b.store.now()
	tag := fmt.Sprintf("auto-%s-%s", operation, now.Format("20060102-150405.000"))
	info, err := b.create(ctx, tag, "Automatic backup before "+operation, true)
	if err != nil {
		return nil, err
	}
	if err := b.prune(ctx); err != nil {
		slog.Warn("failed to prune automatic backups", "error", err)
	}
	return info, nil
}

func (b *Backups) create(ctx context.Context, tag, description string, auto bool) (*BackupInfo, error) {
	if tag == "" {
		tag = "backup-" + b.store.now().Format("2006-01-02-150405")
	}
	if err := checkTag(tag); err != nil {
		return nil, err
	}

	path := b.dbFile(tag)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, tag)
	}

	info := &BackupInfo{
		ID:          tag,
		CreatedAt:   b.store.now(),
		Description: description,
		Auto:        auto,
	}
	err := b.store.read(ctx, "backup", func(q queryable) error {
		if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&info.SchemaVersion); err != nil {
			return err
		}
		for table, n := range map[string]*int{
			"accounts":     &info.Accounts,
			"categories":   &info.Categories,
			"transactions": &info.Transactions,
		} {
			// #nosec G202 - table names are fixed above
			if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := b.store.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, persistenceError("backup", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	info.FileSize = stat.Size()

	if err := writeJSON(b.metaFile(tag), info); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Error("failed to remove backup after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save backup metadata: %w", err)
	}

	slog.Info("Created backup", "id", tag, "transactions", info.Transactions, "auto", auto)
	return info, nil
}

// List returns every backup, newest first. Backups with unreadable metadata
// are skipped.
func (b *Backups) List(_ context.Context) ([]BackupInfo, error) {
	return listBackups(b.dir)
}

func listBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		var info BackupInfo
		if err := readJSON(filepath.Join(dir, entry.Name()), &info); err != nil {
			slog.Debug("skipping unreadable backup metadata", "file", entry.Name(), "error", err)
			continue
		}
		backups = append(backups, info)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Delete removes a backup and its metadata.
func (b *Backups) Delete(_ context.Context, id string) error {
	if err := checkTag(id); err != nil {
		return err
	}
	if err := os.Remove(b.dbFile(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
		}
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	if err := os.Remove(b.metaFile(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("failed to remove backup metadata", "id", id, "error", err)
	}
	return nil
}

func (b *Backups) prune(ctx context.Context) error {
	backups, err := b.List(ctx)
	if err != nil {
		return err
	}
	kept := 0
	for _, info := range backups {
		if !info.Auto {
			continue
		}
		if kept++; kept > maxAutoBackups {
			if err := b.Delete(ctx, info.ID); err != nil {
				slog.Debug("failed to delete old automatic backup", "id", info.ID, "error", err)
			}
		}
	}
	return nil
}

// RestoreBackup replaces the database at dbPath with backup id. No store may
// have dbPath open. The replaced database is kept as dbPath+".before-restore".
func RestoreBackup(dbPath, id string) error {
	if err := checkTag(id); err != nil {
		return err
	}
	src := filepath.Join(BackupDir(dbPath), id+".db")
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
		}
		return fmt.Errorf("failed to access backup: %w", err)
	}
	if err := integrityCheck(src); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupCorrupted, err)
	}

	previous := dbPath + ".before-restore"
	if err := copyFile(dbPath, previous); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to keep current database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear %s file: %w", suffix, err)
		}
	}
	if err := copyFile(src, dbPath); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	slog.Info("Restored backup", "id", id, "previous", previous)
	return nil
}

func integrityCheck(path string) error {
	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return errors.New(result)
	}
	return nil
}

// copyFile writes through a temporary file and renames it into place.
func copyFile(src, dst string) (err error) {
	// #nosec G304 - paths come from the configured database location
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	tmp := dst + ".tmp"
	// #nosec G304
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, source); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	// #nosec G304 - path is inside the backup directory
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
