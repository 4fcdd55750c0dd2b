// Package reliability backs up the database and the persistent cache layer
// to an S3-compatible bucket.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

const (
	archivePrefix   = "aurum-backup-"
	archiveSuffix   = ".tar.gz"
	timestampLayout = "2006-01-02-150405"
	metadataName    = "backup-metadata.json"
	databaseName    = "aurum.db"
	cachePrefix     = "cache/"
)

// Metadata is written into every archive.
type Metadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Files     []FileMetadata `json:"files"`
}

// FileMetadata describes one archived file.
type FileMetadata struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo represents a backup stored in the bucket.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService snapshots the database and the cache directory into a
// tar.gz archive, uploads it and rotates old archives.
type BackupService struct {
	db        *sql.DB
	cacheDir  string
	dataDir   string
	store     ObjectStore
	retention int
	now       func() time.Time
	log       zerolog.Logger
}

// NewBackupService creates a backup service. retention is the number of
// archives kept; values below 1 keep everything.
func NewBackupService(db *sql.DB, dataDir, cacheDir string, store ObjectStore, retention int, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:        db,
		cacheDir:  cacheDir,
		dataDir:   dataDir,
		store:     store,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// Backup creates and uploads an archive, then rotates old ones. It returns
// the uploaded object key. Rotation failures are logged, not returned.
func (s *BackupService) Backup(ctx context.Context) (string, error) {
	start := time.Now()
	s.log.Info().Msg("Starting backup")

	staging, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	dbCopy := filepath.Join(staging, databaseName)
	// VACUUM INTO produces a consistent copy while the WAL is live.
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dbCopy); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	files := map[string]string{databaseName: dbCopy}
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files[cachePrefix+e.Name()] = filepath.Join(s.cacheDir, e.Name())
	}

	key := archivePrefix + s.now().UTC().Format(timestampLayout) + archiveSuffix
	archivePath := filepath.Join(staging, key)
	if err := s.createArchive(archivePath, files); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := s.store.Upload(ctx, key, f); err != nil {
		return "", err
	}

	s.log.Info().
		Str("key", key).
		Int("files", len(files)).
		Dur("took", time.Since(start)).
		Msg("Backup completed")

	if deleted, err := s.Rotate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Backup rotation incomplete")
	} else if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Msg("Rotated old backups")
	}

	return key, nil
}

// List returns stored backups, newest first.
func (s *BackupService) List(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, archivePrefix), archiveSuffix)
		ts, err := time.Parse(timestampLayout, stamp)
		if err != nil || !strings.HasSuffix(obj.Key, archiveSuffix) {
			s.log.Debug().Str("key", obj.Key).Msg("Ignoring foreign object")
			continue
		}
		backups = append(backups, BackupInfo{Key: obj.Key, Timestamp: ts, SizeBytes: obj.Size})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// Rotate deletes every archive beyond the newest retention ones and returns
// how many were deleted. All delete failures are reported together.
func (s *BackupService) Rotate(ctx context.Context) (int, error) {
	if s.retention < 1 {
		return 0, nil
	}

	backups, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= s.retention {
		return 0, nil
	}

	var result *multierror.Error
	deleted := 0
	for _, b := range backups[s.retention:] {
		if err := s.store.Delete(ctx, b.Key); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		deleted++
	}
	return deleted, result.ErrorOrNil()
}

func (s *BackupService) createArchive(path string, files map[string]string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	meta := Metadata{Timestamp: s.now().UTC()}
	for _, name := range names {
		fm, err := addFile(tw, files[name], name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		meta.Files = append(meta.Files, fm)
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{Name: metadataName, Size: int64(len(raw)), Mode: 0644, ModTime: meta.Timestamp}); err != nil {
		return err
	}
	if _, err := tw.Write(raw); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addFile(tw *tar.Writer, path, name string) (FileMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileMetadata{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileMetadata{}, err
	}

	if err := tw.WriteHeader(&tar.Header{Name: name, Size: info.Size(), Mode: 0644, ModTime: info.ModTime()}); err != nil {
		return FileMetadata{}, err
	}

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tw, hash), f); err != nil {
		return FileMetadata{}, err
	}

	return FileMetadata{Name: name, SizeBytes: info.Size(), Checksum: fmt.Sprintf("sha256:%x", hash.Sum(nil))}, nil
}
