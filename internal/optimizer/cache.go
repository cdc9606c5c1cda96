package optimizer

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Abdullah-Elkholy/Clinics-Management-System-sub006/pkg/models"
)

// ErrNoBackup is returned when a moderator has no stored backup.
// Callers should then require the tenant to authenticate from scratch.
var ErrNoBackup = errors.New("no backup found for moderator")

// BackupCache is a single-entry-per-moderator cache of session
// snapshots: put on successful authentication, get/restore on demand,
// evict when invalidated. Snapshots are tar.gz archives on disk.
type BackupCache struct {
	mu      sync.RWMutex
	dir     string
	records map[string]models.BackupRecord
}

// NewBackupCache opens the cache rooted at dir, indexing any archives
// left over from a previous run.
func NewBackupCache(dir string) (*BackupCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	c := &BackupCache{
		dir:     dir,
		records: make(map[string]models.BackupRecord),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan backup directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		moderatorID := strings.TrimSuffix(name, ".tar.gz")
		c.records[moderatorID] = models.BackupRecord{
			ModeratorID: moderatorID,
			ArchivePath: filepath.Join(dir, name),
			CapturedAt:  info.ModTime(),
			SizeBytes:   info.Size(),
		}
	}
	return c, nil
}

// Put snapshots the session directory, overwriting any prior backup for
// the moderator.
func (c *BackupCache) Put(moderatorID, sessionDir string) (models.BackupRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	archivePath := filepath.Join(c.dir, moderatorID+".tar.gz")
	if err := compressDirectory(sessionDir, archivePath); err != nil {
		return models.BackupRecord{}, fmt.Errorf("snapshot session for %s: %w", moderatorID, err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return models.BackupRecord{}, err
	}

	record := models.BackupRecord{
		ModeratorID: moderatorID,
		ArchivePath: archivePath,
		CapturedAt:  time.Now(),
		SizeBytes:   info.Size(),
	}
	c.records[moderatorID] = record
	return record, nil
}

// Get returns the moderator's backup record, or ErrNoBackup.
func (c *BackupCache) Get(moderatorID string) (models.BackupRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.records[moderatorID]
	if !ok {
		return models.BackupRecord{}, fmt.Errorf("%w: %s", ErrNoBackup, moderatorID)
	}
	return record, nil
}

// Restore replaces targetDir's contents with the moderator's backup.
func (c *BackupCache) Restore(moderatorID, targetDir string) error {
	record, err := c.Get(moderatorID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("clear session directory: %w", err)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("recreate session directory: %w", err)
	}
	if err := extractDirectory(record.ArchivePath, targetDir); err != nil {
		return fmt.Errorf("restore backup for %s: %w", moderatorID, err)
	}
	return nil
}

// Evict drops the moderator's backup and its archive.
func (c *BackupCache) Evict(moderatorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.records[moderatorID]
	if !ok {
		return
	}
	_ = os.Remove(record.ArchivePath)
	delete(c.records, moderatorID)
}

// compressDirectory creates a tar.gz archive of a directory.
func compressDirectory(source, target string) error {
	file, err := os.Create(target)
	if err != nil {
		return err
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	return filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, info.Name())
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		header.Name = relPath

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tarWriter, f)
		return err
	})
}

// extractDirectory extracts a tar.gz archive into a directory.
func extractDirectory(source, target string) error {
	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		targetPath := filepath.Join(target, header.Name)
		if !strings.HasPrefix(targetPath, filepath.Clean(target)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes target: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return err
			}
			outFile, err := os.Create(targetPath)
			if err != nil {
				return err
			}
			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return err
			}
			outFile.Close()
		}
	}
	return nil
}
