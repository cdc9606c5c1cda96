// Package optimizer bounds the on-disk growth of moderator session
// state through a backup/restore/optimize cycle. The backup is the
// known-good baseline; the live session directory is an ever-growing
// cache that is periodically evicted back to it.
package optimizer

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Chromium cache subdirectories that are safe to drop from a profile
// without touching authentication state.
var trimmableSubdirs = []string{
	"Default/Cache",
	"Default/Code Cache",
	"Default/Service Worker/CacheStorage",
	"Default/GPUCache",
	"GrShaderCache",
	"ShaderCache",
	"Crashpad",
}

// disposer is the slice of the session registry the optimizer needs.
// Disposal must complete before backup or restore touches the session
// directory, since the live browser holds those files open.
type disposer interface {
	Dispose(moderatorID string)
}

// Optimizer measures, trims, backs up, and restores per-moderator
// session directories.
type Optimizer struct {
	registry  disposer
	cache     *BackupCache
	dataRoot  string
	sizeLimit int64
	logger    *zap.Logger
}

// New creates an optimizer. sizeLimit is the footprint in bytes above
// which the live session is evicted back to its backup.
func New(registry disposer, cache *BackupCache, dataRoot string, sizeLimit int64, logger *zap.Logger) *Optimizer {
	return &Optimizer{
		registry:  registry,
		cache:     cache,
		dataRoot:  dataRoot,
		sizeLimit: sizeLimit,
		logger:    logger,
	}
}

func (o *Optimizer) sessionDir(moderatorID string) string {
	return filepath.Join(o.dataRoot, moderatorID)
}

// FootprintBytes measures the moderator's on-disk session size. A
// missing directory counts as zero.
func (o *Optimizer) FootprintBytes(moderatorID string) (int64, error) {
	var total int64
	err := filepath.Walk(o.sessionDir(moderatorID), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure session for %s: %w", moderatorID, err)
	}
	return total, nil
}

// RestoreFromBackup replaces the live session directory with the last
// backup. The live session is disposed first. Returns ErrNoBackup when
// the moderator has never authenticated successfully.
func (o *Optimizer) RestoreFromBackup(moderatorID string) error {
	if _, err := o.cache.Get(moderatorID); err != nil {
		return err
	}

	o.registry.Dispose(moderatorID)
	if err := o.cache.Restore(moderatorID, o.sessionDir(moderatorID)); err != nil {
		return err
	}
	o.logger.Info("session restored from backup", zap.String("moderator", moderatorID))
	return nil
}

// CheckAndAutoRestoreIfNeeded evicts the live session back to its
// backup when the footprint exceeds the configured limit. Returns
// whether a restore happened. Below the limit it is a complete no-op.
func (o *Optimizer) CheckAndAutoRestoreIfNeeded(moderatorID string) (bool, error) {
	size, err := o.FootprintBytes(moderatorID)
	if err != nil {
		return false, err
	}
	if size <= o.sizeLimit {
		return false, nil
	}

	o.logger.Warn("session footprint over limit, restoring baseline",
		zap.String("moderator", moderatorID),
		zap.Int64("sizeBytes", size),
		zap.Int64("limitBytes", o.sizeLimit))

	if err := o.RestoreFromBackup(moderatorID); err != nil {
		return false, err
	}
	return true, nil
}

// OptimizeCurrentSessionOnly trims the live session's cache directories
// without taking a snapshot. The backup is untouched.
func (o *Optimizer) OptimizeCurrentSessionOnly(moderatorID string) error {
	return o.trim(moderatorID)
}

// OptimizeAuthenticatedSession runs once per successful authentication:
// dispose the live session, trim it, and snapshot the result as the new
// known-good baseline. The session is recreated lazily on next use.
func (o *Optimizer) OptimizeAuthenticatedSession(moderatorID string) error {
	o.registry.Dispose(moderatorID)

	if err := o.trim(moderatorID); err != nil {
		return err
	}

	record, err := o.cache.Put(moderatorID, o.sessionDir(moderatorID))
	if err != nil {
		return err
	}
	o.logger.Info("authenticated session snapshotted",
		zap.String("moderator", moderatorID),
		zap.Int64("archiveBytes", record.SizeBytes))
	return nil
}

func (o *Optimizer) trim(moderatorID string) error {
	dir := o.sessionDir(moderatorID)
	for _, sub := range trimmableSubdirs {
		path := filepath.Join(dir, filepath.FromSlash(sub))
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("trim %s: %w", sub, err)
		}
	}
	return nil
}
