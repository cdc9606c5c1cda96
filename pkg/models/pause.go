package models

import "time"

// PauseToken is the single pause slot each moderator owns. The last
// pause request overwrites the slot; resuming only clears it when the
// caller's reason matches the stored one, so a transient check cannot
// lift a pause raised for a persistent cause.
type PauseToken struct {
	Paused   bool      `json:"paused"`
	Reason   string    `json:"reason,omitempty"`
	PausedBy string    `json:"pausedBy,omitempty"`
	PausedAt time.Time `json:"pausedAt,omitempty"`
}

// BackupRecord describes the latest on-disk session snapshot for a
// moderator. One record per moderator; each successful authentication
// overwrites it.
type BackupRecord struct {
	ModeratorID string    `json:"moderatorId"`
	ArchivePath string    `json:"-"`
	CapturedAt  time.Time `json:"capturedAt"`
	SizeBytes   int64     `json:"sizeBytes"`
}
