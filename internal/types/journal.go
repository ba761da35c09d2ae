package types

import "time"

type JournalDirection string

const (
	JournalDirectionMerge   JournalDirection = "merge"
	JournalDirectionInverse JournalDirection = "inverse-merge"
	JournalDirectionUpgrade JournalDirection = "upgrade"
)

type JournalRun struct {
	ID         int64
	Timestamp  time.Time
	Direction  JournalDirection
	Workspace  string
	Errors     int
	DurationMs int64
	Files      []JournalFile
}

type JournalFile struct {
	ID          int64
	RunID       int64
	Path        string
	Format      FileFormat
	Status      MergeStatus
	Fingerprint string
	Message     string
}
