package ports

import "workspace-merge/internal/types"

type JournalPort interface {
	RecordRun(run types.JournalRun) (int64, error)
	ListRuns(limit int) ([]types.JournalRun, error)
	GetRun(id int64) (types.JournalRun, error)
	Close() error
}

type ReportWriterPort interface {
	WriteReport(path string, report types.MergeReport) error
}
