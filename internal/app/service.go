package app

import (
	"os"
	"time"

	"workspace-merge/internal/adapters"
	"workspace-merge/internal/ports"
)

type Service struct {
	OpenJournal func(path string) (ports.JournalPort, error)
	Reports     ports.ReportWriterPort
	Environ     func() []string
	Clock       func() time.Time
}

func NewService() Service {
	return Service{
		OpenJournal: func(path string) (ports.JournalPort, error) {
			return adapters.OpenSQLiteJournal(path)
		},
		Reports: adapters.NewReportFileAdapter(),
		Environ: os.Environ,
		Clock:   time.Now,
	}
}
