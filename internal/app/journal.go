package app

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"workspace-merge/internal/adapters"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

const defaultJournalLimit = 20

// Journal lists recent runs, or returns a single run with its files when a
// run id is given.
func (s Service) Journal(req JournalRequest) (JournalResult, error) {
	path := strings.TrimSpace(req.JournalDB)
	if path == JournalDisabled {
		return JournalResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("journal is disabled")
	}
	if path == "" {
		path = adapters.DefaultJournalPath()
	}
	path = shared.ExpandTilde(path)
	if !shared.Exists(path) {
		return JournalResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("journal not found: " + path)
	}
	journal, err := s.OpenJournal(path)
	if err != nil {
		return JournalResult{}, err
	}
	defer journal.Close()

	if req.RunID > 0 {
		run, err := journal.GetRun(req.RunID)
		if err != nil {
			return JournalResult{}, err
		}
		return JournalResult{Runs: []types.JournalRun{run}}, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	runs, err := journal.ListRuns(limit)
	if err != nil {
		return JournalResult{}, err
	}
	return JournalResult{Runs: runs}, nil
}
