package adapters

import (
	"strings"
	"time"
)

// journalTimeLayouts lists the timestamp formats accepted when reading the
// journal. The first one is used for writing; "2006-01-02 15:04:05" is what
// SQLite's CURRENT_TIMESTAMP produces for rows inserted by hand.
var journalTimeLayouts = []string{
	journalTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func formatJournalTime(value time.Time) string {
	return value.UTC().Format(journalTimeLayout)
}

func parseJournalTime(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range journalTimeLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
