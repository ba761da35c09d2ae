package types

import (
	"fmt"
	"strings"
)

type MergeStrategy string

const (
	MergeStrategyCombine  MergeStrategy = "combine"
	MergeStrategyOverride MergeStrategy = "override"
	MergeStrategyKeep     MergeStrategy = "keep"
)

func ParseMergeStrategy(value string) (MergeStrategy, error) {
	switch MergeStrategy(strings.ToLower(strings.TrimSpace(value))) {
	case MergeStrategyCombine:
		return MergeStrategyCombine, nil
	case MergeStrategyOverride:
		return MergeStrategyOverride, nil
	case MergeStrategyKeep:
		return MergeStrategyKeep, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q", value)
	}
}

type FileFormat string

const (
	FileFormatProperties FileFormat = "properties"
	FileFormatXML        FileFormat = "xml"
	FileFormatJSON       FileFormat = "json"
	FileFormatText       FileFormat = "text"
	FileFormatFallback   FileFormat = "fallback"
)

// Triple names the same logical file in its three roles. Any of the paths
// may point to a file that does not exist.
type Triple struct {
	Setup     string
	Update    string
	Workspace string
}

type MergeStatus string

const (
	MergeStatusWritten   MergeStatus = "written"
	MergeStatusUnchanged MergeStatus = "unchanged"
	MergeStatusSkipped   MergeStatus = "skipped"
	MergeStatusFailed    MergeStatus = "failed"
)

type MergeOutcome struct {
	Path        string
	Format      FileFormat
	Status      MergeStatus
	Fingerprint string
	Err         error
}

func (o MergeOutcome) Failed() bool {
	return o.Status == MergeStatusFailed
}

type MergeReport struct {
	Outcomes []MergeOutcome
	Errors   int
}

func (r *MergeReport) Add(outcome MergeOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	if outcome.Failed() {
		r.Errors++
	}
}

func (r MergeReport) Written() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == MergeStatusWritten {
			count++
		}
	}
	return count
}
