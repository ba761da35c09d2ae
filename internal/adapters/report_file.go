package adapters

import (
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

type reportFile struct {
	Errors  int               `yaml:"errors"`
	Written int               `yaml:"written"`
	Files   []reportFileEntry `yaml:"files"`
}

type reportFileEntry struct {
	Path        string `yaml:"path"`
	Format      string `yaml:"format,omitempty"`
	Status      string `yaml:"status"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// ReportFileAdapter writes merge reports as YAML documents.
type ReportFileAdapter struct{}

func NewReportFileAdapter() ReportFileAdapter {
	return ReportFileAdapter{}
}

func (a ReportFileAdapter) WriteReport(path string, report types.MergeReport) error {
	if strings.TrimSpace(path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("report path is empty")
	}
	doc := reportFile{Errors: report.Errors, Written: report.Written()}
	for _, outcome := range report.Outcomes {
		entry := reportFileEntry{
			Path:        outcome.Path,
			Format:      string(outcome.Format),
			Status:      string(outcome.Status),
			Fingerprint: outcome.Fingerprint,
		}
		if outcome.Err != nil {
			entry.Error = outcome.Err.Error()
		}
		doc.Files = append(doc.Files, entry)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode merge report").
			WithCause(err)
	}
	if err := shared.WriteFileAtomic(path, data, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write merge report").
			WithCause(err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport. Recorded errors are
// restored as opaque internal errors.
func (a ReportFileAdapter) ReadReport(path string) (types.MergeReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.MergeReport{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("merge report not found").
			WithCause(err)
	}
	var doc reportFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.MergeReport{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid merge report format").
			WithCause(err)
	}
	report := types.MergeReport{Errors: doc.Errors}
	for _, entry := range doc.Files {
		outcome := types.MergeOutcome{
			Path:        entry.Path,
			Format:      types.FileFormat(entry.Format),
			Status:      types.MergeStatus(entry.Status),
			Fingerprint: entry.Fingerprint,
		}
		if entry.Error != "" {
			outcome.Err = errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg(entry.Error)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}

var _ ports.ReportWriterPort = ReportFileAdapter{}
