package core

import (
	"errors"
	"io/fs"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

func newOutcome(path string, format types.FileFormat) types.MergeOutcome {
	return types.MergeOutcome{Path: path, Format: format, Status: types.MergeStatusSkipped}
}

func failOutcome(outcome types.MergeOutcome, err error) (types.MergeOutcome, error) {
	outcome.Status = types.MergeStatusFailed
	outcome.Err = err
	return outcome, err
}

// saveOutcome writes data to the outcome path unless the file already holds
// exactly these bytes.
func saveOutcome(outcome types.MergeOutcome, data []byte) (types.MergeOutcome, error) {
	written, err := shared.WriteFileIfChanged(outcome.Path, data)
	if err != nil {
		return failOutcome(outcome, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write "+outcome.Path).
			WithCause(err))
	}
	outcome.Fingerprint = shared.Fingerprint(data)
	if written {
		outcome.Status = types.MergeStatusWritten
	} else {
		outcome.Status = types.MergeStatusUnchanged
	}
	return outcome, nil
}

// readOptional returns the content of path, or nil when it does not exist.
func readOptional(path string) ([]byte, bool, error) {
	if path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read " + path).
			WithCause(err)
	}
	return data, true, nil
}

func parseError(path string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("failed to parse " + path).
		WithCause(err)
}

func upgradeText(upgrader ports.LegacyUpgraderPort, text string) string {
	if upgrader == nil {
		return text
	}
	return upgrader.UpgradeLegacy(text)
}

// templateSource picks the template of a forward merge: update when present,
// otherwise setup, but setup only when the workspace does not exist yet.
func templateSource(triple types.Triple, workspaceExists bool) string {
	if shared.Exists(triple.Update) {
		return triple.Update
	}
	if !workspaceExists && shared.Exists(triple.Setup) {
		return triple.Setup
	}
	return ""
}
