// Package artifact archives finished backtest runs and walk-forward
// studies as JSON documents in a pluggable blob backend.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Omareid007/alphaflow-sub005/internal/backtest"
	"github.com/Omareid007/alphaflow-sub005/internal/walkforward"
)

// Blob is the raw storage backend for archived artifacts.
type Blob interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Archive writes typed artifacts through a Blob backend.
type Archive struct {
	blob Blob
}

// NewArchive wraps a blob backend.
func NewArchive(blob Blob) *Archive {
	return &Archive{blob: blob}
}

func runPath(runID string) string {
	return "backtests/" + runID + ".json"
}

func studyPath(name string) string {
	return "studies/" + name + ".json"
}

// SaveRun archives a finished backtest run under its run ID.
func (a *Archive) SaveRun(ctx context.Context, run *backtest.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}
	return a.blob.Write(ctx, runPath(run.ID), data)
}

// LoadRun reads an archived run back.
func (a *Archive) LoadRun(ctx context.Context, runID string) (*backtest.Run, error) {
	data, err := a.blob.Read(ctx, runPath(runID))
	if err != nil {
		return nil, err
	}
	var run backtest.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decoding run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the IDs of all archived runs.
func (a *Archive) ListRuns(ctx context.Context) ([]string, error) {
	paths, err := a.blob.List(ctx, "backtests/")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, trimArtifactPath(p, "backtests/"))
	}
	return ids, nil
}

// SaveStudy archives a walk-forward result. name defaults to a
// timestamp when empty.
func (a *Archive) SaveStudy(ctx context.Context, name string, result *walkforward.Result) (string, error) {
	if name == "" {
		name = time.Now().UTC().Format("20060102T150405Z")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding study: %w", err)
	}
	if err := a.blob.Write(ctx, studyPath(name), data); err != nil {
		return "", err
	}
	return name, nil
}

// LoadStudy reads an archived study back.
func (a *Archive) LoadStudy(ctx context.Context, name string) (*walkforward.Result, error) {
	data, err := a.blob.Read(ctx, studyPath(name))
	if err != nil {
		return nil, err
	}
	var result walkforward.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding study: %w", err)
	}
	return &result, nil
}

func trimArtifactPath(path, prefix string) string {
	out := path
	if len(out) >= len(prefix) && out[:len(prefix)] == prefix {
		out = out[len(prefix):]
	}
	if len(out) > 5 && out[len(out)-5:] == ".json" {
		out = out[:len(out)-5]
	}
	return out
}
