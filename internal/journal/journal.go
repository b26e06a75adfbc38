// Package journal persists recommendation, analysis, and execution rows as CSV files.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
)

// File names inside the journal directory.
const (
	RecommendationsFile = "recommendations.csv"
	AnalysisFile        = "analysis.csv"
	ExecutionsFile      = "executions.csv"
)

// Journal serializes access to the CSV files of one directory.
type Journal struct {
	mu  sync.Mutex
	dir string
}

// New returns a journal rooted at dir. The directory is created on first write.
func New(dir string) *Journal {
	return &Journal{dir: dir}
}

// Path returns the full path of a journal file.
func (j *Journal) Path(name string) string {
	return filepath.Join(j.dir, name)
}

// AppendRecommendations adds rows to the recommendations file.
func (j *Journal) AppendRecommendations(rows []RecommendationRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return appendRows(j.Path(RecommendationsFile), rows)
}

// ReadRecommendations returns every recommendation row, oldest first.
func (j *Journal) ReadRecommendations() ([]RecommendationRow, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ReadFile[RecommendationRow](j.Path(RecommendationsFile))
}

// WriteAnalysis replaces the analysis file with rows.
func (j *Journal) WriteAnalysis(rows []AnalysisRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRows(j.Path(AnalysisFile), rows)
}

// ReadAnalysis returns the rows of the last analysis run.
func (j *Journal) ReadAnalysis() ([]AnalysisRow, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ReadFile[AnalysisRow](j.Path(AnalysisFile))
}

// AppendExecutions adds rows to the executions file.
func (j *Journal) AppendExecutions(rows []ExecutionRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return appendRows(j.Path(ExecutionsFile), rows)
}

// ReadExecutions returns every execution row, oldest first.
func (j *Journal) ReadExecutions() ([]ExecutionRow, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ReadFile[ExecutionRow](j.Path(ExecutionsFile))
}

// ReadFile decodes a CSV file with a header row. A missing or empty file has no rows.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path) // #nosec G304 -- journal paths come from configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	var rows []T
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return rows, nil
}

func appendRows[T any](path string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	existing, err := ReadFile[T](path)
	if err != nil {
		return err
	}
	return writeRows(path, append(existing, rows...))
}

// writeRows rewrites the whole file through a temp file so readers never see a partial CSV.
func writeRows[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if rows == nil {
		rows = []T{}
	}
	if err := gocsv.Marshal(rows, f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
