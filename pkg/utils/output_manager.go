package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidQueryID is returned for query ids that cannot name a directory.
var ErrInvalidQueryID = errors.New("invalid query id")

// OutputManager organises exported result files, one directory per query run.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// QueryDir returns the directory of a query run below the base directory.
// Separators and other characters outside [A-Za-z0-9._-] are replaced so the
// directory can never leave the base.
func (om *OutputManager) QueryDir(queryID string) (string, error) {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, strings.TrimSpace(queryID))
	if strings.Trim(name, ".") == "" {
		return "", errors.Wrapf(ErrInvalidQueryID, "%q", queryID)
	}
	return filepath.Join(om.BaseOutputDir, name), nil
}

// CreateQueryOutputDir creates the directory holding a query run's outputs.
func (om *OutputManager) CreateQueryOutputDir(queryID string) (string, error) {
	queryDir, err := om.QueryDir(queryID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(queryDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create query output directory")
	}
	return queryDir, nil
}

// GetOutputFilePath generates a full path for an output file
func (om *OutputManager) GetOutputFilePath(queryID, fileName string) (string, error) {
	queryDir, err := om.CreateQueryOutputDir(queryID)
	if err != nil {
		return "", err
	}

	// Clean the filename to remove any path separators
	cleanFileName := filepath.Base(fileName)

	return filepath.Join(queryDir, cleanFileName), nil
}

// FileName names an export of one query kind, e.g. "timeseries-20240101T093000Z.csv".
func (om *OutputManager) FileName(kind, format string, at time.Time) string {
	if kind == "" {
		kind = "result"
	}
	return kind + "-" + at.UTC().Format("20060102T150405Z") + "." + format
}

// GetFileType determines the export format based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	default:
		return "unknown"
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}
