package aggregation

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

// Columns returns the sorted union of the fields of rows.
func Columns(rows []model.Record) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// WriteCSV writes rows as CSV with a header line. Missing fields are empty cells.
func WriteCSV(w io.Writer, rows []model.Record) (int, error) {
	writer := csv.NewWriter(w)

	cols := Columns(rows)
	if err := writer.Write(cols); err != nil {
		return 0, errors.Wrap(err, "failed to write header")
	}

	count := 0
	line := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			line[i] = utils.String(row[c])
		}
		if err := writer.Write(line); err != nil {
			return count, errors.Wrap(err, "failed to write row")
		}
		count++
	}

	writer.Flush()
	return count, errors.Wrap(writer.Error(), "failed to flush csv")
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []model.Record) (int, error) {
	if rows == nil {
		rows = []model.Record{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rows); err != nil {
		return 0, errors.Wrap(err, "failed to encode json")
	}
	return len(rows), nil
}

// Export writes rows to w in format ("csv" or "json").
func Export(w io.Writer, format string, rows []model.Record) (int, error) {
	switch format {
	case model.FormatCSV:
		return WriteCSV(w, rows)
	case "", model.FormatJSON:
		return WriteJSON(w, rows)
	}
	return 0, errors.Errorf("unsupported export format %q", format)
}

// ExportToFile writes rows into the output directory of queryID. The format
// follows the file extension, CSV when it is unknown.
func ExportToFile(om *utils.OutputManager, queryID, fileName string, rows []model.Record) model.ExportResult {
	format := om.GetFileType(fileName)
	if format == "unknown" {
		format = model.FormatCSV
	}

	result := model.ExportResult{
		Format:     format,
		ExportedAt: time.Now(),
	}

	path, err := om.GetOutputFilePath(queryID, fileName)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Path = path

	file, err := os.Create(path)
	if err != nil {
		result.Error = errors.Wrap(err, "failed to create file").Error()
		return result
	}
	defer file.Close()

	n, err := Export(file, format, rows)
	result.RecordCount = n
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}
