package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

// Load reads records from a local file or an http(s) URL. The format is
// taken from the extension: .csv, or .json for anything else.
func Load(ctx context.Context, pathOrURL string) ([]model.Record, error) {
	var reader io.Reader
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build request")
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to GET %s", pathOrURL)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return nil, errors.Errorf("failed to GET %s: status %d", pathOrURL, resp.StatusCode)
		}
		reader = resp.Body
	} else {
		file, err := os.Open(pathOrURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open file")
		}
		defer file.Close()
		reader = file
	}

	if strings.EqualFold(filepath.Ext(pathOrURL), ".csv") {
		return LoadCSV(ctx, reader)
	}
	return LoadJSON(reader)
}

// LoadCSV reads a CSV stream with a header line. Cells are parsed into
// numbers and booleans where possible, empty cells become nil.
func LoadCSV(ctx context.Context, r io.Reader) ([]model.Record, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	for i, h := range headers {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	records := []model.Record{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "CSV read error at record %d", len(records)+1)
		}

		rec := make(model.Record, len(headers))
		for i, h := range headers {
			if i < len(row) {
				rec[h] = utils.ParseValue(row[i])
			} else {
				rec[h] = nil
			}
		}
		records = append(records, rec)
	}
}

// LoadJSON reads either an array of objects or a single object.
func LoadJSON(r io.Reader) ([]model.Record, error) {
	decoder := json.NewDecoder(r)
	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON")
	}

	switch data := raw.(type) {
	case []interface{}:
		records := make([]model.Record, 0, len(data))
		for i, item := range data {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("element %d is not an object", i)
			}
			records = append(records, model.Record(m))
		}
		return records, nil
	case map[string]interface{}:
		return []model.Record{data}, nil
	}
	return nil, errors.New("unexpected JSON structure, want an object or an array of objects")
}

// InferFields derives a schema from records: fields in name order of the
// first record, then any field first seen later. The type comes from the
// first non-null value.
func InferFields(records []model.Record) []model.Field {
	fields := []model.Field{}
	index := map[string]int{}
	for _, rec := range records {
		names := make([]string, 0, len(rec))
		for k := range rec {
			names = append(names, k)
		}
		sort.Strings(names)

		for _, name := range names {
			i, ok := index[name]
			if !ok {
				index[name] = len(fields)
				fields = append(fields, model.Field{Name: name, Label: name})
				i = len(fields) - 1
			}
			if fields[i].Type == "" && rec[name] != nil {
				fields[i].Type = FieldType(rec[name])
			}
		}
	}
	for i := range fields {
		if fields[i].Type == "" {
			fields[i].Type = model.FieldText
		}
	}
	return fields
}

// FieldType reports the schema type of a value.
func FieldType(v interface{}) string {
	switch v.(type) {
	case bool:
		return model.FieldBoolean
	case map[string]interface{}, []interface{}:
		return model.FieldJSON
	}
	if utils.IsNumber(v) {
		return model.FieldNumber
	}
	return model.FieldText
}
