package aggregation

import (
	"context"
	"sort"
	"strings"
	"time"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

const (
	dateLayout = "2006-01-02"

	// Numeric dates above this are epoch milliseconds, below it epoch seconds.
	epochMillisThreshold = 1e11
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateLayout,
	"2006/01/02",
}

// TimeSeries buckets the records of table by the calendar day of dateField
// and returns the average of valueField and the record count per day,
// ordered by date. Records without a readable date are skipped.
func (e *Engine) TimeSeries(ctx context.Context, tenantID, table, dateField, valueField string) (points []model.TimeSeriesPoint, err error) {
	start := time.Now()
	defer func() {
		e.observe(ctx, model.QueryTimeSeries, table, tenantID, map[string]string{"dateField": dateField, "valueField": valueField}, start, len(points), 0, err)
	}()

	if err := validateTarget(tenantID, table); err != nil {
		return nil, err
	}
	if dateField == "" || valueField == "" {
		return nil, model.ConfigValidationError("timeseries requires dateField and valueField", nil)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	records := e.fetchPrimary(ctx, e.loggerFor(ctx), tenantID, table, 0)

	dated := make([]model.Record, 0, len(records))
	for _, rec := range records {
		day, ok := DateKey(rec[dateField])
		if !ok {
			continue
		}
		dated = append(dated, model.Record{"date": day, "value": rec[valueField]})
	}

	rows, err := GroupRecords(dated, model.GroupSpec{
		Field:        "date",
		Aggregations: map[string]string{"value": model.AggAvg},
	})
	if err != nil {
		return nil, err
	}

	points = make([]model.TimeSeriesPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, model.TimeSeriesPoint{
			Date:    row.String("date"),
			Average: row.Numeric("value_" + model.AggAvg),
			Count:   int(row.Numeric(BucketSizeField)),
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points, nil
}

// Distribution counts the records of table per value of categoryField, in
// first-seen order. Records lacking the field are counted under "(none)".
func (e *Engine) Distribution(ctx context.Context, tenantID, table, categoryField string) (dist []model.DistributionSlice, err error) {
	start := time.Now()
	defer func() {
		e.observe(ctx, model.QueryDistribution, table, tenantID, map[string]string{"field": categoryField}, start, len(dist), 0, err)
	}()

	if err := validateTarget(tenantID, table); err != nil {
		return nil, err
	}
	if categoryField == "" {
		return nil, model.ConfigValidationError("distribution requires a category field", nil)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	records := e.fetchPrimary(ctx, e.loggerFor(ctx), tenantID, table, 0)
	rows, err := GroupRecords(records, model.GroupSpec{Field: categoryField})
	if err != nil {
		return nil, err
	}

	dist = make([]model.DistributionSlice, 0, len(rows))
	for _, row := range rows {
		category := missingKey
		if v, ok := row.Get(categoryField); ok {
			category = utils.String(v)
		}
		dist = append(dist, model.DistributionSlice{
			Category: category,
			Count:    int(row.Numeric(BucketSizeField)),
		})
	}
	return dist, nil
}

// KPISummary fetches a bounded sample of table and reports the record count
// and the sum and average of its first numeric field.
func (e *Engine) KPISummary(ctx context.Context, tenantID, table string) (kpi model.KPISummary, err error) {
	start := time.Now()
	defer func() {
		e.observe(ctx, model.QueryKPI, table, tenantID, map[string]int{"sample": e.opts.KPISampleSize}, start, kpi.Total, 0, err)
	}()

	if err := validateTarget(tenantID, table); err != nil {
		return model.KPISummary{}, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(ctx)

	records := e.fetchPrimary(ctx, logger, tenantID, table, e.opts.KPISampleSize)
	kpi.Total = len(records)
	if len(records) == 0 {
		return kpi, nil
	}

	kpi.Field = e.firstNumericField(ctx, tenantID, table, records)
	if kpi.Field == "" {
		return kpi, nil
	}
	for _, rec := range records {
		kpi.Sum += rec.Numeric(kpi.Field)
	}
	kpi.Average = kpi.Sum / float64(kpi.Total)
	return kpi, nil
}

// firstNumericField prefers the schema order of the source, falling back to
// the numeric fields of the first record in name order.
func (e *Engine) firstNumericField(ctx context.Context, tenantID, table string, records []model.Record) string {
	if schema, ok := e.source.(model.SchemaSource); ok {
		if field := schemaNumericField(ctx, schema, tenantID, table); field != "" {
			return field
		}
	}

	first := records[0]
	keys := make([]string, 0, len(first))
	for k := range first {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if utils.IsNumber(first[k]) {
			return k
		}
	}
	return ""
}

func schemaNumericField(ctx context.Context, schema model.SchemaSource, tenantID, table string) string {
	tables, err := schema.ListTables(ctx, tenantID)
	if err != nil {
		return ""
	}
	for _, t := range tables {
		if t.Name != table && t.ID != table {
			continue
		}
		fields, err := schema.ListFields(ctx, t.ID)
		if err != nil {
			return ""
		}
		for _, f := range fields {
			if strings.EqualFold(f.Type, model.FieldNumber) {
				return f.Name
			}
		}
	}
	return ""
}

// DateKey formats v as YYYY-MM-DD (UTC). Strings are parsed with the common
// date layouts, numbers are read as epoch seconds or milliseconds.
func DateKey(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case time.Time:
		return val.UTC().Format(dateLayout), true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format(dateLayout), true
			}
		}
		return "", false
	}

	f, ok := utils.NumericOK(v)
	if !ok || !utils.IsNumber(v) {
		return "", false
	}
	if f >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC().Format(dateLayout), true
	}
	return time.Unix(int64(f), 0).UTC().Format(dateLayout), true
}
