package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go-aggregation-engine/internal/aggregation"
	"go-aggregation-engine/internal/logging"
	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/internal/source"
	"go-aggregation-engine/internal/store"
	"go-aggregation-engine/pkg/utils"
)

// globals are the flags shared by every command.
type globals struct {
	storePath string
	tenant    string
	logLevel  string
	logFormat string
	format    string
	outputDir string
	timeout   string

	partitioned bool
	maxFetches  int
	kpiSample   int
}

func main() {
	app := kingpin.New("aggregator", "Aggregate tenant record collections from the command line.")
	app.HelpFlag.Short('h')

	g := &globals{}
	app.Flag("store.path", "Path of the SQLite database.").Default("aggregator.db").StringVar(&g.storePath)
	app.Flag("tenant", "Tenant ID the command acts for.").Short('t').Required().StringVar(&g.tenant)
	app.Flag("log.level", "Log level: debug, info, warn, error.").Default("warn").StringVar(&g.logLevel)
	app.Flag("log.format", "Log format: logfmt or json.").Default(logging.FormatLogfmt).StringVar(&g.logFormat)
	app.Flag("output", "Output format: json or csv.").Short('o').Default(model.FormatJSON).EnumVar(&g.format, model.FormatJSON, model.FormatCSV)
	app.Flag("output-dir", "Write results under this directory, one sub-directory per query, instead of stdout.").StringVar(&g.outputDir)
	app.Flag("timeout", "Timeout of the command, e.g. 30s or 2m.").Default("1m").StringVar(&g.timeout)
	app.Flag("engine.partitioned-windows", "Compute window functions per partitionBy value.").BoolVar(&g.partitioned)
	app.Flag("engine.max-concurrent-fetches", "Maximum related-table fetches in flight per join resolution.").Default("16").IntVar(&g.maxFetches)
	app.Flag("engine.kpi-sample-size", "Number of records read by kpi.").Default("1000").IntVar(&g.kpiSample)

	addImportCommand(app, g)
	addAggregateCommand(app, g)
	addTimeSeriesCommand(app, g)
	addDistributionCommand(app, g)
	addKPICommand(app, g)
	addQueriesCommand(app, g)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

// env is what a command runs against.
type env struct {
	logger log.Logger
	store  *store.Store
	engine *aggregation.Engine
}

// with opens the store and runs fn with a context bounded by the timeout flag.
func (g *globals) with(fn func(ctx context.Context, e *env) error) error {
	logger, err := logging.New(g.logFormat, g.logLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), utils.ParseDuration(g.timeout, time.Minute))
	defer cancel()

	db, err := store.Open(ctx, g.storePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	src := source.NewResilient(db, model.RetryConfig{MaxRetries: 3, MinBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}, model.BreakerConfig{}, logger, nil)
	engine := aggregation.New(src, aggregation.Options{
		MaxConcurrentFetches: g.maxFetches,
		KPISampleSize:        g.kpiSample,
		PartitionedWindows:   g.partitioned,
	}, logger, nil).WithRecorder(db)

	return fn(ctx, &env{logger: logger, store: db, engine: engine})
}

// write prints rows to stdout, or exports them under the output directory.
func (g *globals) write(kind, queryID string, rows []model.Record) error {
	if g.outputDir == "" {
		_, err := aggregation.Export(os.Stdout, g.format, rows)
		return err
	}

	if queryID == "" {
		queryID = uuid.New().String()
	}
	om := utils.NewOutputManager(g.outputDir)
	if err := om.EnsureOutputDirExists(); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	res := aggregation.ExportToFile(om, queryID, om.FileName(kind, g.format, time.Now()), rows)
	if !res.Success {
		return errors.New(res.Error)
	}
	fmt.Fprintf(os.Stdout, "%d rows written to %s\n", res.RecordCount, res.Path)
	return nil
}

func addImportCommand(app *kingpin.Application, g *globals) {
	var table, path string
	cmd := app.Command("import", "Load a CSV or JSON file, or an http(s) URL, into a table.")
	cmd.Arg("table", "Table to append the records to.").Required().StringVar(&table)
	cmd.Arg("path", "File path or URL. The extension selects the format.").Required().StringVar(&path)

	cmd.Action(func(_ *kingpin.ParseContext) error {
		return g.with(func(ctx context.Context, e *env) error {
			records, err := source.Load(ctx, path)
			if err != nil {
				return err
			}
			n, err := e.store.SaveRecords(ctx, g.tenant, table, records)
			if err != nil {
				return err
			}
			level.Info(e.logger).Log("msg", "import finished", "table", table, "records", n)
			fmt.Fprintf(os.Stdout, "%d records imported into %s\n", n, table)
			return nil
		})
	})
}

func addAggregateCommand(app *kingpin.Application, g *globals) {
	var file string
	cmd := app.Command("aggregate", "Run an aggregation config (YAML or JSON).")
	cmd.Arg("config", "Aggregation config file.").Required().ExistingFileVar(&file)

	cmd.Action(func(_ *kingpin.ParseContext) error {
		buf, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrap(err, "failed to read aggregation config")
		}
		var cfg model.AggregationConfig
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return errors.Wrap(err, "failed to parse aggregation config")
		}
		cfg.TenantID = g.tenant

		return g.with(func(ctx context.Context, e *env) error {
			res, err := e.engine.Query(ctx, "", cfg)
			if err != nil {
				return err
			}
			if res.Diagnostics > 0 {
				level.Warn(e.logger).Log("msg", "aggregation finished with warnings", "warnings", res.Diagnostics)
			}
			return g.write(model.QueryAggregate, res.QueryID, res.Rows)
		})
	})
}

func addTimeSeriesCommand(app *kingpin.Application, g *globals) {
	var table, dateField, valueField string
	cmd := app.Command("timeseries", "Daily averages of a field.")
	cmd.Arg("table", "Table to read.").Required().StringVar(&table)
	cmd.Flag("date-field", "Field holding the record date.").Required().StringVar(&dateField)
	cmd.Flag("value-field", "Field to average.").Required().StringVar(&valueField)

	cmd.Action(func(_ *kingpin.ParseContext) error {
		return g.with(func(ctx context.Context, e *env) error {
			points, err := e.engine.TimeSeries(ctx, g.tenant, table, dateField, valueField)
			if err != nil {
				return err
			}
			rows := make([]model.Record, 0, len(points))
			for _, p := range points {
				rows = append(rows, model.Record{"date": p.Date, "average": p.Average, "count": p.Count})
			}
			return g.write(model.QueryTimeSeries, "", rows)
		})
	})
}

func addDistributionCommand(app *kingpin.Application, g *globals) {
	var table, field string
	cmd := app.Command("distribution", "Count records per category.")
	cmd.Arg("table", "Table to read.").Required().StringVar(&table)
	cmd.Flag("field", "Category field.").Required().StringVar(&field)

	cmd.Action(func(_ *kingpin.ParseContext) error {
		return g.with(func(ctx context.Context, e *env) error {
			dist, err := e.engine.Distribution(ctx, g.tenant, table, field)
			if err != nil {
				return err
			}
			rows := make([]model.Record, 0, len(dist))
			for _, d := range dist {
				rows = append(rows, model.Record{"category": d.Category, "count": d.Count})
			}
			return g.write(model.QueryDistribution, "", rows)
		})
	})
}

func addKPICommand(app *kingpin.Application, g *globals) {
	var table string
	cmd := app.Command("kpi", "Record count, sum and average of the first numeric field.")
	cmd.Arg("table", "Table to read.").Required().StringVar(&table)

	cmd.Action(func(_ *kingpin.ParseContext) error {
		return g.with(func(ctx context.Context, e *env) error {
			kpi, err := e.engine.KPISummary(ctx, g.tenant, table)
			if err != nil {
				return err
			}
			return g.write(model.QueryKPI, "", []model.Record{{
				"total":   kpi.Total,
				"field":   kpi.Field,
				"sum":     kpi.Sum,
				"average": kpi.Average,
			}})
		})
	})
}

func addQueriesCommand(app *kingpin.Application, g *globals) {
	var limit int
	cmd := app.Command("queries", "List the latest query runs of the tenant.")
	cmd.Flag("limit", "Maximum number of runs.").Default("20").IntVar(&limit)

	cmd.Action(func(_ *kingpin.ParseContext) error {
		return g.with(func(ctx context.Context, e *env) error {
			runs, err := e.store.ListQueryRuns(ctx, g.tenant, limit)
			if err != nil {
				return err
			}
			rows := make([]model.Record, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, model.Record{
					"id":        r.ID,
					"kind":      r.Kind,
					"table":     r.Table,
					"status":    r.Status,
					"rows":      r.RowCount,
					"startedAt": r.StartedAt.Format(time.RFC3339),
					"duration":  r.Duration.String(),
					"error":     r.Error,
				})
			}
			return g.write("queries", "", rows)
		})
	})
}
