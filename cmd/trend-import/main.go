package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/ghalamif/TrendImport"
	"github.com/ghalamif/TrendImport/internal/adapters/observability"
	"github.com/ghalamif/TrendImport/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "parse":
		err = parseCommand(os.Args[2:], os.Stdout)
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stderr)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "trend-import %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func parseCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	locale := fs.String("locale", "", "Number locale, e.g. en or de_DE (default: process locale)")
	tz := fs.String("tz", "UTC", "Time zone of the timestamps")
	channel := fs.String("channel", "", "Channel name stamped on every sample")
	allowNonFinite := fs.Bool("allow-non-finite", false, "Keep values that overflow to ±Inf")
	asJSON := fs.Bool("json", false, "Print one JSON object per sample")
	logLevel := fs.String("log-level", "info", "Diagnostic log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := logging.Setup(*logLevel, "text")
	opts, err := trendimport.ImportConfig{
		Locale:         *locale,
		Timezone:       *tz,
		Channel:        *channel,
		AllowNonFinite: *allowNonFinite,
	}.Options()
	if err != nil {
		return err
	}
	opts.Obs = observability.NewPromObs(prometheus.NewRegistry(), logger)
	imp := trendimport.NewImporter(opts)

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	enc := json.NewEncoder(stdout)
	for _, path := range files {
		samples, rep, err := importPath(imp, path)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if *asJSON {
				s.Source = path
				if err := enc.Encode(s); err != nil {
					return err
				}
				continue
			}
			printSample(stdout, s)
		}
		logger.Info("parsed",
			slog.String("file", path),
			slog.Int("lines", rep.Lines),
			slog.Int("samples", rep.Samples),
			slog.Int("ignored", rep.Ignored),
			slog.Int("invalid", rep.Invalid))
	}
	return nil
}

func importPath(imp *trendimport.Importer, path string) ([]*trendimport.Sample, trendimport.Report, error) {
	if path == "-" {
		return imp.ImportWithReport(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, trendimport.Report{}, err
	}
	defer f.Close()

	samples, rep, err := imp.ImportWithReport(f)
	if err != nil {
		return nil, rep, fmt.Errorf("%s: %w", path, err)
	}
	return samples, rep, nil
}

func printSample(w io.Writer, s *trendimport.Sample) {
	ts := s.Timestamp.Format("2006-01-02 15:04:05.000")
	if s.IsStatistics() {
		fmt.Fprintf(w, "%s\t%g\t[%g, %g]\n", ts, s.Value, s.Min, s.Max)
		return
	}
	fmt.Fprintf(w, "%s\t%g\n", ts, s.Value)
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to runtime configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := trendimport.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	rt, err := trendimport.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("runtime_started",
		slog.Any("files", cfg.Import.Files),
		slog.String("watch_dir", cfg.Import.WatchDir),
		slog.String("metrics_addr", cfg.Metrics.Addr))
	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := trendimport.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: *interval}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(client, *url, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var snapshotMetrics = []string{
	observability.FilesImported,
	observability.SamplesImported,
	observability.LinesIgnored,
	observability.SamplesIngested,
	observability.QueueLength,
	observability.WALSizeBytes,
}

func printMetricsSnapshot(client *http.Client, url string, w io.Writer) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := readMetrics(resp.Body)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[%s] files=%.0f imported=%.0f ignored=%.0f ingested=%.0f queue=%.0f wal_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		values[observability.FilesImported],
		values[observability.SamplesImported],
		values[observability.LinesIgnored],
		values[observability.SamplesIngested],
		values[observability.QueueLength],
		values[observability.WALSizeBytes],
	)
	return nil
}

// readMetrics parses the text exposition format and returns the snapshot
// metrics that are present.
func readMetrics(r io.Reader) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}

	values := make(map[string]float64, len(snapshotMetrics))
	for _, name := range snapshotMetrics {
		mf, ok := families[name]
		if !ok || len(mf.GetMetric()) == 0 {
			continue
		}
		values[name] = metricValue(mf.GetType(), mf.GetMetric()[0])
	}
	return values, nil
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `TrendImport CLI

Usage:
  trend-import <command> [flags]

Commands:
  parse      Import trend files and print the samples they contain
  run        Import files into TimescaleDB through the WAL-backed runtime
  validate   Load and validate a config file without starting the runtime
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  trend-import parse -locale de -tz Europe/Berlin trend.txt
  trend-import parse -json < trend.txt
  trend-import run -config ./data/config.yaml
  trend-import validate -config ./data/config.yaml
  trend-import stats -url http://localhost:9100/metrics -interval 1s
`)
}
