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
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evolver/internal/stats"
	"evolver/internal/storage"
	"evolver/pkg/evolver"
)

const exportsDir = "exports"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "history":
		return runHistory(ctx, args[1:], out)
	case "snapshot":
		return runSnapshot(ctx, args[1:], out)
	case "delete":
		return runDelete(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	case "problems":
		return runProblems(args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind   *string
	dbPath *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:   fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath: fs.String("db-path", "evolver.db", "sqlite database path"),
	}
}

func (f storeFlags) open(ctx context.Context, logger *slog.Logger, m *evolver.Metrics) (*evolver.Client, error) {
	client, err := evolver.New(evolver.Options{
		StoreKind: *f.kind,
		DBPath:    *f.dbPath,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	stores := addStoreFlags(fs)
	configPath := fs.String("config", "", "TOML or JSON run config")
	logLevel := fs.String("log-level", "warn", "log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	progress := fs.Bool("progress", false, "print one line per epoch")
	values := addRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadOrDefaultRunConfig(*configPath)
	if err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := values.apply(&cfg, set); err != nil {
		return err
	}
	if cfg.Problem == "" {
		return usageError("run requires --problem or a config file naming one")
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	var collector *evolver.Metrics
	if *metricsAddr != "" {
		collector = evolver.NewMetrics()
		shutdown := serveMetrics(*metricsAddr, collector, logger)
		defer shutdown()
	}

	client, err := stores.open(ctx, logger, collector)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := cfg.RunRequest
	if *progress {
		req.Observer = func(_ context.Context, ev evolver.Event) error {
			_, err := fmt.Fprintf(out, "epoch=%d size=%d best=%.6f mean=%.6f reward=%.4f\n",
				ev.Stats.Epoch, ev.Stats.Size, ev.Stats.BestFitness, ev.Stats.MeanFitness, ev.Stats.Reward)
			return err
		}
	}

	summary, runErr := client.Run(ctx, cfg.Problem, req)
	if summary.RunID == "" {
		return runErr
	}
	if *jsonOut {
		type runItem struct {
			RunID         string                    `json:"run_id"`
			Problem       string                    `json:"problem"`
			StopReason    string                    `json:"stop_reason"`
			Epochs        int                       `json:"epochs"`
			BestID        string                    `json:"best_id"`
			BestFitness   float64                   `json:"best_fitness"`
			ElapsedMS     int64                     `json:"elapsed_ms"`
			Usage         map[string]map[string]int `json:"usage"`
			Probabilities map[string][]float64      `json:"probabilities,omitempty"`
			Estimates     map[string][]float64      `json:"estimates,omitempty"`
		}
		if err := writeJSON(out, runItem{
			RunID:         summary.RunID,
			Problem:       summary.Problem,
			StopReason:    summary.StopReason,
			Epochs:        summary.Epochs,
			BestID:        summary.BestID,
			BestFitness:   summary.BestFitness,
			ElapsedMS:     summary.Elapsed.Milliseconds(),
			Usage:         summary.Usage,
			Probabilities: summary.Probabilities,
			Estimates:     summary.Estimates,
		}); err != nil {
			return err
		}
		return runErr
	}

	fmt.Fprintf(out, "run_id=%s problem=%s stop=%s epochs=%d best_fitness=%.6f elapsed=%s\n",
		summary.RunID, summary.Problem, summary.StopReason, summary.Epochs, summary.BestFitness, summary.Elapsed.Round(time.Millisecond))
	for _, family := range sortedKeys(summary.Usage) {
		fmt.Fprintf(out, "usage family=%s", family)
		for _, op := range sortedKeys(summary.Usage[family]) {
			fmt.Fprintf(out, " %s=%d", op, summary.Usage[family][op])
		}
		fmt.Fprintln(out)
	}
	return runErr
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	stores := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	problemName := fs.String("problem", "", "only list runs of this problem")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := stores.open(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, evolver.RunsRequest{Limit: *limit, Problem: *problemName})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "run_id=%s created_at=%s problem=%s seed=%d size=%d epochs=%d stop=%s best_fitness=%.6f\n",
			r.ID,
			r.CreatedAtUTC.Format(time.RFC3339),
			r.Problem,
			r.Seed,
			r.InitialSize,
			r.Epochs,
			r.StopReason,
			r.BestFitness,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	stores := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stores.open(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, evolver.RunLookup{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, history)
	}
	for _, s := range history {
		fmt.Fprintf(out, "epoch=%d size=%d best=%.6f mean=%.6f std=%.6f offspring=%d eliminated=%d ops=%s/%s/%s reward=%.4f\n",
			s.Epoch, s.Size, s.BestFitness, s.MeanFitness, s.StdDev, s.Offspring, s.Eliminated,
			s.Selector, s.Crossover, s.Replacement, s.Reward)
	}
	return nil
}

func runSnapshot(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	stores := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	top := fs.Int("top", 0, "only show the fittest N members")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *top < 0 {
		return errors.New("top must be >= 0")
	}

	client, err := stores.open(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.Snapshot(ctx, evolver.RunLookup{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	slices.SortStableFunc(snapshot.Members, func(a, b evolver.MemberRecord) int {
		switch {
		case a.Fitness > b.Fitness:
			return -1
		case a.Fitness < b.Fitness:
			return 1
		default:
			return 0
		}
	})
	if *top > 0 && len(snapshot.Members) > *top {
		snapshot.Members = snapshot.Members[:*top]
	}
	return writeJSON(out, snapshot)
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	stores := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	outDir := fs.String("out", exportsDir, "export directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stores.open(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lookup := evolver.RunLookup{RunID: *runID, Latest: *latest}
	runRecord, err := client.Describe(ctx, lookup)
	if err != nil {
		return err
	}
	lookup = evolver.RunLookup{RunID: runRecord.ID}
	history, err := client.History(ctx, lookup)
	if err != nil {
		return err
	}
	snapshot, err := client.Snapshot(ctx, lookup)
	if err != nil && !errors.Is(err, evolver.ErrRunNotFound) {
		return err
	}

	dir, err := stats.WriteRunArtifacts(*outDir, stats.RunArtifacts{
		Run:        runRecord,
		History:    history,
		Population: snapshot,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported run_id=%s to=%s\n", runRecord.ID, dir)
	return nil
}

func runDelete(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	stores := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stores.open(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	removed, err := client.DeleteRun(ctx, evolver.RunLookup{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted run_id=%s problem=%s\n", removed.ID, removed.Problem)
	return nil
}

func runProblems(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit problems as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	problems := evolver.Problems()
	if *jsonOut {
		return writeJSON(out, problems)
	}
	for _, p := range problems {
		fmt.Fprintf(out, "%-10s genes=%-7s length=%-3d crossover=%-10s %s\n",
			p.Name, p.GeneType, p.DefaultLength, p.DefaultCrossover, p.Description)
	}
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// serveMetrics exposes the collector until the returned func is called.
func serveMetrics(addr string, collector *evolver.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evolverctl <run|runs|history|snapshot|export|delete|problems> [flags]", msg)
}
