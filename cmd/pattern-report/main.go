package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/pattern.report/internal/config"
	"github.com/banshee-data/pattern.report/internal/db"
	"github.com/banshee-data/pattern.report/internal/pipeline"
	"github.com/banshee-data/pattern.report/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Fatalf("pattern-report: %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return fmt.Errorf("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "spatial":
		return runSpatialCommand(ctx, rest, out)
	case "series":
		return runSeriesCommand(ctx, rest, out)
	case "run":
		return runRecipeCommand(ctx, rest, out)
	case "runs":
		return runListCommand(rest, out)
	case "serve":
		return runServeCommand(ctx, rest)
	case "migrate":
		return runMigrateCommand(rest, out)
	case "version":
		fmt.Fprintln(out, version.Current())
		return nil
	case "help", "-h", "-help", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: pattern-report <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  spatial    Point-pattern density and distance-function envelopes")
	fmt.Fprintln(out, "  series     Calendar aggregation, rolling mean, ACF and STL of a CSV column")
	fmt.Fprintln(out, "  run        Run the analyses described by an HCL recipe (-recipe file.hcl)")
	fmt.Fprintln(out, "  runs       List runs recorded in the ledger")
	fmt.Fprintln(out, "  serve      Browse recorded runs and their artifacts over HTTP")
	fmt.Fprintln(out, "  migrate    Manage the ledger schema (see 'pattern-report migrate help')")
	fmt.Fprintln(out, "  version    Print build information")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'pattern-report <command> -h' for the flags of a command.")
}

// commonFlags are shared by every command that reads configuration.
type commonFlags struct {
	configPath string
	dbPath     string
	outDir     string
	mode       string
	noLedger   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to a JSON analysis config (defaults apply when empty)")
	fs.StringVar(&c.dbPath, "db", "", "run ledger database (overrides config)")
	fs.StringVar(&c.outDir, "out", "", "artifact output directory (overrides config)")
	fs.StringVar(&c.mode, "mode", "", "render mode: static or interactive (overrides config)")
	fs.BoolVar(&c.noLedger, "no-ledger", false, "do not record the run in the ledger")
}

// load reads the config file, if any, and applies flag overrides.
func (c *commonFlags) load() (*config.AnalysisConfig, error) {
	cfg := config.EmptyAnalysisConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = config.LoadAnalysisConfig(c.configPath); err != nil {
			return nil, err
		}
	}
	if c.dbPath != "" {
		cfg.Database = &c.dbPath
	}
	if c.outDir != "" {
		cfg.OutputDir = &c.outDir
	}
	if c.mode != "" {
		cfg.Mode = &c.mode
	}
	return cfg, nil
}

// openRecorder returns the run ledger, or a NopRecorder with -no-ledger.
// The returned func releases it.
func (c *commonFlags) openRecorder(cfg *config.AnalysisConfig) (pipeline.Recorder, func(), error) {
	if c.noLedger {
		return pipeline.NopRecorder{}, func() {}, nil
	}
	ledger, err := db.NewDB(cfg.GetDatabase())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	return ledger, func() { ledger.Close() }, nil
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runMigrateCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", config.EmptyAnalysisConfig().GetDatabase(), "run ledger database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, out)
}
