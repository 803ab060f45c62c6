package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/pattern.report/internal/api"
	"github.com/banshee-data/pattern.report/internal/db"
)

// runListCommand prints recorded runs, newest first.
func runListCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(out)
	var common commonFlags
	common.register(fs)
	pipelineName := fs.String("pipeline", "", "only list runs of this pipeline (spatial or series)")
	limit := fs.Int("limit", 20, "maximum number of runs to list (0 lists all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	ledger, err := db.NewDB(cfg.GetDatabase())
	if err != nil {
		return fmt.Errorf("failed to open run ledger: %w", err)
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(*pipelineName, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tPIPELINE\tSTATUS\tSTARTED\tDURATION\tERROR")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.Duration().Round(time.Millisecond).String()
		}
		errText := ""
		if r.Error != nil {
			errText = *r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID, r.Pipeline, r.Status, r.StartedAt.Local().Format(time.DateTime), duration, errText)
	}
	return tw.Flush()
}

// runServeCommand serves the run browser until ctx is cancelled.
func runServeCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	listen := fs.String("listen", "", "listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}

	ledger, err := db.NewDB(cfg.GetDatabase())
	if err != nil {
		return fmt.Errorf("failed to open run ledger: %w", err)
	}
	defer ledger.Close()

	mux := api.NewServer(ledger, cfg.GetOutputDir()).ServeMux()
	ledger.AttachAdminRoutes(mux)

	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("serving runs from %s on %s", cfg.GetDatabase(), addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server stopped")
	return nil
}
