// vbpsol turns a solver's variable values for an arc-flow graph back into
// bin packing patterns.
//
// Usage:
//
//	vbpsol [flags] graph.afg vars.sol [print_instance:0]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/piwi3910/arcflow/internal/cache"
	"github.com/piwi3910/arcflow/internal/engine"
	"github.com/piwi3910/arcflow/internal/export"
	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/piwi3910/arcflow/internal/project"
)

const usage = "Usage: vbpsol [flags] graph.afg vars.sol [print_instance:0]\n"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "vbpsol:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("vbpsol", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", envOrDefault("ARCFLOW_CONFIG", project.DefaultConfigPath()), "path to the application config")
	pdfPath := fs.String("pdf", "", "write a PDF report of the patterns")
	xlsxPath := fs.String("xlsx", "", "write the patterns to an Excel workbook")
	cardsPath := fs.String("cards", "", "write QR-coded pattern cards as PDF")
	dbPath := fs.String("db", "", "record the run in this history database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		fs.Usage()
		return errors.New("expected a graph and a solution file")
	}
	printInstance := false
	if fs.NArg() == 3 {
		n, err := strconv.Atoi(fs.Arg(2))
		if err != nil {
			return fmt.Errorf("invalid print_instance flag %q", fs.Arg(2))
		}
		printInstance = n != 0
	}

	cfg, err := project.LoadAppConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := project.NewLogger(stderr, cfg.LogLevel)

	inst, g, err := format.ReadAFGFile(fs.Arg(0))
	if err != nil {
		return err
	}
	flow, err := format.ReadSolFile(fs.Arg(1))
	if err != nil {
		return err
	}

	sol, err := engine.Extract(inst, g, flow)
	if err != nil {
		return err
	}

	if err := format.PrintSolution(stdout, inst, sol); err != nil {
		return err
	}
	if printInstance {
		if err := format.PrintInstance(stdout, inst); err != nil {
			return err
		}
	}

	exports := []struct {
		path  string
		write func(string, *model.Instance, *model.Solution) error
	}{
		{*pdfPath, export.ExportPDF},
		{*xlsxPath, export.ExportExcel},
		{*cardsPath, export.ExportCards},
	}
	for _, e := range exports {
		if e.path == "" {
			continue
		}
		if err := e.write(e.path, inst, sol); err != nil {
			return fmt.Errorf("failed to export %s: %w", e.path, err)
		}
		logger.Info("exported", "path", e.path)
	}

	if *dbPath != "" {
		if err := recordRun(*dbPath, inst, g, sol); err != nil {
			return err
		}
	}
	return nil
}

func recordRun(dbPath string, inst *model.Instance, g *engine.Graph, sol *model.Solution) error {
	h, err := project.NewHistory(dbPath)
	if err != nil {
		return err
	}
	defer h.Close()

	digest, err := cache.Digest(inst)
	if err != nil {
		return err
	}
	_, err = h.Record(context.Background(), project.Run{
		Kind:      project.RunSolution,
		Digest:    digest,
		NV:        g.NV,
		NA:        g.NA(),
		Objective: sol.Objective(inst),
		Bins:      sol.TotalBins(),
	})
	return err
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
