// vbp2afg compiles a vector packing instance into an arc-flow graph.
//
// Usage:
//
//	vbp2afg [flags] instance.vbp graph.afg [method:-2] [binary:0] [vtype:I]
//
// The input may also be an item list (.csv, .xlsx) or a DXF cutting
// drawing, in which case the bin comes from -capacity or -preset.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/piwi3910/arcflow/internal/engine"
	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/importer"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/piwi3910/arcflow/internal/project"
)

const usage = "Usage: vbp2afg [flags] instance.vbp graph.afg [method:-2] [binary:0] [vtype:I]\n"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "vbp2afg:", err)
		os.Exit(1)
	}
}

type options struct {
	verbose     bool
	configPath  string
	capacity    string
	cost        int
	quantity    int
	preset      string
	presetsPath string
	savePreset  string
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("vbp2afg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.BoolVar(&opts.verbose, "v", false, "log build stages")
	fs.StringVar(&opts.configPath, "config", envOrDefault("ARCFLOW_CONFIG", project.DefaultConfigPath()), "path to the application config")
	fs.StringVar(&opts.capacity, "capacity", "", "bin capacity for item lists, comma separated")
	fs.IntVar(&opts.cost, "cost", 1, "bin cost for item lists")
	fs.IntVar(&opts.quantity, "quantity", -1, "bin quantity for item lists (-1 = unbounded)")
	fs.StringVar(&opts.preset, "preset", "", "bin preset for item lists")
	fs.StringVar(&opts.presetsPath, "presets", project.DefaultPresetPath(), "path to the bin presets")
	fs.StringVar(&opts.savePreset, "save-preset", "", "store -capacity, -cost and -quantity as a named preset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 5 {
		fs.Usage()
		return errors.New("expected an instance and an output graph")
	}

	cfg, err := project.LoadAppConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	}
	logger := project.NewLogger(stderr, level)

	if opts.savePreset != "" {
		if err := savePreset(opts); err != nil {
			return err
		}
		logger.Info("preset saved", "name", opts.savePreset, "path", opts.presetsPath)
	}

	input, output := fs.Arg(0), fs.Arg(1)
	inst, err := loadInstance(input, cfg, opts, logger.Warn)
	if err != nil {
		return err
	}
	if err := project.RememberInstance(opts.configPath, &cfg, input); err != nil {
		logger.Warn("failed to update recent instances", "error", err)
	}
	if err := applyOverrides(inst, fs.Args()[2:]); err != nil {
		return err
	}

	g, err := engine.Build(inst, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	if output == "-" {
		return format.WriteAFG(stdout, inst, g)
	}
	if err := format.WriteAFGFile(output, inst, g); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "NV: %d NA: %d\n", g.NV, g.NA())
	return nil
}

// loadInstance reads an instance file, or imports an item list and packs
// it into the bin given by the options.
func loadInstance(path string, cfg model.AppConfig, opts options, warn func(string, ...any)) (*model.Instance, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".vbp" || ext == ".mvp" {
		return format.ReadInstanceFileDefaults(path, cfg)
	}

	bin, err := resolveBin(opts)
	if err != nil {
		return nil, err
	}

	var result importer.ImportResult
	switch ext {
	case ".csv":
		result = importer.ImportCSV(path, len(bin.W))
	case ".xlsx":
		result = importer.ImportExcel(path, len(bin.W))
	case ".dxf":
		if len(bin.W) != 1 {
			return nil, fmt.Errorf("DXF drawings are one-dimensional, got a %d-dimensional bin", len(bin.W))
		}
		result = importer.ImportDXF(path)
	default:
		return nil, fmt.Errorf("%w: %q", format.ErrExtension, path)
	}

	for _, w := range result.Warnings {
		warn("import warning", "file", path, "warning", w)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("failed to import %s: %s", path, strings.Join(result.Errors, "; "))
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("no items found in %s", path)
	}

	inst, err := importer.BuildInstance(result.Items, bin)
	if err != nil {
		return nil, err
	}
	inst.Method = cfg.DefaultMethod
	inst.Binary = cfg.DefaultBinary
	if len(cfg.DefaultVType) == 1 {
		inst.VType = cfg.DefaultVType[0]
	}
	return inst, nil
}

// resolveBin returns the bin for imported item lists, from -preset or
// -capacity.
func resolveBin(opts options) (model.BinType, error) {
	if opts.preset != "" {
		presets, err := project.LoadPresets(opts.presetsPath)
		if err != nil {
			return model.BinType{}, fmt.Errorf("failed to load presets: %w", err)
		}
		p, err := project.FindPreset(presets, opts.preset)
		if err != nil {
			return model.BinType{}, err
		}
		return model.BinType{W: p.W, Cost: p.Cost, Quantity: p.Quantity}, nil
	}
	if opts.capacity == "" {
		return model.BinType{}, errors.New("item lists need -capacity or -preset")
	}
	w, err := parseInts(opts.capacity)
	if err != nil {
		return model.BinType{}, fmt.Errorf("invalid capacity: %w", err)
	}
	return model.BinType{W: w, Cost: opts.cost, Quantity: opts.quantity}, nil
}

// savePreset stores the bin given by -capacity, -cost and -quantity under
// the -save-preset name.
func savePreset(opts options) error {
	if opts.capacity == "" {
		return errors.New("-save-preset needs -capacity")
	}
	w, err := parseInts(opts.capacity)
	if err != nil {
		return fmt.Errorf("invalid capacity: %w", err)
	}
	preset := project.BinPreset{Name: opts.savePreset, W: w, Cost: opts.cost, Quantity: opts.quantity}
	if err := project.StorePreset(opts.presetsPath, preset); err != nil {
		return fmt.Errorf("failed to save preset: %w", err)
	}
	return nil
}

// applyOverrides applies the optional positional method, binary and vtype
// arguments.
func applyOverrides(inst *model.Instance, args []string) error {
	if len(args) >= 1 {
		method, err := strconv.Atoi(args[0])
		if err != nil || (method != model.MethodCompressed && method != model.MethodDP) {
			return fmt.Errorf("invalid method %q (want %d or %d)", args[0], model.MethodCompressed, model.MethodDP)
		}
		inst.Method = method
	}
	if len(args) >= 2 {
		binary, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid binary flag %q", args[1])
		}
		inst.Binary = binary != 0
	}
	if len(args) >= 3 {
		v := args[2]
		if v != "I" && v != "C" {
			return fmt.Errorf("invalid vtype %q (want I or C)", v)
		}
		inst.VType = v[0]
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("capacity %d must be positive", n)
		}
		out[i] = n
	}
	return out, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
