package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/piwi3910/arcflow/internal/project"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// baseArgs points the command at a config file inside the test directory,
// so the defaults apply regardless of the user's home directory.
func baseArgs(dir string) []string {
	return []string{"-config", filepath.Join(dir, "missing.json")}
}

func TestRun_VBP(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "sample.vbp", "1\n10\n2\n3 4\n5 2\n")
	output := filepath.Join(dir, "sample.afg")

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir), input, output)
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "NV: ") {
		t.Errorf("expected graph size on stdout, got %q", stdout.String())
	}

	inst, g, err := format.ReadAFGFile(output)
	if err != nil {
		t.Fatalf("failed to read graph back: %v", err)
	}
	if inst.M != 2 {
		t.Errorf("expected 2 item types, got %d", inst.M)
	}
	if g.NA() == 0 {
		t.Error("expected a non-empty graph")
	}
}

func TestRun_Stdout(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "sample.vbp", "1 10 1 10 1")

	var stdout, stderr bytes.Buffer
	if err := run(append(baseArgs(dir), input, "-"), &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "#INSTANCE_BEGIN#\n") {
		t.Errorf("expected .afg text on stdout, got %q", stdout.String())
	}
}

func TestRun_Overrides(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "sample.vbp", "1 10 2 3 4 5 2")
	output := filepath.Join(dir, "sample.afg")

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir), input, output, "-1", "1", "C")
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	inst, _, err := format.ReadAFGFile(output)
	if err != nil {
		t.Fatalf("failed to read graph back: %v", err)
	}
	if inst.Method != model.MethodDP {
		t.Errorf("expected method %d, got %d", model.MethodDP, inst.Method)
	}
	if !inst.Binary {
		t.Error("expected binary instance")
	}
	if inst.VType != model.VTypeContinuous {
		t.Errorf("expected vtype C, got %c", inst.VType)
	}
}

func TestRun_CSVWithCapacity(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "items.csv", "Label,Length,Demand\nShelf,6,2\nDoor,4,1\n")
	output := filepath.Join(dir, "items.afg")

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir), "-capacity", "10", "-cost", "3", input, output)
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	inst, _, err := format.ReadAFGFile(output)
	if err != nil {
		t.Fatalf("failed to read graph back: %v", err)
	}
	if len(inst.Bins) != 1 || inst.Bins[0].W[0] != 10 || inst.Bins[0].Cost != 3 {
		t.Errorf("unexpected bins %+v", inst.Bins)
	}
	if inst.M != 2 || inst.Demands[0] != 2 {
		t.Errorf("unexpected items: m=%d demands=%v", inst.M, inst.Demands)
	}
}

func TestRun_CSVWithPreset(t *testing.T) {
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets.json")
	err := project.SavePresets(presets, []project.BinPreset{{Name: "Board", W: []int{12, 8}, Cost: 2, Quantity: 5}})
	if err != nil {
		t.Fatalf("failed to save presets: %v", err)
	}
	input := writeFile(t, dir, "items.csv", "Label,W1,W2,Qty\nA,6,4,2\nB,4,8,1\n")
	output := filepath.Join(dir, "items.afg")

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir), "-presets", presets, "-preset", "board", input, output)
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	inst, _, err := format.ReadAFGFile(output)
	if err != nil {
		t.Fatalf("failed to read graph back: %v", err)
	}
	if inst.NDims != 2 || inst.Bins[0].Quantity != 5 {
		t.Errorf("expected the preset bin, got ndims=%d bins=%+v", inst.NDims, inst.Bins)
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	vbp := writeFile(t, dir, "sample.vbp", "1 10 1 10 1")
	csv := writeFile(t, dir, "items.csv", "Label,Length,Demand\nShelf,6,2\n")
	bad := writeFile(t, dir, "items.txt", "")
	out := filepath.Join(dir, "out.afg")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing output", []string{vbp}, "expected an instance"},
		{"bad method", []string{vbp, out, "3"}, "invalid method"},
		{"bad vtype", []string{vbp, out, "-2", "0", "X"}, "invalid vtype"},
		{"bad output extension", []string{vbp, filepath.Join(dir, "out.txt")}, "extension"},
		{"item list without bin", []string{csv, out}, "-capacity or -preset"},
		{"bad capacity", []string{"-capacity", "10,x", csv, out}, "invalid capacity"},
		{"unknown preset", []string{"-presets", filepath.Join(dir, "none.json"), "-preset", "x", csv, out}, "preset not found"},
		{"unknown input", []string{"-capacity", "10", bad, out}, "extension"},
		{"save preset without capacity", []string{"-save-preset", "p", vbp, out}, "-save-preset needs -capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(append(baseArgs(dir), tt.args...), &stdout, &stderr)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestRun_RemembersInstance(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "a.vbp", "1 10 1 10 1")
	second := writeFile(t, dir, "b.vbp", "1 10 1 5 2")

	var stdout, stderr bytes.Buffer
	for _, input := range []string{first, second} {
		if err := run(append(baseArgs(dir), input, "-"), &stdout, &stderr); err != nil {
			t.Fatalf("run failed: %v", err)
		}
	}

	cfg, err := project.LoadAppConfig(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.RecentInstances) != 2 || cfg.RecentInstances[0] != second || cfg.RecentInstances[1] != first {
		t.Errorf("unexpected recent instances %v", cfg.RecentInstances)
	}
}

func TestRun_SavePreset(t *testing.T) {
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets.json")
	csv := writeFile(t, dir, "items.csv", "Label,Length,Demand\nShelf,6,2\nDoor,4,1\n")

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir), "-presets", presets,
		"-capacity", "12", "-cost", "2", "-quantity", "7", "-save-preset", "Plank",
		csv, filepath.Join(dir, "first.afg"))
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	loaded, err := project.LoadPresets(presets)
	if err != nil {
		t.Fatalf("failed to load presets: %v", err)
	}
	p, err := project.FindPreset(loaded, "plank")
	if err != nil {
		t.Fatalf("preset not stored: %v", err)
	}
	if len(p.W) != 1 || p.W[0] != 12 || p.Cost != 2 || p.Quantity != 7 {
		t.Errorf("unexpected preset %+v", p)
	}

	// the stored preset packs the same list on a later run
	out := filepath.Join(dir, "second.afg")
	args = append(baseArgs(dir), "-presets", presets, "-preset", "plank", csv, out)
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run with saved preset failed: %v", err)
	}
	inst, _, err := format.ReadAFGFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Bins[0].W[0] != 12 || inst.Bins[0].Cost != 2 {
		t.Errorf("unexpected bin %+v", inst.Bins[0])
	}
}
