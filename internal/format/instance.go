package format

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/piwi3910/arcflow/internal/model"
)

// Kind selects the instance text layout.
type Kind int

const (
	// VBP holds a single bin type and one option per item type.
	VBP Kind = iota
	// MVP holds several bin types with costs and quantities and item
	// types with one or more options.
	MVP
)

const instanceEnd = "#INSTANCE_END#"

// Limits on header counts read from untrusted input.
const (
	MaxDims    = 1 << 10
	MaxOptions = 1 << 16
)

// KindFromPath returns the instance kind for a .vbp or .mvp file name.
func KindFromPath(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vbp":
		return VBP, nil
	case ".mvp":
		return MVP, nil
	}
	return 0, fmt.Errorf("%w: %q (want .vbp or .mvp)", ErrExtension, path)
}

// ParseKind converts "vbp" or "mvp" to a Kind.
func ParseKind(s string) (Kind, error) {
	return KindFromPath("." + s)
}

// ReadInstanceFile reads and normalizes the instance stored at path.
func ReadInstanceFile(path string) (*model.Instance, error) {
	return ReadInstanceFileDefaults(path, model.DefaultAppConfig())
}

// ReadInstanceFileDefaults is ReadInstanceFile with the build options that
// the file does not set taken from cfg.
func ReadInstanceFileDefaults(path string, cfg model.AppConfig) (*model.Instance, error) {
	kind, err := KindFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open instance: %w", err)
	}
	defer f.Close()
	inst, err := ReadInstanceDefaults(f, kind, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}

// ReadInstance parses and normalizes an instance.
func ReadInstance(r io.Reader, kind Kind) (*model.Instance, error) {
	return ReadInstanceDefaults(r, kind, model.DefaultAppConfig())
}

// ReadInstanceDefaults parses and normalizes an instance, taking the build
// options that the input does not set from cfg.
func ReadInstanceDefaults(r io.Reader, kind Kind, cfg model.AppConfig) (*model.Instance, error) {
	inst, err := parseInstance(newTokenizer(r), kind, cfg)
	if err != nil {
		return nil, err
	}
	if err := inst.Normalize(); err != nil {
		return nil, err
	}
	return inst, nil
}

func parseInstance(tok *tokenizer, kind Kind, cfg model.AppConfig) (*model.Instance, error) {
	ndims, err := tok.int("NDIMS")
	if err != nil {
		return nil, err
	}
	if ndims < 1 || ndims > MaxDims {
		return nil, tok.errorf("NDIMS must be in [1, %d], got %d", MaxDims, ndims)
	}
	inst := model.NewInstance(ndims)
	cfg.ApplyToInstance(inst)

	nbtypes := 1
	if kind == MVP {
		if nbtypes, err = tok.int("NBTYPES"); err != nil {
			return nil, err
		}
		if nbtypes < 1 {
			return nil, tok.errorf("NBTYPES must be positive, got %d", nbtypes)
		}
	}
	for t := 0; t < nbtypes; t++ {
		w, err := tok.ints(ndims, "bin capacity")
		if err != nil {
			return nil, err
		}
		cost, quantity := 1, -1
		if kind == MVP {
			if cost, err = tok.int("bin cost"); err != nil {
				return nil, err
			}
			if quantity, err = tok.int("bin quantity"); err != nil {
				return nil, err
			}
		}
		inst.AddBinType(w, cost, quantity)
	}

	m, err := tok.int("M")
	if err != nil {
		return nil, err
	}
	if m < 0 {
		return nil, tok.errorf("M must not be negative, got %d", m)
	}
	for i := 0; i < m; i++ {
		if kind == VBP {
			w, err := tok.ints(ndims, "item weight")
			if err != nil {
				return nil, err
			}
			b, err := tok.int("item demand")
			if err != nil {
				return nil, err
			}
			inst.AddItemType(b, w)
			continue
		}
		q, err := tok.int("number of options")
		if err != nil {
			return nil, err
		}
		if q < 1 || q > MaxOptions {
			return nil, tok.errorf("item type %d has %d options", i+1, q)
		}
		b, err := tok.int("item demand")
		if err != nil {
			return nil, err
		}
		var opts [][]int
		for k := 0; k < q; k++ {
			w, err := tok.ints(ndims, "option weight")
			if err != nil {
				return nil, err
			}
			opts = append(opts, w)
		}
		inst.AddItemType(b, opts...)
	}

	if err := parseTrailer(tok, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// parseTrailer reads the optional keyword section that follows the items.
func parseTrailer(tok *tokenizer, inst *model.Instance) error {
	for {
		key, err := tok.next()
		if err == io.EOF || key == instanceEnd {
			return nil
		}
		if err != nil {
			return err
		}
		switch key {
		case "VTYPE:":
			v, err := tok.next()
			if err != nil || len(v) != 1 {
				return tok.errorf("invalid VTYPE")
			}
			inst.VType = v[0]
		case "CTYPE:":
			for i := 0; i < inst.M; i++ {
				c, err := tok.next()
				if err != nil || len(c) != 1 || !strings.Contains("=>*", c) {
					return tok.errorf("invalid CTYPE for item type %d", i+1)
				}
				inst.CTypes[i] = c[0]
			}
		case "IDS:":
			for i := range inst.Items {
				id, err := tok.int("item id")
				if err != nil {
					return err
				}
				inst.Items[i].ID = id
			}
		case "SORT:", "RELAX:", "BINARY:":
			v, err := tok.int(key)
			if err != nil {
				return err
			}
			if v != 0 && v != 1 {
				return tok.errorf("%s must be 0 or 1, got %d", key, v)
			}
			switch key {
			case "SORT:":
				inst.Sort = v == 1
			case "RELAX:":
				inst.Relax = v == 1
			default:
				inst.Binary = v == 1
			}
		case "METHOD:":
			v, err := tok.int(key)
			if err != nil {
				return err
			}
			inst.Method = v
		default:
			return tok.errorf("invalid option %q", key)
		}
	}
}

// WriteInstance writes inst in the labelled .mvp layout, including every
// trailer option. Items are written grouped by type so that the output
// reads back into the same instance.
func WriteInstance(w io.Writer, inst *model.Instance) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "NDIMS: %d\n", inst.NDims)
	fmt.Fprintf(bw, "NBTYPES: %d\n", inst.NBTypes())
	for _, b := range inst.Bins {
		fmt.Fprintf(bw, "Wi: %s Ci: %d Qi: %d\n", joinInts(b.W), b.Cost, b.Quantity)
	}
	fmt.Fprintf(bw, "M: %d\n", inst.M)
	items := inputOrder(inst)
	p := 0
	for i := 0; i < inst.M; i++ {
		fmt.Fprintf(bw, "qi: %d bi: %d\n", inst.NOpts[i], inst.Demands[i])
		for q := 0; q < inst.NOpts[i]; q++ {
			fmt.Fprintf(bw, "wi: %s\n", joinInts(items[p].W))
			p++
		}
	}
	fmt.Fprintf(bw, "VTYPE: %c\n", inst.VType)
	ctypes := make([]string, len(inst.CTypes))
	for i, c := range inst.CTypes {
		ctypes[i] = string(c)
	}
	fmt.Fprintf(bw, "CTYPE: %s\n", strings.Join(ctypes, " "))
	fmt.Fprintf(bw, "SORT: %d\n", boolInt(inst.Sort))
	fmt.Fprintf(bw, "METHOD: %d\n", inst.Method)
	fmt.Fprintf(bw, "RELAX: %d\n", boolInt(inst.Relax))
	fmt.Fprintf(bw, "BINARY: %d\n", boolInt(inst.Binary))
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	fmt.Fprintf(bw, "IDS: %s\n", joinInts(ids))
	return bw.Flush()
}

// WriteInstanceFile writes inst to path.
func WriteInstanceFile(path string, inst *model.Instance) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create instance file: %w", err)
	}
	if err := WriteInstance(f, inst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// inputOrder returns the items grouped by type, options in order.
func inputOrder(inst *model.Instance) []model.Item {
	items := append([]model.Item(nil), inst.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].Opt < items[j].Opt
	})
	return items
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
