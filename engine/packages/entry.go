package packages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// CookedPrefix is the namespace cooked binaries live under.
const CookedPrefix = "Cooked/"

var errKeyMissing = errors.New("key not found")

var targetNames = []struct {
	flag core.PhaseFlags
	name string
}{
	{core.TargetPC, "pc"},
	{core.TargetIPhone, "iphone"},
	{core.TargetIPad, "ipad"},
}

// Entry is one asset of a package: its identity, import table and
// target-qualified key/value metadata.
type Entry struct {
	ID      int
	Path    string
	Type    resources.AssetType
	Cooked  bool
	Imports []string
	// Tag holds one TextureTag per image of a cooked texture.
	Tag []uint32

	keys     map[string]string
	targets  map[string]map[string]string
	registry *Registry
}

func (e *Entry) CookedPath() string {
	return CookedPrefix + e.Path + ".bin"
}

// KeyValue returns the value of key, preferring overrides of the first
// matching target in pc, iphone, ipad order.
func (e *Entry) KeyValue(key string, targets core.PhaseFlags) (string, bool) {
	for _, t := range targetNames {
		if !targets.Any(t.flag) {
			continue
		}
		if v, ok := e.targets[t.name][key]; ok {
			return v, true
		}
	}
	v, ok := e.keys[key]
	return v, ok
}

// SetKey sets an untargeted key. Used by tools that edit metadata in place.
func (e *Entry) SetKey(key, value string) {
	if e.keys == nil {
		e.keys = make(map[string]string)
	}
	e.keys[key] = value
}

// ResolveImport maps a local import index to a global asset id.
func (e *Entry) ResolveImport(idx int) (int, error) {
	if idx < 0 || idx >= len(e.Imports) {
		return -1, core.Errorf(core.ParseError, e.Path, "import index %d out of range (%d imports)", idx, len(e.Imports))
	}
	if e.registry == nil {
		return -1, core.Errorf(core.MissingFile, e.Path, "import %q: entry is not registered", e.Imports[idx])
	}
	id := e.registry.ResolveID(e.Imports[idx])
	if id < 0 {
		return -1, core.Errorf(core.MissingFile, e.Path, "import %q not found", e.Imports[idx])
	}
	return id, nil
}

// Meta binds the entry to a target set for typed key lookups.
func (e *Entry) Meta(targets core.PhaseFlags) Meta {
	return Meta{entry: e, targets: targets}
}

// Meta reads typed values. Every failure is a MetaError naming the key.
type Meta struct {
	entry   *Entry
	targets core.PhaseFlags
}

func (m Meta) fail(key string, err error) error {
	return core.KeyError(core.MetaError, m.entry.Path, key, err)
}

func (m Meta) Has(key string) bool {
	_, ok := m.entry.KeyValue(key, m.targets)
	return ok
}

func (m Meta) String(key string) (string, error) {
	v, ok := m.entry.KeyValue(key, m.targets)
	if !ok {
		return "", m.fail(key, errKeyMissing)
	}
	return strings.TrimSpace(v), nil
}

// StringOr returns def when the key is absent.
func (m Meta) StringOr(key, def string) string {
	if v, ok := m.entry.KeyValue(key, m.targets); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (m Meta) Bool(key string) (bool, error) {
	v, err := m.String(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, m.fail(key, fmt.Errorf("invalid bool %q", v))
	}
	return b, nil
}

func (m Meta) Int(key string) (int, error) {
	v, err := m.String(key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, m.fail(key, fmt.Errorf("invalid integer %q", v))
	}
	return i, nil
}

func (m Meta) Float32(key string) (float32, error) {
	v, err := m.String(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, m.fail(key, fmt.Errorf("invalid number %q", v))
	}
	return float32(f), nil
}

// Floats parses a whitespace separated list of exactly n numbers.
func (m Meta) Floats(key string, n int) ([]float64, error) {
	v, err := m.String(key)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(v)
	if len(fields) != n {
		return nil, m.fail(key, fmt.Errorf("want %d values, got %q", n, v))
	}
	out := make([]float64, n)
	for i, f := range fields {
		if out[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, m.fail(key, fmt.Errorf("invalid number %q", f))
		}
	}
	return out, nil
}

// Ints parses a whitespace separated list of exactly n integers.
func (m Meta) Ints(key string, n int) ([]int, error) {
	v, err := m.String(key)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(v)
	if len(fields) != n {
		return nil, m.fail(key, fmt.Errorf("want %d values, got %q", n, v))
	}
	out := make([]int, n)
	for i, f := range fields {
		if out[i], err = strconv.Atoi(f); err != nil {
			return nil, m.fail(key, fmt.Errorf("invalid integer %q", f))
		}
	}
	return out, nil
}

// Enum parses the value against a name table.
func Enum[E ~uint8](m Meta, key string, names []string) (E, error) {
	v, err := m.String(key)
	if err != nil {
		return 0, err
	}
	e, ok := resources.ParseEnum[E](names, v)
	if !ok {
		return 0, m.fail(key, fmt.Errorf("unknown value %q", v))
	}
	return e, nil
}
