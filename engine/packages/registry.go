package packages

import (
	"fmt"
	"io"
	"io/fs"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/resources"
)

// Registry resolves asset paths to entries and global ids. It is owned by a
// pipeline and passed in explicitly; there is no process-wide instance.
type Registry struct {
	ids    *core.Identifiers
	byPath map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{
		ids:    core.NewIdentifiers(64),
		byPath: make(map[string]*Entry),
	}
}

// AssetConfig is the manifest form of an entry.
type AssetConfig struct {
	Path    string                    `toml:"path"`
	Type    string                    `toml:"type"`
	Cooked  bool                      `toml:"cooked,omitempty"`
	Imports []string                  `toml:"imports,omitempty"`
	Tag     []uint32                  `toml:"tag,omitempty"`
	Keys    map[string]any            `toml:"keys,omitempty"`
	Targets map[string]map[string]any `toml:"targets,omitempty"`

	// Meta names a loose "key = value" file whose keys sit under Keys.
	Meta string `toml:"meta,omitempty"`
}

type Manifest struct {
	Name   string        `toml:"name"`
	Assets []AssetConfig `toml:"asset"`
}

// Add registers a new entry and assigns its id.
func (r *Registry) Add(cfg AssetConfig) (*Entry, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("asset without path")
	}
	if _, ok := r.byPath[cfg.Path]; ok {
		return nil, fmt.Errorf("asset %q registered twice", cfg.Path)
	}
	t := resources.ParseAssetType(cfg.Type)
	if t == resources.AssetTypeUnknown {
		return nil, fmt.Errorf("asset %q: unknown type %q", cfg.Path, cfg.Type)
	}
	e := &Entry{
		Path:     cfg.Path,
		Type:     t,
		Cooked:   cfg.Cooked,
		Imports:  cfg.Imports,
		Tag:      cfg.Tag,
		keys:     flatten(cfg.Keys),
		targets:  make(map[string]map[string]string, len(cfg.Targets)),
		registry: r,
	}
	for name, keys := range cfg.Targets {
		e.targets[name] = flatten(keys)
	}
	e.ID = r.ids.Acquire(e)
	r.byPath[e.Path] = e
	return e, nil
}

func (r *Registry) Remove(path string) {
	e, ok := r.byPath[path]
	if !ok {
		return
	}
	delete(r.byPath, path)
	if err := r.ids.Release(e.ID); err != nil {
		core.LogWarn("registry: %s", err)
	}
	e.registry = nil
}

func (r *Registry) Resolve(path string) (*Entry, bool) {
	e, ok := r.byPath[path]
	return e, ok
}

// ResolveID returns -1 when the path is unknown.
func (r *Registry) ResolveID(path string) int {
	if e, ok := r.byPath[path]; ok {
		return e.ID
	}
	return -1
}

func (r *Registry) Entry(id int) (*Entry, bool) {
	e, ok := r.ids.Owner(id).(*Entry)
	return e, ok
}

// Entries returns every entry ordered by id.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.byPath))
	for _, e := range r.byPath {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadManifest reads a TOML manifest from fsys and registers its assets in
// file order.
func (r *Registry) LoadManifest(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	for _, a := range m.Assets {
		if a.Meta != "" {
			if a.Keys, err = mergeMetaFile(fsys, a.Meta, a.Keys); err != nil {
				return nil, fmt.Errorf("manifest %s: asset %q: %w", name, a.Path, err)
			}
		}
		if _, err := r.Add(a); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", name, err)
		}
	}
	core.LogDebug("manifest %s: registered %d assets", name, len(m.Assets))
	return &m, nil
}

// mergeMetaFile loads a key/value file and lays keys over it.
func mergeMetaFile(fsys fs.FS, path string, keys map[string]any) (map[string]any, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	loose, err := parseKeyValue(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	merged := make(map[string]any, len(loose)+len(keys))
	for k, v := range loose {
		merged[k] = v
	}
	for k, v := range keys {
		merged[k] = v
	}
	return merged, nil
}

// Config converts an entry back to its manifest form.
func (e *Entry) Config() AssetConfig {
	cfg := AssetConfig{
		Path:    e.Path,
		Type:    e.Type.String(),
		Cooked:  e.Cooked,
		Imports: e.Imports,
		Tag:     e.Tag,
	}
	if len(e.keys) > 0 {
		cfg.Keys = make(map[string]any, len(e.keys))
		for k, v := range e.keys {
			cfg.Keys[k] = v
		}
	}
	for name, keys := range e.targets {
		if cfg.Targets == nil {
			cfg.Targets = make(map[string]map[string]any)
		}
		t := make(map[string]any, len(keys))
		for k, v := range keys {
			t[k] = v
		}
		cfg.Targets[name] = t
	}
	return cfg
}

// WriteManifest encodes m as TOML.
func WriteManifest(w io.Writer, m *Manifest) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(m)
}

// flatten turns nested TOML tables (from unquoted dotted keys) back into
// dotted key names and stringifies scalar values.
func flatten(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			switch vv := v.(type) {
			case map[string]any:
				walk(k, vv)
			default:
				out[k] = fmt.Sprint(vv)
			}
		}
	}
	walk("", in)
	return out
}
