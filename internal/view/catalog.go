package view

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"tradedesk/internal/gateway/accountapi"
	"tradedesk/internal/logger"
)

// FileConfig is the optional catalog file. Views replace builtin views of the
// same name; a non-empty pages list replaces the builtin menu.
type FileConfig struct {
	Views map[string]Definition `yaml:"views"`
	Pages []Page                `yaml:"pages"`
}

// Snapshot is an immutable copy of the catalog.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Views    map[string]Definition
	Pages    []Page
}

type ChangeListener func(Snapshot)

// Catalog holds the view and page definitions. With a path it watches the
// file and reloads on change; a failed reload keeps the previous snapshot.
type Catalog struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewCatalog loads the builtin definitions merged with the file at path.
// An empty path uses the builtin catalog only.
func NewCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: strings.TrimSpace(path)}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Watch starts reloading the catalog file when it changes.
func (c *Catalog) Watch() error {
	if c.path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(c.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read view catalog failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := c.reload(); err != nil {
			logger.Errorf("view catalog reload failed (%s): %v", evt.Name, err)
			return
		}
		c.notifyListeners()
	})
	v.WatchConfig()
	c.v = v
	return nil
}

// OnChange registers a listener called after each successful reload.
func (c *Catalog) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSnapshot(c.snapshot)
}

func (c *Catalog) View(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.snapshot.Views[normalizeName(name)]
	return def, ok
}

func (c *Catalog) Page(name string) (Page, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name = normalizeName(name)
	for _, p := range c.snapshot.Pages {
		if p.Name == name {
			return p, true
		}
	}
	return Page{}, false
}

func (c *Catalog) Pages() []Page {
	return c.Snapshot().Pages
}

// Views lists definitions in endpoint menu order, then by name.
func (c *Catalog) Views() []Definition {
	snap := c.Snapshot()
	out := make([]Definition, 0, len(snap.Views))
	for _, def := range snap.Views {
		out = append(out, def)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := endpointRank(out[i].Endpoint), endpointRank(out[j].Endpoint)
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (c *Catalog) reload() error {
	views := Builtin()
	pages := BuiltinPages()
	if c.path != "" {
		file, err := readCatalogFile(c.path)
		if err != nil {
			return err
		}
		for name, def := range file.Views {
			if strings.TrimSpace(def.Name) == "" {
				def.Name = name
			}
			views[normalizeName(def.Name)] = def
		}
		if len(file.Pages) > 0 {
			pages = file.Pages
		}
	}
	normalized := make(map[string]Definition, len(views))
	for _, def := range views {
		norm, err := normalizeDefinition(def)
		if err != nil {
			return err
		}
		normalized[norm.Name] = norm
	}
	normPages, err := normalizePages(pages, normalized)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snapshot = Snapshot{
		Version:  c.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Views:    normalized,
		Pages:    normPages,
	}
	c.mu.Unlock()
	source := "builtin"
	if c.path != "" {
		source = filepath.Base(c.path)
	}
	logger.Infof("view catalog loaded %d views, %d pages from %s", len(normalized), len(normPages), source)
	return nil
}

func (c *Catalog) notifyListeners() {
	c.mu.RLock()
	snap := cloneSnapshot(c.snapshot)
	listeners := append([]ChangeListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("view catalog listener")
			cb(snap)
		}(fn)
	}
}

// Normalize validates def and fills its defaults the way catalog entries
// are, compiling its payload schema.
func Normalize(def Definition) (Definition, error) {
	return normalizeDefinition(def)
}

func normalizeDefinition(def Definition) (Definition, error) {
	def.Name = normalizeName(def.Name)
	if def.Name == "" {
		return Definition{}, fmt.Errorf("view without name")
	}
	def.Endpoint = strings.Trim(strings.TrimSpace(def.Endpoint), "/")
	if def.Endpoint == "" {
		def.Endpoint = def.Name
	}
	if def.Title == "" {
		def.Title = humanize(def.Name)
	}
	switch def.Payload {
	case "":
		def.Payload = PayloadArray
	case PayloadArray, PayloadObject:
	default:
		return Definition{}, fmt.Errorf("view %s: unknown payload %q", def.Name, def.Payload)
	}
	cols := make([]Column, 0, len(def.Columns))
	seen := make(map[string]bool, len(def.Columns))
	for _, col := range def.Columns {
		col.Key = strings.TrimSpace(col.Key)
		if col.Key == "" {
			return Definition{}, fmt.Errorf("view %s: column without key", def.Name)
		}
		if seen[strings.ToLower(col.Key)] {
			return Definition{}, fmt.Errorf("view %s: duplicate column %s", def.Name, col.Key)
		}
		seen[strings.ToLower(col.Key)] = true
		if col.Kind == "" {
			col.Kind = KindText
		}
		if !col.Kind.valid() {
			return Definition{}, fmt.Errorf("view %s: column %s has unknown kind %q", def.Name, col.Key, col.Kind)
		}
		if col.Label == "" {
			col.Label = col.Key
		}
		cols = append(cols, col)
	}
	def.Columns = cols
	if def.TimeColumn != "" {
		col, ok := def.Column(def.TimeColumn)
		if !ok {
			return Definition{}, fmt.Errorf("view %s: time_column %s is not a column", def.Name, def.TimeColumn)
		}
		if col.Kind != KindTimestamp && col.Kind != KindDate {
			return Definition{}, fmt.Errorf("view %s: time_column %s must be timestamp or date", def.Name, def.TimeColumn)
		}
		def.TimeColumn = col.Key
	}
	series := make([]SeriesSpec, 0, len(def.Series))
	for i, spec := range def.Series {
		norm, err := normalizeSeries(def, i, spec)
		if err != nil {
			return Definition{}, err
		}
		series = append(series, norm)
	}
	def.Series = series
	if def.Payload == PayloadObject && len(def.Series) > 0 {
		return Definition{}, fmt.Errorf("view %s: object payloads have no series", def.Name)
	}
	schema := def.Schema
	if len(schema) == 0 {
		schema = defaultSchema(def)
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return Definition{}, fmt.Errorf("view %s: schema compile failed: %w", def.Name, err)
	}
	def.schemaCompiled = compiled
	return def, nil
}

func normalizeSeries(def Definition, idx int, spec SeriesSpec) (SeriesSpec, error) {
	if spec.ID == "" {
		spec.ID = fmt.Sprintf("series_%d", idx+1)
	}
	if spec.Title == "" {
		spec.Title = humanize(spec.ID)
	}
	need := func(field, key string) error {
		if key == "" {
			return fmt.Errorf("view %s series %s: %s required", def.Name, spec.ID, field)
		}
		if _, ok := def.Column(key); !ok {
			return fmt.Errorf("view %s series %s: %s %q is not a column", def.Name, spec.ID, field, key)
		}
		return nil
	}
	var err error
	switch spec.Kind {
	case SeriesValue, SeriesCumulative, SeriesBar:
		if err = need("y", spec.Y); err == nil && spec.X != "" {
			err = need("x", spec.X)
		}
		if spec.X == "" {
			spec.X = def.TimeColumn
		}
		if spec.Chart == "" {
			spec.Chart = ChartLine
			if spec.Kind == SeriesBar {
				spec.Chart = ChartBar
			}
		}
	case SeriesGroupSum:
		if err = need("group", spec.Group); err == nil {
			err = need("y", spec.Y)
		}
		if spec.Chart == "" {
			spec.Chart = ChartPie
		}
	case SeriesGroupCount:
		err = need("group", spec.Group)
		if spec.Chart == "" {
			spec.Chart = ChartPie
		}
	case SeriesHistogram:
		err = need("y", spec.Y)
		if spec.Chart == "" {
			spec.Chart = ChartHistogram
		}
	case SeriesScatter:
		if err = need("x", spec.X); err == nil {
			err = need("y", spec.Y)
		}
		if spec.Chart == "" {
			spec.Chart = ChartScatter
		}
	default:
		return SeriesSpec{}, fmt.Errorf("view %s series %s: unknown kind %q", def.Name, spec.ID, spec.Kind)
	}
	if err != nil {
		return SeriesSpec{}, err
	}
	if spec.SMAPeriod < 0 || spec.Bins < 0 {
		return SeriesSpec{}, fmt.Errorf("view %s series %s: negative sma_period or bins", def.Name, spec.ID)
	}
	return spec, nil
}

func normalizePages(pages []Page, views map[string]Definition) ([]Page, error) {
	out := make([]Page, 0, len(pages))
	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		p.Name = normalizeName(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("page without name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate page %s", p.Name)
		}
		seen[p.Name] = true
		if p.Title == "" {
			p.Title = humanize(p.Name)
		}
		if len(p.Views) == 0 {
			return nil, fmt.Errorf("page %s lists no views", p.Name)
		}
		names := make([]string, 0, len(p.Views))
		for _, v := range p.Views {
			v = normalizeName(v)
			if _, ok := views[v]; !ok {
				return nil, fmt.Errorf("page %s references unknown view %s", p.Name, v)
			}
			names = append(names, v)
		}
		p.Views = names
		out = append(out, p)
	}
	return out, nil
}

func readCatalogFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read view catalog failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse view catalog failed: %w", err)
	}
	return cfg, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Views:    make(map[string]Definition, len(src.Views)),
		Pages:    append([]Page(nil), src.Pages...),
	}
	for name, def := range src.Views {
		dst.Views[name] = def
	}
	return dst
}

func endpointRank(endpoint string) int {
	for i, ep := range accountapi.KnownEndpoints {
		if ep == endpoint {
			return i
		}
	}
	return len(accountapi.KnownEndpoints)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func humanize(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
