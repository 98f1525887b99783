// Package pipeline wires a run end to end: discover sources, load and merge
// declarations into the resolved snapshot (or pull it from cache), then
// render every requested language and faction. Loading is parallel; merging
// is strictly sequential because fold order is load-bearing.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"timbertrees/internal/cache"
	"timbertrees/internal/catalog"
	"timbertrees/internal/document"
	"timbertrees/internal/model"
	"timbertrees/internal/render"
	"timbertrees/internal/source"
)

// Options is the run configuration, one field per CLI flag.
type Options struct {
	DataDirs []string
	ModDirs  []string
	Output   string

	// Languages to generate; empty means enUS, "all" means every language
	// the sources ship.
	Languages []string

	// GraphGroupingThreshold splits a building's recipes into separate graph
	// clusters once it produces more than this many.
	GraphGroupingThreshold int

	// SrcLink references style.css instead of embedding it.
	SrcLink bool

	// NoCache forces a full rebuild even when a cached snapshot matches.
	NoCache bool
	// CacheDir holds the snapshot cache files; empty disables caching.
	CacheDir string
}

type Pipeline struct {
	log  *zap.Logger
	opts Options
}

func New(log *zap.Logger, opts Options) *Pipeline {
	return &Pipeline{log: log, opts: opts}
}

// Run executes one full generation pass.
func (p *Pipeline) Run(ctx context.Context) error {
	layout, err := source.Discover(p.log, p.opts.DataDirs, p.opts.ModDirs)
	if err != nil {
		return err
	}

	snap, fromCache, err := p.snapshot(ctx, layout)
	if err != nil {
		return err
	}
	if !fromCache && p.opts.CacheDir != "" {
		path := cache.Path(p.opts.CacheDir, cache.Key(layout.Versions))
		if err := cache.Store(p.log, path, snap); err != nil {
			p.log.Warn("cannot write cache", zap.Error(err))
		}
	}

	languages, err := p.languages(layout)
	if err != nil {
		return err
	}
	return p.render(layout, snap, languages)
}

func (p *Pipeline) snapshot(ctx context.Context, layout *source.Layout) (*model.Snapshot, bool, error) {
	if !p.opts.NoCache && p.opts.CacheDir != "" {
		path := cache.Path(p.opts.CacheDir, cache.Key(layout.Versions))
		if snap, ok := cache.Load(p.log, path, layout.Versions); ok {
			return snap, true, nil
		}
	}
	snap, err := p.build(ctx, layout)
	return snap, false, err
}

// languages resolves the requested language list against what the sources
// actually ship.
func (p *Pipeline) languages(layout *source.Layout) ([]string, error) {
	available, err := catalog.Languages(layout.Sources)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("no localization tables found; is the data directory right?")
	}
	requested := p.opts.Languages
	if len(requested) == 0 {
		requested = []string{"enUS"}
	}
	if len(requested) == 1 && strings.EqualFold(requested[0], "all") {
		return available, nil
	}
	known := make(map[string]bool, len(available))
	for _, l := range available {
		known[l] = true
	}
	for _, l := range requested {
		if !known[l] {
			return nil, fmt.Errorf("unknown language %q (available: %s)", l, strings.Join(available, ", "))
		}
	}
	return requested, nil
}

func (p *Pipeline) render(layout *source.Layout, snap *model.Snapshot, languages []string) error {
	if err := os.MkdirAll(p.opts.Output, 0o755); err != nil {
		return err
	}
	index := render.NewIndex()
	for _, language := range languages {
		cat, err := catalog.Load(p.log, layout.Sources, language)
		if err != nil {
			return err
		}
		languageName := cat.Get("Settings.Language.Name")
		for _, slug := range snap.FactionSlugs() {
			if skipFaction(snap.Factions[slug]) {
				p.log.Info("skipping faction", zap.String("faction", slug), zap.String("language", language))
				continue
			}
			if err := p.renderFaction(snap, cat, index, language, languageName, slug); err != nil {
				return err
			}
		}
	}

	versions := make([]document.Value, 0, len(layout.Versions))
	for _, id := range layout.SortedVersionIDs() {
		versions = append(versions, layout.Versions[id])
	}
	return p.writeFile("index.html", func(w *os.File) error {
		return index.Render(w, versions)
	})
}

func (p *Pipeline) renderFaction(snap *model.Snapshot, cat *catalog.Catalog, index *render.Index, language, languageName, slug string) error {
	view, err := render.NewView(p.log, cat, snap, slug)
	if err != nil {
		return err
	}
	p.log.Info("generating",
		zap.String("faction", view.FactionID), zap.String("language", language))

	stem := language + "_" + view.FactionID
	outputs := []struct {
		suffix string
		label  string
		render func(*os.File) error
	}{
		{".html", "[html]", func(w *os.File) error {
			return render.NewHTMLRenderer(view, p.opts.SrcLink).Render(w)
		}},
		{".txt", "[txt]", func(w *os.File) error {
			return render.NewTextRenderer(view).Render(w)
		}},
		{".gv", "[gv]", func(w *os.File) error {
			return render.NewGraphRenderer(view, p.opts.GraphGroupingThreshold).Render(w)
		}},
	}
	for _, out := range outputs {
		name := stem + out.suffix
		if err := p.writeFile(name, out.render); err != nil {
			return err
		}
		index.Add(languageName, view.FactionID, view.FactionName(), out.label, name)
	}
	return nil
}

func (p *Pipeline) writeFile(name string, write func(*os.File) error) error {
	path := filepath.Join(p.opts.Output, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return f.Close()
}

// skipFaction reports whether a faction is a placeholder that must not
// render. The data marks these with an avatar asset name ending in "NO".
func skipFaction(faction document.Value) bool {
	spec, _ := faction.Field("FactionSpec")
	avatar, _ := spec.Field("NewGameFullAvatar")
	return strings.HasSuffix(avatar.AsString(), "NO")
}
