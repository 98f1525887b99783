package source

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
	"timbertrees/internal/prefab"
)

const (
	declSuffixJSON  = ".blueprint.json"
	declSuffixAsset = ".blueprint.asset"
)

// kindAliases lists the alternate filename stems overlay packages are known
// to use for a canonical kind. The plural form is accepted for every kind.
var kindAliases = map[string][]string{
	"blockobjecttoolgroup": {"toolgroup"},
}

// Scanner finds and loads declaration files across sources. File reads and
// parses run on a bounded worker pool; the results come back in a
// deterministic order so the sequential fold downstream is reproducible.
type Scanner struct {
	log   *zap.Logger
	limit int
}

func NewScanner(log *zap.Logger) *Scanner {
	return &Scanner{log: log, limit: runtime.GOMAXPROCS(0)}
}

// candidate is one declaration file found during the walk, before parsing.
type candidate struct {
	source   Source
	path     string
	slug     string
	optional bool
	asset    bool
}

// LoadKind loads every declaration of one kind from every source. The result
// is ordered by (source priority, path) regardless of worker scheduling.
func (s *Scanner) LoadKind(ctx context.Context, sources []Source, kind string) ([]blueprint.RawDeclaration, error) {
	var candidates []candidate
	for _, src := range sources {
		fsys, closer, err := src.DeclarationFS()
		if err != nil {
			return nil, err
		}
		found, err := findDeclarations(fsys, src, kind)
		if cerr := closer(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("scanning %s in %s: %w", kind, src.Dir, err)
		}
		candidates = append(candidates, found...)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].source.Priority != candidates[j].source.Priority {
			return candidates[i].source.Priority < candidates[j].source.Priority
		}
		return candidates[i].path < candidates[j].path
	})

	decls := make([]blueprint.RawDeclaration, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, c := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := s.loadCandidate(c)
			if err != nil {
				return err
			}
			decls[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decls, nil
}

func findDeclarations(fsys fs.FS, src Source, kind string) ([]candidate, error) {
	var out []candidate
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		slug, optional, asset, ok := parseDeclName(path.Base(p), kind)
		if !ok {
			return nil
		}
		out = append(out, candidate{source: src, path: p, slug: slug, optional: optional, asset: asset})
		return nil
	})
	return out, err
}

// parseDeclName splits a declaration filename "<Kind>.<name>[.optional]
// .blueprint.json" into its slug and flags. Exported-asset variants carry the
// ".blueprint.asset" suffix instead and hold their JSON embedded.
func parseDeclName(base, kind string) (slug string, optional, asset, ok bool) {
	lower := strings.ToLower(base)
	var rest string
	switch {
	case strings.HasSuffix(lower, declSuffixJSON):
		rest = strings.TrimSuffix(lower, declSuffixJSON)
	case strings.HasSuffix(lower, declSuffixAsset):
		rest = strings.TrimSuffix(lower, declSuffixAsset)
		asset = true
	default:
		return "", false, false, false
	}
	kindPart, name, found := strings.Cut(rest, ".")
	if !found || name == "" || !kindMatches(kindPart, kind) {
		return "", false, false, false
	}
	if strings.HasSuffix(name, ".optional") {
		optional = true
		name = strings.TrimSuffix(name, ".optional")
	}
	return name, optional, asset, true
}

func kindMatches(stem, kind string) bool {
	kind = strings.ToLower(kind)
	if stem == kind || stem == kind+"s" {
		return true
	}
	for _, alias := range kindAliases[kind] {
		if stem == alias {
			return true
		}
	}
	return false
}

func (s *Scanner) loadCandidate(c candidate) (blueprint.RawDeclaration, error) {
	fsys, closer, err := c.source.DeclarationFS()
	if err != nil {
		return blueprint.RawDeclaration{}, err
	}
	defer closer()

	data, err := fs.ReadFile(fsys, c.path)
	if err != nil {
		return blueprint.RawDeclaration{}, fmt.Errorf("read %s: %w", c.path, err)
	}
	data = stripBOM(data)
	if c.asset {
		data, err = prefab.ExtractEmbeddedDeclaration(c.path, data)
		if err != nil {
			return blueprint.RawDeclaration{}, err
		}
	}
	doc, err := document.FromJSON(data)
	if err != nil {
		return blueprint.RawDeclaration{}, fmt.Errorf("parse %s: %w", c.path, err)
	}
	s.log.Debug("loaded declaration",
		zap.String("path", c.path), zap.String("source", c.source.Name))
	return blueprint.RawDeclaration{
		SourcePath: c.source.Name + ":" + c.path,
		Priority:   c.source.Priority,
		Optional:   c.optional,
		Slug:       c.slug,
		Doc:        doc,
	}, nil
}

// LoadTemplate loads every copy of one template file across the sources. The
// relative path comes from a template collection and carries no extension;
// ".json" is tried first, then the exported-asset form. A template present in
// no source returns an empty slice.
func (s *Scanner) LoadTemplate(sources []Source, relPath string) ([]blueprint.RawDeclaration, error) {
	stem := path.Base(relPath)
	var decls []blueprint.RawDeclaration
	for _, src := range sources {
		fsys, closer, err := src.DeclarationFS()
		if err != nil {
			return nil, err
		}
		d, found, err := readTemplateFile(fsys, src, relPath, stem)
		if cerr := closer(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		if found {
			decls = append(decls, d)
		}
	}
	return decls, nil
}

func readTemplateFile(fsys fs.FS, src Source, relPath, stem string) (blueprint.RawDeclaration, bool, error) {
	for _, name := range []string{relPath + ".json", relPath + declSuffixAsset} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			continue
		}
		data = stripBOM(data)
		if strings.HasSuffix(name, declSuffixAsset) {
			data, err = prefab.ExtractEmbeddedDeclaration(name, data)
			if err != nil {
				return blueprint.RawDeclaration{}, false, err
			}
		}
		doc, err := document.FromJSON(data)
		if err != nil {
			return blueprint.RawDeclaration{}, false, fmt.Errorf("parse %s: %w", name, err)
		}
		return blueprint.RawDeclaration{
			SourcePath: src.Name + ":" + name,
			Priority:   src.Priority,
			Slug:       strings.ToLower(stem),
			Doc:        doc,
		}, true, nil
	}
	return blueprint.RawDeclaration{}, false, nil
}

// ReadFirst reads a file by exact relative path from the highest-priority
// source that has it. The second result names the winning source.
func (s *Scanner) ReadFirst(sources []Source, name string) ([]byte, string, bool, error) {
	for i := len(sources) - 1; i >= 0; i-- {
		fsys, closer, err := sources[i].DeclarationFS()
		if err != nil {
			return nil, "", false, err
		}
		data, err := fs.ReadFile(fsys, name)
		closer()
		if err != nil {
			continue
		}
		return stripBOM(data), sources[i].Name, true, nil
	}
	return nil, "", false, nil
}

// BuildMetaTable indexes every asset GUID declared by the sources' metadata
// companion files. Later sources never displace earlier registrations.
func (s *Scanner) BuildMetaTable(ctx context.Context, sources []Source) (*prefab.MetaTable, error) {
	meta := prefab.NewMetaTable()
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fsys, closer, err := src.DeclarationFS()
		if err != nil {
			return nil, err
		}
		err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(p, ".meta") {
				return err
			}
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			meta.AddMetaFile(p, stripBOM(data))
			return nil
		})
		if cerr := closer(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("indexing metadata in %s: %w", src.Dir, err)
		}
	}
	s.log.Debug("metadata table built", zap.Int("guids", meta.Len()))
	return meta, nil
}
