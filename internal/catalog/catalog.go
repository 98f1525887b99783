// Package catalog loads the per-language localization string tables. Each
// source ships CSV files keyed by "ID"; later sources override earlier ones.
// Lookups never fail: a missing key falls back to a marked best-effort guess
// so a half-translated overlay still renders.
package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"timbertrees/internal/source"
)

// UntranslatedPrefix marks fallback strings produced for keys absent from
// every loaded table.
const UntranslatedPrefix = "Untranslated: "

// pictograms are rendering glyphs that ship with the tool, not the data.
var pictograms = map[string]string{
	"Pictogram.Dwellers":   "\U0001f6cc",
	"Pictogram.Workers":    "\U0001f9ab",
	"Pictogram.Power":      "⚡",
	"Pictogram.Science":    "⚛️",
	"Pictogram.Grows":      "\U0001f331",
	"Pictogram.Dehydrates": "☠️",
	"Pictogram.Drowns":     "\U0001f30a",
	"Pictogram.Matures":    "\U0001f9fa",
	"Pictogram.Aquatic":    "\U0001f4a6",
	"Pictogram.Plantable":  "\U0001f331",
	"Pictogram.Cuttable":   "\U0001fa9a",
	"Pictogram.Gatherable": "\U0001f9fa",
	"Pictogram.Ruin":       "⛓️",
}

// Catalog is one language's resolved string table.
type Catalog struct {
	language string
	entries  map[string]string
}

func (c *Catalog) Language() string { return c.language }

// Get resolves a localization key. Unknown display-name keys guess a readable
// name from the key itself; everything else unknown echoes the key, both
// behind UntranslatedPrefix so the gap is visible in output.
func (c *Catalog) Get(key string) string {
	if text, ok := c.entries[key]; ok {
		return text
	}
	if strings.HasSuffix(key, "DisplayName") {
		suffix := ""
		if strings.HasSuffix(key, "PluralDisplayName") {
			suffix = "s"
		}
		guess := key
		if i := strings.LastIndex(guess, "."); i >= 0 {
			guess = guess[:i]
		}
		if _, after, found := strings.Cut(guess, "."); found {
			guess = after
		}
		return UntranslatedPrefix + guess + suffix
	}
	return UntranslatedPrefix + key
}

// Has reports whether the key is present without triggering the fallback.
func (c *Catalog) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Load folds every source's string table for one language, in source order.
func Load(log *zap.Logger, sources []source.Source, language string) (*Catalog, error) {
	entries := make(map[string]string)
	for _, src := range sources {
		fsys, closer, ok, err := src.LocalizationFS()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		err = loadTables(log, fsys, src, language, entries)
		if cerr := closer(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
	}
	for key, glyph := range pictograms {
		entries[key] = glyph
	}
	return &Catalog{language: language, entries: entries}, nil
}

func loadTables(log *zap.Logger, fsys fs.FS, src source.Source, language string, entries map[string]string) error {
	names, err := tableFiles(fsys)
	if err != nil {
		return fmt.Errorf("scanning localizations in %s: %w", src.Dir, err)
	}
	for _, name := range names {
		if !strings.HasPrefix(path.Base(name), language) {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := parseTable(log, src, name, data, entries); err != nil {
			return err
		}
	}
	return nil
}

func parseTable(log *zap.Logger, src source.Source, name string, data []byte, entries map[string]string) error {
	r := csv.NewReader(bytes.NewReader(stripBOM(data)))
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	idCol, textCol := columnIndex(header, "ID"), columnIndex(header, "Text")
	if idCol < 0 || textCol < 0 {
		return fmt.Errorf("%s: missing ID/Text columns in header %v", name, header)
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if len(row) <= idCol || len(row) <= textCol {
			continue
		}
		key := row[idCol]
		if _, dup := entries[key]; dup && src.IsBase() {
			log.Warn("duplicate localization key",
				zap.String("key", key), zap.String("file", name))
		}
		entries[key] = row[textCol]
	}
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// tableFiles lists the CSV string tables under a localization root in a
// stable order.
func tableFiles(fsys fs.FS) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(path.Ext(p)) {
		case ".csv", ".txt":
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Languages lists every language any source ships a table for, shortest name
// first. Region-suffixed variants ("enUS_extra") are folded away.
func Languages(sources []source.Source) ([]string, error) {
	seen := make(map[string]bool)
	var langs []string
	for _, src := range sources {
		fsys, closer, ok, err := src.LocalizationFS()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		names, err := tableFiles(fsys)
		closer()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			base := path.Base(name)
			stem := strings.TrimSuffix(base, path.Ext(base))
			if strings.Contains(stem, "_") {
				continue
			}
			if !seen[stem] {
				seen[stem] = true
				langs = append(langs, stem)
			}
		}
	}
	sort.Slice(langs, func(i, j int) bool {
		if len(langs[i]) != len(langs[j]) {
			return len(langs[i]) < len(langs[j])
		}
		return langs[i] < langs[j]
	})
	return langs, nil
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xef && data[1] == 0xbb && data[2] == 0xbf {
		return data[3:]
	}
	return data
}
