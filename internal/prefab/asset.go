package prefab

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"timbertrees/internal/document"
)

// classGameObject and classMonoBehaviour are the serializer class tags the
// resolver cares about: roots and behavior payloads. Everything else in the
// pool (transforms, renderers) is engine furniture.
const (
	classGameObject    = 1
	classMonoBehaviour = 114
)

// blueprintAssetGUID is the script identifier of the asset wrapper some
// overlay packages use to ship declaration JSON inside a serialized asset.
const blueprintAssetGUID = "13adc0e4713bee36fd631781df55c5df"

// docHeader matches one serialized-document header: "--- !u!114 &8926163920243454084",
// optionally marked stripped.
var docHeader = regexp.MustCompile(`^--- !u!(\d+) &(-?\d+)( stripped)?\s*$`)

// Document is one parsed scene-graph file: the root entity plus the flat
// auxiliary pool everything else lives in.
type Document struct {
	Path string
	Root Entry
	Pool *Arena
}

// ParseDocument splits the serializer's multi-document YAML dialect into
// entries and selects the root: the first GameObject in document order. The
// dialect's custom "!u!<class> &<anchor>" headers are consumed here; each
// body is plain YAML.
func ParseDocument(path string, data []byte) (*Document, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pool := NewArena(entries)
	for _, e := range entries {
		if e.ClassID != classGameObject {
			continue
		}
		root, _ := pool.Take(e.Anchor)
		return &Document{Path: path, Root: root, Pool: pool}, nil
	}
	return nil, fmt.Errorf("%s: no root entity in document", path)
}

func parseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	var header []string // classID, anchor of the open chunk
	var body strings.Builder

	flush := func() error {
		if header == nil {
			return nil
		}
		classID, _ := strconv.Atoi(header[0])
		anchor, err := strconv.ParseInt(header[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad anchor %q: %w", header[1], err)
		}
		entry, err := parseEntryBody(classID, anchor, body.String())
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		header = nil
		body.Reset()
		return nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "%") {
			continue // %YAML / %TAG directives
		}
		if m := docHeader.FindStringSubmatch(line); m != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			header = m[1:3]
			continue
		}
		if header != nil {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no serialized entries found")
	}
	return entries, nil
}

func parseEntryBody(classID int, anchor int64, body string) (Entry, error) {
	if strings.TrimSpace(body) == "" {
		// Stripped entries carry no payload; keep them addressable so anchor
		// references to them resolve to an empty body instead of a miss.
		return Entry{Anchor: anchor, ClassID: classID, Doc: document.Map(nil)}, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(body), &node); err != nil {
		return Entry{}, fmt.Errorf("entry &%d: %w", anchor, err)
	}
	doc, err := document.FromYAMLNode(&node)
	if err != nil {
		return Entry{}, fmt.Errorf("entry &%d: %w", anchor, err)
	}
	if doc.Kind() != document.KindMap || doc.Len() != 1 {
		return Entry{}, fmt.Errorf("entry &%d: want a single class-keyed map, got %s", anchor, doc.Kind())
	}
	var className string
	for k := range doc.AsMap() {
		className = k
	}
	return Entry{Anchor: anchor, ClassID: classID, ClassName: className, Doc: doc}, nil
}

// ExtractEmbeddedDeclaration pulls the declaration JSON out of an asset
// wrapper document: a MonoBehaviour whose script is the blueprint-asset
// wrapper, carrying the raw JSON in its _content field. Overlay packages
// that ship exported assets instead of plain declaration files go through
// here.
func ExtractEmbeddedDeclaration(path string, data []byte) ([]byte, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, e := range entries {
		if e.ClassID != classMonoBehaviour {
			continue
		}
		body := e.Body()
		script, _ := body.Field("m_Script")
		guid, _ := script.Field("guid")
		if guid.Kind() != document.KindString || guid.AsString() != blueprintAssetGUID {
			return nil, fmt.Errorf("%s: unrecognized wrapper script guid %s", path, guid)
		}
		content, ok := body.Field("_content")
		if !ok || content.Kind() != document.KindString {
			return nil, fmt.Errorf("%s: wrapper has no _content payload", path)
		}
		return []byte(content.AsString()), nil
	}
	return nil, fmt.Errorf("%s: no behavior entry in wrapper asset", path)
}
