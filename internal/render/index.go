package render

import (
	"html/template"
	"io"

	"timbertrees/internal/document"
)

// Index collects the generated pages across languages and factions and
// renders the landing page linking them all. Rows are languages, cells are
// factions; insertion order is preserved so the page follows generation
// order.
type Index struct {
	languages []string
	rows      map[string]*indexRow
}

type indexRow struct {
	factionOrder []string
	cells        map[string]*indexCell
}

type indexCell struct {
	FactionName string
	Links       []indexLink
}

type indexLink struct {
	Label string
	Href  string
}

func NewIndex() *Index {
	return &Index{rows: make(map[string]*indexRow)}
}

// Add registers one generated artifact under its language row and faction
// cell.
func (x *Index) Add(languageName, factionID, factionName, label, href string) {
	row, ok := x.rows[languageName]
	if !ok {
		row = &indexRow{cells: make(map[string]*indexCell)}
		x.rows[languageName] = row
		x.languages = append(x.languages, languageName)
	}
	cell, ok := row.cells[factionID]
	if !ok {
		cell = &indexCell{FactionName: factionName}
		row.cells[factionID] = cell
		row.factionOrder = append(row.factionOrder, factionID)
	}
	cell.Links = append(cell.Links, indexLink{Label: label, Href: href})
}

type indexPage struct {
	Style    template.CSS
	Rows     []indexPageRow
	Versions []indexVersion
}

type indexPageRow struct {
	Language string
	Cells    []*indexCell
}

type indexVersion struct {
	Name    string
	Version string
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Timbertrees</title>
<style>{{.Style}}</style>
</head>
<body>
<h1>Timbertrees</h1>
<table>
{{range .Rows}}<tr>
<th>{{.Language}}</th>
{{range .Cells}}<td class="name">{{$name := .FactionName}}{{range .Links}}<a href="{{.Href}}">{{.Label}}</a> {{end}}<span>{{$name}}</span></td>
{{end}}</tr>
{{end}}</table>
<ul class="versions">
{{range .Versions}}<li>{{.Name}} {{.Version}}</li>
{{end}}</ul>
</body>
</html>
`))

// Render writes the index page. Versions lists every loaded manifest so the
// page records exactly which content it was generated from.
func (x *Index) Render(w io.Writer, versions []document.Value) error {
	page := indexPage{Style: pageStyle}
	for _, lang := range x.languages {
		row := x.rows[lang]
		out := indexPageRow{Language: lang}
		for _, id := range row.factionOrder {
			out.Cells = append(out.Cells, row.cells[id])
		}
		page.Rows = append(page.Rows, out)
	}
	for _, m := range versions {
		name := fieldString(m, "Name")
		version := fieldString(m, "Version")
		if name == "" {
			name = "Timberborn"
			version = fieldString(m, "CurrentVersion")
		}
		page.Versions = append(page.Versions, indexVersion{Name: name, Version: version})
	}
	return indexTemplate.Execute(w, page)
}
