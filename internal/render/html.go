package render

import (
	"fmt"
	"html/template"
	"io"

	"timbertrees/internal/document"
)

// HTMLRenderer writes the faction page: natural resources up top, then the
// building tree as nested lists with costs and recipes inline.
type HTMLRenderer struct {
	view *View

	// SrcLink links the stylesheet instead of embedding it, for local
	// development against a checked-out style.css.
	SrcLink bool
}

func NewHTMLRenderer(view *View, srcLink bool) *HTMLRenderer {
	return &HTMLRenderer{view: view, SrcLink: srcLink}
}

type htmlPage struct {
	FactionName string
	SrcLink     bool
	Style       template.CSS
	Resources   []htmlResource
	Groups      []htmlGroup
}

type htmlResource struct {
	Name   string
	Grows  string
	Glyphs string
}

type htmlGroup struct {
	Name  string
	Items []htmlItem
}

type htmlItem struct {
	Group    *htmlGroup
	Building *htmlBuilding
	Resource *htmlResource
}

type htmlBuilding struct {
	Name     string
	Cost     []string
	Science  int64
	Dwellers int64
	Workers  int64
	Recipes  []htmlRecipe
}

type htmlRecipe struct {
	Name        string
	Duration    string
	Ingredients []string
	Products    []string
	Science     int64
}

// pageStyle is embedded into every page unless SrcLink is set.
const pageStyle = template.CSS(`body{background:#1d2c38;color:#eee;font-family:sans-serif}
h1,h2{color:#a99262}ul{list-style:none}li.group>span{font-weight:bold}
.recipe{color:#9bb89b}.cost{color:#c9a}`)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.FactionName}}</title>
{{if .SrcLink}}<link href="../style.css" rel="stylesheet">{{else}}<style>{{.Style}}</style>{{end}}
</head>
<body>
<h1>{{.FactionName}}</h1>
{{if .Resources}}<h2 id="resources">⚘</h2>
<ul>
{{range .Resources}}<li>{{.Glyphs}} {{.Name}}{{with .Grows}} ({{.}}){{end}}</li>
{{end}}</ul>{{end}}
<ul>
{{range .Groups}}{{template "group" .}}{{end}}</ul>
</body>
</html>
{{define "group"}}<li class="group"><span>{{.Name}}</span>
<ul>
{{range .Items}}{{with .Group}}{{template "group" .}}{{end}}{{with .Resource}}<li>{{.Glyphs}} {{.Name}}</li>
{{end}}{{with .Building}}{{template "building" .}}{{end}}{{end}}</ul>
</li>
{{end}}
{{define "building"}}<li>{{.Name}}
{{if .Cost}}<div class="cost">{{range .Cost}}{{.}} {{end}}{{with .Science}}⚛ {{.}}{{end}}</div>{{end}}
{{if .Recipes}}<ul>
{{range .Recipes}}<li class="recipe">{{.Name}} ({{.Duration}}){{if .Ingredients}} ⇐ {{range .Ingredients}}{{.}} {{end}}{{end}}{{if .Products}} ⇒ {{range .Products}}{{.}} {{end}}{{end}}{{with .Science}}⚛ {{.}}{{end}}</li>
{{end}}</ul>{{end}}</li>
{{end}}`))

func (r *HTMLRenderer) Render(w io.Writer) error {
	page := htmlPage{
		FactionName: r.view.FactionName(),
		SrcLink:     r.SrcLink,
		Style:       pageStyle,
	}
	for _, res := range r.view.NaturalResources {
		page.Resources = append(page.Resources, r.resource(res))
	}
	planting, building := r.view.RootGroups()
	for _, g := range append(planting, building...) {
		page.Groups = append(page.Groups, r.group(g))
	}
	return pageTemplate.Execute(w, page)
}

func (r *HTMLRenderer) group(group document.Value) htmlGroup {
	v := r.view
	out := htmlGroup{Name: v.Text(fieldString(group, "BlockObjectToolGroupSpec", "NameLocKey"))}
	for _, item := range v.GroupItems(group) {
		if item.IsGroup {
			child := r.group(item.Def)
			out.Items = append(out.Items, htmlItem{Group: &child})
			continue
		}
		template, ok := v.ToolTemplate(item.Def)
		if !ok {
			continue
		}
		if _, plantable := field(template, "PlantableSpec"); plantable {
			res := r.resource(template)
			out.Items = append(out.Items, htmlItem{Resource: &res})
		}
		if _, placeable := field(template, "PlaceableBlockObjectSpec"); placeable {
			b := r.building(template)
			out.Items = append(out.Items, htmlItem{Building: &b})
		}
	}
	return out
}

func (r *HTMLRenderer) resource(res document.Value) htmlResource {
	v := r.view
	out := htmlResource{
		Name:   v.Text(fieldString(res, "LabeledEntitySpec", "DisplayNameLocKey")),
		Glyphs: v.Text("Pictogram.Plantable"),
	}
	if days := fieldFloat(res, "GrowableSpec", "GrowthTimeInDays"); days > 0 {
		out.Grows = formatDays(v, days)
	}
	if _, ok := field(res, "CuttableSpec"); ok {
		out.Glyphs += " " + v.Text("Pictogram.Cuttable")
	}
	if _, ok := field(res, "GatherableSpec"); ok {
		out.Glyphs += " " + v.Text("Pictogram.Gatherable")
	}
	return out
}

func (r *HTMLRenderer) building(b document.Value) htmlBuilding {
	v := r.view
	out := htmlBuilding{
		Name:     v.Text(fieldString(b, "LabeledEntitySpec", "DisplayNameLocKey")),
		Science:  fieldInt(b, "BuildingSpec", "ScienceCost"),
		Dwellers: fieldInt(b, "DwellingSpec", "MaxBeavers"),
		Workers:  fieldInt(b, "WorkplaceSpec", "MaxWorkers"),
	}
	if cost, ok := field(b, "BuildingSpec", "BuildingCost"); ok && cost.Kind() == document.KindList {
		for _, c := range cost.AsList() {
			good, found := v.Good(fieldString(c, "Id"))
			if !found {
				continue
			}
			out.Cost = append(out.Cost, fmt.Sprintf("%d %s",
				fieldInt(c, "Amount"),
				v.Text(fieldString(good, "GoodSpec", "PluralDisplayNameLocKey"))))
		}
	}
	for _, recipe := range v.BuildingRecipes(b) {
		out.Recipes = append(out.Recipes, r.recipe(recipe))
	}
	return out
}

func (r *HTMLRenderer) recipe(recipe document.Value) htmlRecipe {
	v := r.view
	out := htmlRecipe{
		Name:     v.Text(fieldString(recipe, "RecipeSpec", "DisplayLocKey")),
		Duration: formatHours(v, fieldFloat(recipe, "RecipeSpec", "CycleDurationInHours")),
		Science:  fieldInt(recipe, "RecipeSpec", "ProducedSciencePoints"),
	}
	out.Ingredients = r.goodAmounts(recipe, "Ingredients")
	out.Products = r.goodAmounts(recipe, "Products")
	return out
}

func (r *HTMLRenderer) goodAmounts(recipe document.Value, key string) []string {
	v := r.view
	list, ok := field(recipe, "RecipeSpec", key)
	if !ok || list.Kind() != document.KindList {
		return nil
	}
	var out []string
	for _, x := range list.AsList() {
		good, found := v.Good(fieldString(x, "Id"))
		if !found {
			continue
		}
		nameKey := "DisplayNameLocKey"
		amount := fieldInt(x, "Amount")
		if amount != 1 {
			nameKey = "PluralDisplayNameLocKey"
		}
		out = append(out, fmt.Sprintf("%d %s", amount,
			v.Text(fieldString(good, "GoodSpec", nameKey))))
	}
	return out
}
