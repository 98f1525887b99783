package render

import (
	"fmt"
	"io"
	"strings"

	"timbertrees/internal/document"
)

// TextRenderer writes the faction's content as an indented outline: natural
// resources first, then the building tool-group tree with recipes inline.
type TextRenderer struct {
	view *View
	w    io.Writer
	err  error
}

func NewTextRenderer(view *View) *TextRenderer {
	return &TextRenderer{view: view}
}

func (r *TextRenderer) Render(w io.Writer) error {
	r.w, r.err = w, nil
	v := r.view

	r.line(0, "%s", v.FactionName())

	planting, building := v.RootGroups()
	for _, g := range planting {
		r.renderGroup(g, 1)
	}
	for _, g := range building {
		r.renderGroup(g, 1)
	}
	return r.err
}

func (r *TextRenderer) renderGroup(group document.Value, depth int) {
	v := r.view
	r.line(depth, "[%s]", v.Text(fieldString(group, "BlockObjectToolGroupSpec", "NameLocKey")))
	for _, item := range v.GroupItems(group) {
		if item.IsGroup {
			r.renderGroup(item.Def, depth+1)
			continue
		}
		template, ok := v.ToolTemplate(item.Def)
		if !ok {
			continue
		}
		if _, plantable := field(template, "PlantableSpec"); plantable {
			r.renderNaturalResource(template, depth+1)
		}
		if _, placeable := field(template, "PlaceableBlockObjectSpec"); placeable {
			r.renderBuilding(template, depth+1)
		}
	}
}

func (r *TextRenderer) renderNaturalResource(resource document.Value, depth int) {
	v := r.view
	r.line(depth, "%s %s",
		v.Text("Pictogram.Plantable"),
		v.Text(fieldString(resource, "LabeledEntitySpec", "DisplayNameLocKey")))
	if days := fieldFloat(resource, "GrowableSpec", "GrowthTimeInDays"); days > 0 {
		r.line(depth+1, "%s %s", v.Text("Pictogram.Grows"), formatDays(v, days))
	}
}

func (r *TextRenderer) renderBuilding(building document.Value, depth int) {
	v := r.view
	r.line(depth, "%s", v.Text(fieldString(building, "LabeledEntitySpec", "DisplayNameLocKey")))

	if cost, ok := field(building, "BuildingSpec", "BuildingCost"); ok && cost.Kind() == document.KindList {
		var parts []string
		for _, c := range cost.AsList() {
			good, found := v.Good(fieldString(c, "Id"))
			if !found {
				continue
			}
			parts = append(parts, fmt.Sprintf("%d %s",
				fieldInt(c, "Amount"),
				v.Text(fieldString(good, "GoodSpec", "PluralDisplayNameLocKey"))))
		}
		if len(parts) > 0 {
			r.line(depth+1, "%s", strings.Join(parts, ", "))
		}
	}
	if science := fieldInt(building, "BuildingSpec", "ScienceCost"); science > 0 {
		r.line(depth+1, "%s %d", v.Text("Pictogram.Science"), science)
	}
	if dwellers := fieldInt(building, "DwellingSpec", "MaxBeavers"); dwellers > 0 {
		r.line(depth+1, "%s %d", v.Text("Pictogram.Dwellers"), dwellers)
	}
	if workers := fieldInt(building, "WorkplaceSpec", "MaxWorkers"); workers > 0 {
		r.line(depth+1, "%s %d", v.Text("Pictogram.Workers"), workers)
	}
	for _, recipe := range v.BuildingRecipes(building) {
		r.renderRecipe(recipe, depth+1)
	}
}

func (r *TextRenderer) renderRecipe(recipe document.Value, depth int) {
	v := r.view
	r.line(depth, "%s (%s)",
		v.Text(fieldString(recipe, "RecipeSpec", "DisplayLocKey")),
		formatHours(v, fieldFloat(recipe, "RecipeSpec", "CycleDurationInHours")))

	r.renderGoodAmounts(recipe, "Ingredients", "<- ", depth+1)
	r.renderGoodAmounts(recipe, "Products", "-> ", depth+1)
	if points := fieldInt(recipe, "RecipeSpec", "ProducedSciencePoints"); points > 0 {
		r.line(depth+1, "-> %s %d", v.Text("Pictogram.Science"), points)
	}
}

func (r *TextRenderer) renderGoodAmounts(recipe document.Value, key, marker string, depth int) {
	v := r.view
	list, ok := field(recipe, "RecipeSpec", key)
	if !ok || list.Kind() != document.KindList {
		return
	}
	for _, x := range list.AsList() {
		good, found := v.Good(fieldString(x, "Id"))
		if !found {
			continue
		}
		nameKey := "GoodSpec.DisplayNameLocKey"
		amount := fieldInt(x, "Amount")
		if amount != 1 {
			nameKey = "GoodSpec.PluralDisplayNameLocKey"
		}
		r.line(depth, "%s%d %s", marker, amount,
			v.Text(fieldString(good, strings.Split(nameKey, ".")...)))
	}
}

func (r *TextRenderer) line(depth int, format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

// formatDays and formatHours substitute into the localized duration strings,
// which carry a "{0}" placeholder.
func formatDays(v *View, days float64) string {
	return strings.ReplaceAll(v.Text("Time.DaysShort"), "{0}", fmt.Sprintf("%g", days))
}

func formatHours(v *View, hours float64) string {
	return strings.ReplaceAll(v.Text("Time.HoursShort"), "{0}", fmt.Sprintf("%g", hours))
}
