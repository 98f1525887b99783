package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
)

// GraphRenderer emits the faction's production chains as a DOT digraph:
// goods flow into recipe nodes and out again, science production feeds a
// shared sink. Buildings with many recipes get one cluster per recipe so the
// layout stays readable.
type GraphRenderer struct {
	view *View

	// GroupingThreshold is the recipe count above which a building's recipes
	// split into separate clusters.
	GroupingThreshold int
}

func NewGraphRenderer(view *View, groupingThreshold int) *GraphRenderer {
	return &GraphRenderer{view: view, GroupingThreshold: groupingThreshold}
}

const graphPreamble = `  tooltip=" "
  labelloc=t
  rankdir=LR
  penwidth=2
  bgcolor="#1d2c38"
  color="#a99262"
  fontcolor=white
  fontsize=42
  node [tooltip=" " fontsize=28 penwidth=2 color="#a99262" fontcolor=white fillcolor="#22362a" style=filled]
  edge [tooltip=" " fontsize=28 penwidth=2 color="#a99262" fontcolor=white]
`

func (r *GraphRenderer) Render(w io.Writer) error {
	v := r.view
	var b strings.Builder

	fmt.Fprintf(&b, "digraph %s {\n", quoteID(v.FactionID))
	fmt.Fprintf(&b, "  label=%s\n", quoteID(v.FactionName()))
	b.WriteString(graphPreamble)
	fmt.Fprintf(&b, "  SciencePoints [label=%s]\n", quoteID(v.Text("Science.SciencePoints")))

	goodNodes := make(map[string]bool)
	for _, building := range r.orderedBuildings() {
		r.renderBuilding(&b, building, goodNodes)
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// orderedBuildings returns the faction's placeable templates whose tool group
// exists, in stable Id order.
func (r *GraphRenderer) orderedBuildings() []document.Value {
	v := r.view
	var out []document.Value
	for _, def := range v.Templates {
		groupID := fieldString(def, "PlaceableBlockObjectSpec", "ToolGroupId")
		if groupID == "" {
			continue
		}
		if _, ok := v.Snapshot.ToolGroups[blueprint.Slug(groupID)]; !ok {
			continue
		}
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		return fieldString(out[i], "Id") < fieldString(out[j], "Id")
	})
	return out
}

func (r *GraphRenderer) renderBuilding(b *strings.Builder, building document.Value, goodNodes map[string]bool) {
	v := r.view
	recipes := v.BuildingRecipes(building)
	if len(recipes) == 0 {
		return
	}
	group := v.Snapshot.ToolGroups[blueprint.Slug(fieldString(building, "PlaceableBlockObjectSpec", "ToolGroupId"))]
	label := fmt.Sprintf("[%s]\n%s",
		v.Text(fieldString(group, "BlockObjectToolGroupSpec", "NameLocKey")),
		v.Text(fieldString(building, "LabeledEntitySpec", "DisplayNameLocKey")))

	buildingCost := make(map[string]bool)
	if cost, ok := field(building, "BuildingSpec", "BuildingCost"); ok && cost.Kind() == document.KindList {
		for _, c := range cost.AsList() {
			buildingCost[blueprint.Slug(fieldString(c, "Id"))] = true
		}
	}

	split := len(recipes) > r.GroupingThreshold
	buildingID := fieldString(building, "Id")
	for _, recipe := range recipes {
		cluster := buildingID
		if split {
			cluster += "." + fieldString(recipe, "RecipeSpec", "Id")
		}
		fmt.Fprintf(b, "  subgraph %s {\n", quoteID("cluster_"+cluster))
		fmt.Fprintf(b, "    label=%s\n    style=filled\n    fillcolor=\"#322227\"\n", quoteID(label))
		r.renderRecipeNode(b, buildingID, recipe)
		b.WriteString("  }\n")
		r.renderRecipeEdges(b, buildingID, recipe, buildingCost, goodNodes)
	}
}

func (r *GraphRenderer) renderRecipeNode(b *strings.Builder, buildingID string, recipe document.Value) {
	v := r.view
	node := buildingID + "." + fieldString(recipe, "RecipeSpec", "Id")
	fmt.Fprintf(b, "    %s [label=%s tooltip=%s]\n",
		quoteID(node),
		quoteID(formatHours(v, fieldFloat(recipe, "RecipeSpec", "CycleDurationInHours"))),
		quoteID(v.Text(fieldString(recipe, "RecipeSpec", "DisplayLocKey"))))
}

func (r *GraphRenderer) renderRecipeEdges(b *strings.Builder, buildingID string, recipe document.Value, buildingCost, goodNodes map[string]bool) {
	v := r.view
	node := buildingID + "." + fieldString(recipe, "RecipeSpec", "Id")

	if fuel := fieldString(recipe, "RecipeSpec", "Fuel"); fuel != "" {
		if good, ok := v.Good(fuel); ok {
			cycles := fieldFloat(recipe, "RecipeSpec", "CyclesFuelLasts")
			amount := "1"
			if cycles > 0 {
				amount = fmt.Sprintf("%.3g", 1/cycles)
			}
			r.ensureGoodNode(b, good, goodNodes)
			fmt.Fprintf(b, "  %s -> %s [label=%s color=\"#b30000\"%s]\n",
				quoteID(fieldString(good, "GoodSpec", "Id")), quoteID(node), quoteID(amount),
				dashedIf(buildingCost[blueprint.Slug(fuel)]))
		}
	}
	r.amountEdges(b, recipe, "Ingredients", func(goodID, amount string, dashed bool) {
		fmt.Fprintf(b, "  %s -> %s [label=%s color=\"#b30000\"%s]\n",
			quoteID(goodID), quoteID(node), quoteID(amount), dashedIf(dashed))
	}, buildingCost, goodNodes)
	r.amountEdges(b, recipe, "Products", func(goodID, amount string, _ bool) {
		fmt.Fprintf(b, "  %s -> %s [label=%s color=\"#008000\"]\n",
			quoteID(node), quoteID(goodID), quoteID(amount))
	}, buildingCost, goodNodes)

	if points := fieldInt(recipe, "RecipeSpec", "ProducedSciencePoints"); points > 0 {
		fmt.Fprintf(b, "  %s -> SciencePoints [label=%s color=\"#008000\"]\n",
			quoteID(node), quoteID(fmt.Sprintf("%d", points)))
	}
}

func (r *GraphRenderer) amountEdges(b *strings.Builder, recipe document.Value, key string, emit func(goodID, amount string, dashed bool), buildingCost, goodNodes map[string]bool) {
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
		r.ensureGoodNode(b, good, goodNodes)
		emit(fieldString(good, "GoodSpec", "Id"),
			fmt.Sprintf("%d", fieldInt(x, "Amount")),
			buildingCost[blueprint.Slug(fieldString(x, "Id"))])
	}
}

func (r *GraphRenderer) ensureGoodNode(b *strings.Builder, good document.Value, goodNodes map[string]bool) {
	id := fieldString(good, "GoodSpec", "Id")
	if goodNodes[id] {
		return
	}
	goodNodes[id] = true
	fmt.Fprintf(b, "  %s [label=%s]\n",
		quoteID(id), quoteID(r.view.Text(fieldString(good, "GoodSpec", "DisplayNameLocKey"))))
}

func dashedIf(dashed bool) string {
	if dashed {
		return " style=dashed"
	}
	return " style=solid"
}

// quoteID renders a DOT double-quoted string.
func quoteID(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}
