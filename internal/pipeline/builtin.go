package pipeline

import (
	"sort"

	"timbertrees/internal/blueprint"
	"timbertrees/internal/document"
)

// builtinSource marks declarations synthesized by the tool rather than read
// from any file.
const builtinSource = "builtin"

// builtinToolGroups returns the planting tool groups the game hardcodes in
// engine code instead of declaring. They fold before every file declaration,
// so an overlay that does declare them simply refines these bases.
func builtinToolGroups() []blueprint.RawDeclaration {
	mk := func(id, nameKey string, order int64) blueprint.RawDeclaration {
		return blueprint.RawDeclaration{
			SourcePath: builtinSource,
			Slug:       id,
			Doc: document.Map(map[string]document.Value{
				"BlockObjectToolGroupSpec": document.Map(map[string]document.Value{
					"Id":            document.String(id),
					"Order":         document.Int(order),
					"NameLocKey":    document.String(nameKey),
					"Icon":          document.String(""),
					"FallbackGroup": document.Bool(false),
					"Type":          document.String("PlantingModeToolGroup"),
					"Layout":        document.String("Blue"),
				}),
			}),
		}
	}
	return []blueprint.RawDeclaration{
		mk("Fields", "ToolGroups.FieldsPlanting", 20-100),
		mk("Forestry", "ToolGroups.ForestryPlanting", 30-100),
	}
}

// toolsFromTemplates synthesizes tool declarations from the templates
// themselves: every placeable building becomes a tool in its declared tool
// group, every plantable resource becomes a planting tool under Fields
// (crops) or Forestry (trees). Declared tool files fold after these and
// override them.
func toolsFromTemplates(templates blueprint.Table) []blueprint.RawDeclaration {
	slugs := make([]string, 0, len(templates))
	for slug := range templates {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var out []blueprint.RawDeclaration
	for _, slug := range slugs {
		template := templates[slug]
		id := fieldStringOf(template, "Id")
		nameKey := fieldStringOf(template, "LabeledEntitySpec", "DisplayNameLocKey")

		if spec, ok := fieldOf(template, "PlaceableBlockObjectSpec"); ok {
			tool := map[string]document.Value{
				"Id":         document.String(id),
				"GroupId":    document.String(fieldStringOf(spec, "ToolGroupId")),
				"Order":      document.Int(fieldIntOf(spec, "ToolOrder")),
				"NameLocKey": document.String(nameKey),
			}
			if fieldIntOf(spec, "DevModeTool") == 1 {
				tool["DevMode"] = document.Bool(true)
			}
			out = append(out, toolDeclaration(id, tool))
		}
		if _, ok := fieldOf(template, "PlantableSpec"); ok {
			group := "Forestry"
			if _, crop := fieldOf(template, "CropSpec"); crop {
				group = "Fields"
			}
			out = append(out, toolDeclaration(id, map[string]document.Value{
				"Id":         document.String(id),
				"GroupId":    document.String(group),
				"Order":      document.Int(fieldIntOf(template, "NaturalResourceSpec", "Order")),
				"NameLocKey": document.String(nameKey),
			}))
		}
	}
	return out
}

func toolDeclaration(id string, spec map[string]document.Value) blueprint.RawDeclaration {
	return blueprint.RawDeclaration{
		SourcePath: builtinSource,
		Slug:       id,
		Doc: document.Map(map[string]document.Value{
			"ToolSpec": document.Map(spec),
		}),
	}
}
