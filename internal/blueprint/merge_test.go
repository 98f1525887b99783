package blueprint

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"timbertrees/internal/document"
)

func mustDoc(t *testing.T, src string) document.Value {
	t.Helper()
	v, err := document.FromJSON([]byte(src))
	if err != nil {
		t.Fatalf("bad test document %s: %v", src, err)
	}
	return v
}

func decl(t *testing.T, slug string, priority int, optional bool, src string) RawDeclaration {
	t.Helper()
	return RawDeclaration{
		SourcePath: "test://" + slug,
		Priority:   priority,
		Optional:   optional,
		Slug:       slug,
		Doc:        mustDoc(t, src),
	}
}

func mergeOne(t *testing.T, decls ...RawDeclaration) document.Value {
	t.Helper()
	table, err := NewMerger(zap.NewNop()).MergeKind(decls)
	if err != nil {
		t.Fatalf("MergeKind failed: %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("MergeKind produced %d definitions, want 1", len(table))
	}
	for _, def := range table {
		return def
	}
	return document.Value{}
}

func TestMergeKind_EndToEnd(t *testing.T) {
	// The sawmill example: base appends a cost, overlay1 raises science cost,
	// an optional overlay retracts the cost again.
	def := mergeOne(t,
		decl(t, "Sawmill", 0, false, `{"BuildingCost#append": [{"Id":"Log","Amount":5}], "ScienceCost": 0}`),
		decl(t, "Sawmill", 1, false, `{"ScienceCost": 10}`),
		decl(t, "Sawmill", 2, true, `{"BuildingCost#remove": [{"Id":"Log","Amount":5}]}`),
	)

	want := mustDoc(t, `{"Id":"sawmill","BuildingCost":[],"ScienceCost":10}`)
	if !def.Equal(want) {
		t.Errorf("merged definition = %s, want %s", def, want)
	}
}

func TestMergeKind_Deterministic(t *testing.T) {
	decls := []RawDeclaration{
		decl(t, "sawmill", 1, false, `{"ScienceCost": 10, "Tags#append": ["b"]}`),
		decl(t, "sawmill", 0, false, `{"ScienceCost": 0, "Tags": ["a"]}`),
		decl(t, "sawmill", 2, true, `{"Tags#append": ["c"]}`),
	}
	first, err := NewMerger(zap.NewNop()).MergeKind(decls)
	if err != nil {
		t.Fatalf("MergeKind failed: %v", err)
	}

	// Priority/optional ordering is engine-imposed; shuffling the input must
	// not change the output.
	reversed := []RawDeclaration{decls[2], decls[0], decls[1]}
	second, err := NewMerger(zap.NewNop()).MergeKind(reversed)
	if err != nil {
		t.Fatalf("MergeKind failed: %v", err)
	}

	if diff := cmp.Diff(first["sawmill"].String(), second["sawmill"].String()); diff != "" {
		t.Errorf("merge is input-order dependent (-first +second):\n%s", diff)
	}
	want := mustDoc(t, `{"Id":"sawmill","ScienceCost":10,"Tags":["a","b","c"]}`)
	if !first["sawmill"].Equal(want) {
		t.Errorf("merged definition = %s, want %s", first["sawmill"], want)
	}
}

func TestMergeKind_AppendPreservesOrder(t *testing.T) {
	def := mergeOne(t,
		decl(t, "g", 0, false, `{"Tags": ["base"]}`),
		decl(t, "g", 1, false, `{"Tags#append": ["a"]}`),
		decl(t, "g", 2, false, `{"Tags#append": ["b"]}`),
	)
	want := mustDoc(t, `{"Id":"g","Tags":["base","a","b"]}`)
	if !def.Equal(want) {
		t.Errorf("definition = %s, want %s", def, want)
	}
}

func TestMergeKind_RemoveInvertsAppend(t *testing.T) {
	def := mergeOne(t,
		decl(t, "g", 0, false, `{"Tags": ["base"]}`),
		decl(t, "g", 1, false, `{"Tags#append": ["x"]}`),
		decl(t, "g", 2, false, `{"Tags#remove": ["x"]}`),
	)
	want := mustDoc(t, `{"Id":"g","Tags":["base"]}`)
	if !def.Equal(want) {
		t.Errorf("definition = %s, want %s", def, want)
	}
}

func TestMergeKind_RemoveAbsentElementWarnsOnly(t *testing.T) {
	def := mergeOne(t,
		decl(t, "g", 0, false, `{"Tags": ["base"]}`),
		decl(t, "g", 1, true, `{"Tags#remove": ["never-added"]}`),
	)
	want := mustDoc(t, `{"Id":"g","Tags":["base"]}`)
	if !def.Equal(want) {
		t.Errorf("definition = %s, want %s", def, want)
	}
}

func TestMergeKind_OptionalWithoutBaseIsNoOp(t *testing.T) {
	table, err := NewMerger(zap.NewNop()).MergeKind([]RawDeclaration{
		decl(t, "ghost", 1, true, `{"ScienceCost": 10}`),
	})
	if err != nil {
		t.Fatalf("MergeKind failed: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("optional-only declarations produced %d definitions, want 0", len(table))
	}
}

func TestMergeKind_OptionalFoldsAfterAllBases(t *testing.T) {
	// The optional declaration has the lowest priority but must still fold
	// after every non-optional one.
	def := mergeOne(t,
		decl(t, "g", 0, true, `{"ScienceCost": 5}`),
		decl(t, "g", 1, false, `{"ScienceCost": 1}`),
	)
	cost, _ := def.Field("ScienceCost")
	if cost.AsInt() != 5 {
		t.Errorf("ScienceCost = %d, want 5 (optional folds last)", cost.AsInt())
	}
}

func TestMergeKind_NestedMapsMergeFieldwise(t *testing.T) {
	def := mergeOne(t,
		decl(t, "g", 0, false, `{"GoodSpec": {"Id": "Log", "StackSize": 30}}`),
		decl(t, "g", 1, false, `{"GoodSpec": {"StackSize": 50}}`),
	)
	want := mustDoc(t, `{"Id":"g","GoodSpec":{"Id":"Log","StackSize":50}}`)
	if !def.Equal(want) {
		t.Errorf("definition = %s, want %s", def, want)
	}
}

func TestMergeKind_ListWithoutVerbReplacesWholesale(t *testing.T) {
	def := mergeOne(t,
		decl(t, "g", 0, false, `{"Tags": ["a", "b"]}`),
		decl(t, "g", 1, false, `{"Tags": ["c"]}`),
	)
	want := mustDoc(t, `{"Id":"g","Tags":["c"]}`)
	if !def.Equal(want) {
		t.Errorf("definition = %s, want %s", def, want)
	}
}

func TestMergeKind_IntRefinesFloat(t *testing.T) {
	def := mergeOne(t,
		decl(t, "g", 0, false, `{"CycleDurationInHours": 2.5}`),
		decl(t, "g", 1, false, `{"CycleDurationInHours": 3}`),
	)
	hours, _ := def.Field("CycleDurationInHours")
	if hours.Kind() != document.KindFloat {
		t.Errorf("refined field kind = %v, want float", hours.Kind())
	}
	if hours.AsFloat() != 3 {
		t.Errorf("refined field = %v, want 3", hours.AsFloat())
	}
}

func TestMergeKind_TypeMismatchIsFatal(t *testing.T) {
	tests := []struct {
		name string
		base string
		over string
	}{
		{"string over list", `{"Tags": ["a"]}`, `{"Tags": "b"}`},
		{"list over string", `{"Name": "x"}`, `{"Name": ["y"]}`},
		{"scalar over map", `{"GoodSpec": {"Id": "Log"}}`, `{"GoodSpec": 3}`},
		{"float degrades int", `{"Count": 3}`, `{"Count": 3.5}`},
		{"verb on scalar field", `{"Name": "x"}`, `{"Name#append": ["y"]}`},
		{"verb with scalar payload", `{"Tags": ["a"]}`, `{"Tags#append": "b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMerger(zap.NewNop()).MergeKind([]RawDeclaration{
				decl(t, "g", 0, false, tt.base),
				decl(t, "g", 1, false, tt.over),
			})
			var mismatch *document.TypeMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("MergeKind error = %v, want TypeMismatchError", err)
			}
		})
	}
}

func TestMergeKind_UnsupportedVerbIsFatal(t *testing.T) {
	_, err := NewMerger(zap.NewNop()).MergeKind([]RawDeclaration{
		decl(t, "g", 0, false, `{"Tags": ["a"]}`),
		decl(t, "g", 1, false, `{"Tags#delete": ["a"]}`),
	})
	var verbErr *UnsupportedVerbError
	if !errors.As(err, &verbErr) {
		t.Fatalf("MergeKind error = %v, want UnsupportedVerbError", err)
	}
	if verbErr.Verb != "delete" {
		t.Errorf("Verb = %q, want delete", verbErr.Verb)
	}
}

func TestMergeKind_NullFieldCanBeFilled(t *testing.T) {
	def := mergeOne(t,
		decl(t, "g", 0, false, `{"Fuel": null}`),
		decl(t, "g", 1, false, `{"Fuel": "Log"}`),
	)
	fuel, _ := def.Field("Fuel")
	if fuel.AsString() != "Log" {
		t.Errorf("Fuel = %s, want Log", fuel)
	}
}
