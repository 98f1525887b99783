package document

import (
	"encoding/json"
	"testing"
)

func TestFromJSON_Kinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
	}{
		{"null", `null`, KindNull},
		{"bool", `true`, KindBool},
		{"int", `42`, KindInt},
		{"float", `42.5`, KindFloat},
		{"float exponent", `1e3`, KindFloat},
		{"string", `"Log"`, KindString},
		{"list", `[1, 2]`, KindList},
		{"map", `{"Id": "sawmill"}`, KindMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromJSON([]byte(tt.input))
			if err != nil {
				t.Fatalf("FromJSON(%q) failed: %v", tt.input, err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", v.Kind(), tt.kind)
			}
		})
	}
}

func TestFromJSON_HumanEdited(t *testing.T) {
	// Declaration files in the wild carry comments and trailing commas.
	input := `{
		// cost of the base sawmill
		"ScienceCost": 0,
		"BuildingCost": [
			{"Id": "Log", "Amount": 5},
		],
	}`
	v, err := FromJSON([]byte(input))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	cost, ok := v.Field("BuildingCost")
	if !ok || cost.Kind() != KindList || cost.Len() != 1 {
		t.Fatalf("BuildingCost = %s, want one-element list", cost)
	}
}

func TestFromJSON_TrailingCommentAtEOF(t *testing.T) {
	// A final line comment with no newline after it must still parse.
	v, err := FromJSON([]byte(`{"ScienceCost": 100} // overlay tweak`))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	cost, ok := v.Field("ScienceCost")
	if !ok || cost.AsInt() != 100 {
		t.Fatalf("ScienceCost = %s, want 100", cost)
	}
}

func TestValue_Equal(t *testing.T) {
	a := Map(map[string]Value{"Id": String("Log"), "Amount": Int(5)})
	b := Map(map[string]Value{"Amount": Int(5), "Id": String("Log")})
	if !a.Equal(b) {
		t.Error("structurally identical maps should be equal")
	}

	if Int(5).Equal(Float(5)) {
		t.Error("int and float of equal magnitude must not compare equal")
	}
}

func TestValue_CloneIsDeep(t *testing.T) {
	orig := Map(map[string]Value{"Tags": List(String("a"))})
	clone := orig.Clone()

	tags, _ := clone.Field("Tags")
	clone.AsMap()["Tags"] = List(append(tags.AsList(), String("b"))...)

	origTags, _ := orig.Field("Tags")
	if origTags.Len() != 1 {
		t.Errorf("mutating the clone changed the original: %s", orig)
	}
}

func TestValue_DeterministicString(t *testing.T) {
	v := Map(map[string]Value{
		"b": Int(1),
		"a": Float(10),
		"c": List(String("x"), Null()),
	})
	want := `{"a":10.0,"b":1,"c":["x",null]}`
	if got := v.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	orig := Map(map[string]Value{
		"Id":           String("sawmill"),
		"ScienceCost":  Int(10),
		"CycleHours":   Float(2),
		"BuildingCost": List(Map(map[string]Value{"Id": String("Log"), "Amount": Int(5)})),
	})

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Value
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !orig.Equal(back) {
		t.Errorf("round trip changed value:\n  before %s\n  after  %s", orig, back)
	}
	// The float field must still be a float after the trip.
	hours, _ := back.Field("CycleHours")
	if hours.Kind() != KindFloat {
		t.Errorf("CycleHours kind = %v after round trip, want float", hours.Kind())
	}
}
