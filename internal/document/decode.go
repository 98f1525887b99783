package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// FromJSON decodes one document. Declaration files are human-edited, so the
// input may carry comments and trailing commas; hujson standardizes those
// away before strict decoding. Integer literals decode as KindInt, literals
// with a fractional or exponent part as KindFloat.
func FromJSON(data []byte) (Value, error) {
	// hujson refuses a final line comment cut short by EOF; a newline closes it.
	std, err := hujson.Standardize(append(data[:len(data):len(data)], '\n'))
	if err != nil {
		return Value{}, fmt.Errorf("standardizing document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("decoding document: %w", err)
	}
	// Reject trailing garbage after the first value.
	if dec.More() {
		return Value{}, fmt.Errorf("decoding document: unexpected trailing content")
	}
	return fromAny(raw)
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return fromNumber(string(t))
	case float64:
		return Float(t), nil
	case []any:
		list := make([]Value, len(t))
		for i, e := range t {
			v, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return List(list...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Map(m), nil
	default:
		return Value{}, fmt.Errorf("unsupported document node of type %T", raw)
	}
}

func fromNumber(lit string) (Value, error) {
	if !strings.ContainsAny(lit, ".eE") {
		i, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parsing integer literal %q: %w", lit, err)
		}
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, fmt.Errorf("parsing float literal %q: %w", lit, err)
	}
	return Float(f), nil
}

// FromYAMLNode converts a decoded yaml.Node tree into a Value. Scene-graph
// documents arrive as YAML; scalar tags decide the kind the same way JSON
// literals do.
func FromYAMLNode(node *yaml.Node) (Value, error) {
	if node == nil {
		return Null(), nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return FromYAMLNode(node.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(node.Alias)
	case yaml.ScalarNode:
		return fromYAMLScalar(node)
	case yaml.SequenceNode:
		list := make([]Value, len(node.Content))
		for i, c := range node.Content {
			v, err := FromYAMLNode(c)
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return List(list...), nil
	case yaml.MappingNode:
		m := make(map[string]Value, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: non-scalar mapping key", key.Line)
			}
			v, err := FromYAMLNode(node.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			m[key.Value] = v
		}
		return Map(m), nil
	default:
		return Value{}, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
	}
}

func fromYAMLScalar(node *yaml.Node) (Value, error) {
	switch node.Tag {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Float(f), nil
	default:
		// Strings and any custom-tagged scalar pass through as text.
		return String(node.Value), nil
	}
}
