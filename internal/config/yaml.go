package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// configJSON returns the file content as JSON bytes. YAML input is decoded
// and re-encoded so Parse can run one strict JSON decoder
// (DisallowUnknownFields) over both formats. Anything without a .yaml/.yml
// extension is treated as JSON already.
func configJSON(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	out, err := json.Marshal(jsonKeyed(doc))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return out, nil
}

// jsonKeyed rewrites a decoded YAML value so every map key is a string.
// yaml.v3 already yields map[string]any for string-keyed mappings, but keys
// like `2024:` or `true:` decode as map[any]any, which json.Marshal rejects.
func jsonKeyed(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			node[k] = jsonKeyed(child)
		}
		return node
	case map[any]any:
		keyed := make(map[string]any, len(node))
		for k, child := range node {
			keyed[fmt.Sprint(k)] = jsonKeyed(child)
		}
		return keyed
	case []any:
		for i, child := range node {
			node[i] = jsonKeyed(child)
		}
		return node
	}
	return v
}
