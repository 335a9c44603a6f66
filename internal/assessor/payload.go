package assessor

import (
	"encoding/json"
	"fmt"
)

// payload is a module's data normalized to plain JSON values, so typed structs
// and payloads read back from storage are handled alike.
type payload map[string]any

func decode(v any) payload {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return p
}

func (p payload) str(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p payload) num(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (p payload) boolean(key string) bool {
	b, _ := p[key].(bool)
	return b
}

func (p payload) obj(key string) payload {
	m, _ := p[key].(map[string]any)
	return m
}

func (p payload) objs(key string) []payload {
	raw, _ := p[key].([]any)
	out := make([]payload, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func (p payload) strs(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
