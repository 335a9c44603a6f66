package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrDuplicateOutcome = errors.New("duplicate module outcome")

// ScanResult is the canonical aggregate of one scan's module outcomes.
type ScanResult struct {
	ScanID     string     `json:"scan_id"`
	Target     string     `json:"target"`
	TargetType TargetType `json:"target_type"`
	Modules    ModuleMap  `json:"modules"`
}

// Counts tallies outcomes by status.
func (r *ScanResult) Counts() map[OutcomeStatus]int {
	out := map[OutcomeStatus]int{OutcomeSuccess: 0, OutcomeFailed: 0, OutcomeTimedOut: 0}
	for _, o := range r.Modules.entries {
		out[o.Status]++
	}
	return out
}

// ModuleMap maps module name to outcome and keeps insertion order.
// The zero value is empty and ready to use.
type ModuleMap struct {
	entries []ModuleOutcome
}

// NewModuleMap builds a map in the given order. Module names must be unique.
func NewModuleMap(outcomes []ModuleOutcome) (ModuleMap, error) {
	seen := make(map[string]struct{}, len(outcomes))
	entries := make([]ModuleOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if _, dup := seen[o.Module]; dup {
			return ModuleMap{}, fmt.Errorf("%w: %s", ErrDuplicateOutcome, o.Module)
		}
		seen[o.Module] = struct{}{}
		entries = append(entries, o)
	}
	return ModuleMap{entries: entries}, nil
}

func (m ModuleMap) Len() int { return len(m.entries) }

func (m ModuleMap) Get(name string) (ModuleOutcome, bool) {
	for _, o := range m.entries {
		if o.Module == name {
			return o, true
		}
	}
	return ModuleOutcome{}, false
}

// Names returns module names in insertion order.
func (m ModuleMap) Names() []string {
	out := make([]string, len(m.entries))
	for i, o := range m.entries {
		out[i] = o.Module
	}
	return out
}

// Outcomes returns a copy of the outcomes in insertion order.
func (m ModuleMap) Outcomes() []ModuleOutcome {
	return append([]ModuleOutcome(nil), m.entries...)
}

// MarshalJSON writes a JSON object whose keys follow insertion order.
func (m ModuleMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, o := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(o.Module)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o)
		if err != nil {
			return nil, fmt.Errorf("marshal outcome %s: %w", o.Module, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object and keeps the document's key order.
func (m *ModuleMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = ModuleMap{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("modules: expected object, got %v", tok)
	}

	var outcomes []ModuleOutcome
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("modules: expected string key, got %v", tok)
		}
		var o ModuleOutcome
		if err := dec.Decode(&o); err != nil {
			return fmt.Errorf("modules[%s]: %w", name, err)
		}
		o.Module = name
		outcomes = append(outcomes, o)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	mm, err := NewModuleMap(outcomes)
	if err != nil {
		return err
	}
	*m = mm
	return nil
}
