package module

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/reconai/internal/model"
)

var (
	ErrModuleNotFound    = errors.New("module not found")
	ErrDuplicateModule   = errors.New("module already registered")
	ErrUnsupportedTarget = errors.New("module does not support target type")
	ErrNoModulesSelected = errors.New("no modules selected")
	ErrInvalidModuleName = errors.New("invalid module name")
)

// Entry describes a registered module.
type Entry struct {
	Name        string             `json:"name" yaml:"name"`
	TargetTypes []model.TargetType `json:"target_types" yaml:"target_types"`
	Default     []model.TargetType `json:"default_for,omitempty" yaml:"default_for,omitempty"`
	Quick       []model.TargetType `json:"quick_for,omitempty" yaml:"quick_for,omitempty"`
}

type registration struct {
	mod     Module
	targets map[model.TargetType]struct{}
	order   int
}

// Registry maps module names to implementations. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	modules  map[string]*registration
	defaults map[model.TargetType][]string
	quick    map[model.TargetType][]string
}

// NewRegistry returns an empty registry seeded with the stock default and
// quick module sets. The names need not be registered yet.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*registration),
		defaults: map[model.TargetType][]string{
			model.TargetDomain: {"domain", "web", "network", "social", "threat"},
			model.TargetPerson: {"person"},
		},
		quick: map[model.TargetType][]string{
			model.TargetDomain: {"domain", "web"},
			model.TargetPerson: {"person"},
		},
	}
}

// Register adds m under m.Name(). With no targets the module supports every
// target type.
func (r *Registry) Register(m Module, targets ...model.TargetType) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrInvalidModuleName)
	}
	name := m.Name()
	if name == "" || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidModuleName, name)
	}
	if len(targets) == 0 {
		targets = model.TargetTypes()
	}
	set := make(map[model.TargetType]struct{}, len(targets))
	for _, t := range targets {
		if !t.Valid() {
			return fmt.Errorf("register %s: %w: %q", name, model.ErrInvalidTargetType, t)
		}
		set[t] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}
	r.modules[name] = &registration{mod: m, targets: set, order: len(r.modules)}
	return nil
}

// MustRegister panics on error. Intended for wiring built-in modules.
func (r *Registry) MustRegister(m Module, targets ...model.TargetType) {
	if err := r.Register(m, targets...); err != nil {
		panic(err)
	}
}

func (r *Registry) Resolve(name string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return reg.mod, nil
}

func (r *Registry) Supports(name string, tt model.TargetType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.modules[name]
	if !ok {
		return false
	}
	_, ok = reg.targets[tt]
	return ok
}

// SetDefaults replaces the default module set for a target type.
func (r *Registry) SetDefaults(tt model.TargetType, names ...string) error {
	return r.setSet(r.defaults, tt, names)
}

// SetQuick replaces the quick module set for a target type.
func (r *Registry) SetQuick(tt model.TargetType, names ...string) error {
	return r.setSet(r.quick, tt, names)
}

func (r *Registry) setSet(dst map[model.TargetType][]string, tt model.TargetType, names []string) error {
	if !tt.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidTargetType, tt)
	}
	names, err := dedupe(names)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	dst[tt] = names
	return nil
}

// DefaultModulesFor returns the modules a full scan runs for tt.
func (r *Registry) DefaultModulesFor(tt model.TargetType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.defaults[tt]...)
}

// QuickModulesFor returns the modules a quick scan runs for tt.
func (r *Registry) QuickModulesFor(tt model.TargetType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.quick[tt]...)
}

// Select applies the module selection policy. Explicit names always win.
// A custom scan must name its modules. The result is de-duplicated and every
// name is checked against the registry.
func (r *Registry) Select(tt model.TargetType, st model.ScanType, requested []string) ([]string, error) {
	var names []string
	switch {
	case len(requested) > 0:
		names = requested
	case st == model.ScanCustom:
		return nil, fmt.Errorf("%w: custom scan requires explicit modules", ErrNoModulesSelected)
	case st == model.ScanQuick:
		names = r.QuickModulesFor(tt)
	default:
		names = r.DefaultModulesFor(tt)
	}

	names, err := dedupe(names)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w for target type %s", ErrNoModulesSelected, tt)
	}
	if _, err := r.ResolveAll(names, tt); err != nil {
		return nil, err
	}
	return names, nil
}

// ResolveAll resolves names in order and fails on the first unknown or
// target-incompatible module.
func (r *Registry) ResolveAll(names []string, tt model.TargetType) ([]Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(names))
	for _, n := range names {
		reg, ok := r.modules[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, n)
		}
		if _, ok := reg.targets[tt]; !ok {
			return nil, fmt.Errorf("%w: %s does not handle %s", ErrUnsupportedTarget, n, tt)
		}
		out = append(out, reg.mod)
	}
	return out, nil
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// Entries describes every registered module in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]*registration, 0, len(r.modules))
	for _, reg := range r.modules {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].order < regs[j].order })

	out := make([]Entry, 0, len(regs))
	for _, reg := range regs {
		name := reg.mod.Name()
		e := Entry{Name: name}
		for _, tt := range model.TargetTypes() {
			if _, ok := reg.targets[tt]; ok {
				e.TargetTypes = append(e.TargetTypes, tt)
			}
			if contains(r.defaults[tt], name) {
				e.Default = append(e.Default, tt)
			}
			if contains(r.quick[tt], name) {
				e.Quick = append(e.Quick, tt)
			}
		}
		out = append(out, e)
	}
	return out
}

func dedupe(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidModuleName)
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
