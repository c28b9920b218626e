package scripting

import (
	"encoding/base64"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReferenceProvider installs host objects into a script runtime
type ReferenceProvider interface {
	// Name returns the unique name of the provider
	Name() string

	// AllowedSecurityLevels returns the security levels that allow this provider
	AllowedSecurityLevels() []string

	// Install installs the provider's objects into the runtime
	Install(vm *goja.Runtime) error
}

var allLevels = []string{SecurityLevelStrict, SecurityLevelStandard, SecurityLevelPermissive}

// ReferenceRegistry holds the providers available to an engine
type ReferenceRegistry struct {
	mu          sync.RWMutex
	providers   map[string]ReferenceProvider
	contributed map[string]bool
}

// NewReferenceRegistry creates a registry holding the built-in providers
func NewReferenceRegistry(logger *zap.Logger) *ReferenceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ReferenceRegistry{
		providers:   make(map[string]ReferenceProvider),
		contributed: make(map[string]bool),
	}
	r.add(coreReference{}, false)
	r.add(&consoleReference{logger: logger.Named("script")}, false)
	r.add(encodingReference{}, false)
	return r
}

// Contribute adds a provider that is installed whenever its security level allows
func (r *ReferenceRegistry) Contribute(p ReferenceProvider) {
	r.add(p, true)
}

func (r *ReferenceRegistry) add(p ReferenceProvider, contributed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.contributed[p.Name()] = contributed
}

// Names returns registered provider names in sorted order
func (r *ReferenceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// InstallEnabled installs enabled built-ins and every contributed provider allowed at the level
func (r *ReferenceRegistry) InstallEnabled(vm *goja.Runtime, cfg Config) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.sortedNames() {
		p := r.providers[name]
		if !r.contributed[name] && !slices.Contains(cfg.References, name) {
			continue
		}
		if !slices.Contains(p.AllowedSecurityLevels(), cfg.SecurityLevel) {
			continue
		}
		if err := p.Install(vm); err != nil {
			return fmt.Errorf("failed to install reference %s: %w", name, err)
		}
	}
	return nil
}

func (r *ReferenceRegistry) sortedNames() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HostObjects is a provider that exposes plain Go values as script globals.
// Automation surfaces use it to contribute constants and helpers.
type HostObjects struct {
	ProviderName string
	Levels       []string
	Objects      map[string]any
}

func (h HostObjects) Name() string { return h.ProviderName }

func (h HostObjects) AllowedSecurityLevels() []string {
	if len(h.Levels) == 0 {
		return allLevels
	}
	return h.Levels
}

func (h HostObjects) Install(vm *goja.Runtime) error {
	for name, value := range h.Objects {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

// coreReference provides geometry constructors and id generation
type coreReference struct{}

func (coreReference) Name() string { return "core" }

func (coreReference) AllowedSecurityLevels() []string { return allLevels }

func (coreReference) Install(vm *goja.Runtime) error {
	if err := vm.Set("Point", func(x, y int) map[string]any {
		return map[string]any{"x": x, "y": y}
	}); err != nil {
		return err
	}
	if err := vm.Set("Rect", func(x, y, w, h int) map[string]any {
		return map[string]any{"x": x, "y": y, "width": w, "height": h}
	}); err != nil {
		return err
	}
	return vm.Set("newId", func() string { return uuid.NewString() })
}

// consoleReference routes console output to the structured logger
type consoleReference struct {
	logger *zap.Logger
}

func (c *consoleReference) Name() string { return "console" }

func (c *consoleReference) AllowedSecurityLevels() []string {
	return []string{SecurityLevelStandard, SecurityLevelPermissive}
}

func (c *consoleReference) Install(vm *goja.Runtime) error {
	console := vm.NewObject()
	write := func(level func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]any, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			level(fmt.Sprint(args...))
			return goja.Undefined()
		}
	}
	for name, fn := range map[string]func(string, ...zap.Field){
		"log":   c.logger.Info,
		"info":  c.logger.Info,
		"debug": c.logger.Debug,
		"warn":  c.logger.Warn,
		"error": c.logger.Error,
	} {
		if err := console.Set(name, write(fn)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// encodingReference provides btoa and atob
type encodingReference struct{}

func (encodingReference) Name() string { return "encoding" }

func (encodingReference) AllowedSecurityLevels() []string {
	return []string{SecurityLevelStandard, SecurityLevelPermissive}
}

func (encodingReference) Install(vm *goja.Runtime) error {
	if err := vm.Set("btoa", func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	}); err != nil {
		return err
	}
	return vm.Set("atob", func(call goja.FunctionCall) goja.Value {
		decoded, err := base64.StdEncoding.DecodeString(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("atob: %w", err)))
		}
		return vm.ToValue(string(decoded))
	})
}
