package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/components"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	"github.com/wehubfusion/Daedalus/pkg/scripting"
	"github.com/wehubfusion/Daedalus/pkg/scriptpath"
	"github.com/wehubfusion/Daedalus/pkg/serialization"
)

var registry = components.NewRegistry()

func loadWorkflow(path string) (entity.Component, error) {
	root, err := serialization.LoadFile(registry, path, logger.Named("serialization"))
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", path, err)
	}
	return root, nil
}

func pathProvider() (*scriptpath.OSProvider, error) {
	return scriptpath.NewOSProvider(cfg.Paths.WorkingDir, cfg.Paths.ScriptsDir)
}

func newScriptEngine(paths scriptpath.PathProvider) (*scripting.Engine, error) {
	sc := cfg.Scripting
	sc.ScriptsDir = paths.ScriptsDirectory()
	return scripting.NewEngine(sc,
		scripting.WithLogger(logger.Named("scripting")),
		scripting.WithReferences(components.InputReferences()))
}

// loadModel builds the initial model from a JSON file and key=value pairs.
// Values are parsed as JSON when possible and kept as strings otherwise.
func loadModel(path string, sets []string) (map[string]any, error) {
	model := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &model); err != nil {
			return nil, fmt.Errorf("model %s is not a JSON object: %w", path, err)
		}
	}
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		model[key] = value
	}
	return model, nil
}

// copyModel gives each run its own top-level map.
func copyModel(model map[string]any) map[string]any {
	out := make(map[string]any, len(model))
	for k, v := range model {
		out[k] = v
	}
	return out
}

func countComponents(root entity.Component) int {
	n := 0
	entity.Walk(root, func(entity.Component) bool {
		n++
		return true
	})
	return n
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}

func debugFields(kv map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv))
	for k, v := range kv {
		fields = append(fields, zap.String(k, cast.ToString(v)))
	}
	return fields
}
