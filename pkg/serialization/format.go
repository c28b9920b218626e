package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// DocumentVersion is the version written into new documents.
const DocumentVersion = 1

// Format is a persisted document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported workflow file extension %q", filepath.Ext(path))
}

// Document is the top-level persisted object.
type Document struct {
	Version int   `json:"version" yaml:"version" toml:"version"`
	Root    *Node `json:"root" yaml:"root" toml:"root"`
}

// Serializer converts workflow trees to and from one format.
type Serializer struct {
	registry *Registry
	format   Format
	logger   *zap.Logger
}

// NewSerializer creates a serializer. A nil logger disables logging.
func NewSerializer(registry *Registry, format Format, logger *zap.Logger) *Serializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{registry: registry, format: format, logger: logger}
}

// Format returns the serializer's format.
func (s *Serializer) Format() Format {
	return s.format
}

// Marshal encodes the tree rooted at root.
func (s *Serializer) Marshal(root entity.Component) ([]byte, error) {
	node, err := s.registry.Encode(root)
	if err != nil {
		return nil, err
	}
	doc := Document{Version: DocumentVersion, Root: node}

	switch s.format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.MarshalWithOptions(doc, yaml.Indent(2))
	case FormatTOML:
		pruneNode(doc.Root)
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported format %q", s.format)
}

// Unmarshal decodes a tree. Structural dependencies are resolved before the
// tree is returned.
func (s *Serializer) Unmarshal(data []byte) (entity.Component, error) {
	var doc Document
	var err error
	switch s.format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		_, err = toml.Decode(string(data), &doc)
	default:
		return nil, fmt.Errorf("unsupported format %q", s.format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s workflow: %w", s.format, err)
	}
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("workflow version %d is newer than supported version %d", doc.Version, DocumentVersion)
	}

	root, err := s.registry.Decode(doc.Root)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Decoded workflow",
		zap.String("format", string(s.format)),
		zap.String("root", root.Name()),
		zap.Int("nodes", doc.Root.Count()))
	return root, nil
}

// LoadFile reads a workflow, picking the format from the file extension.
func LoadFile(registry *Registry, path string, logger *zap.Logger) (entity.Component, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", path, err)
	}
	return NewSerializer(registry, format, logger).Unmarshal(data)
}

// SaveFile writes a workflow, picking the format from the file extension.
func SaveFile(registry *Registry, path string, root entity.Component, logger *zap.Logger) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := NewSerializer(registry, format, logger).Marshal(root)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", path, err)
	}
	return nil
}

// pruneNode drops nil property values, which TOML cannot represent.
func pruneNode(n *Node) {
	if n == nil {
		return
	}
	n.Properties = pruneMap(n.Properties)
	for _, c := range n.Children {
		pruneNode(c)
	}
}

func pruneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	for k, v := range m {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = pruneValue(v)
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func pruneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return pruneMap(t)
	case []any:
		out := t[:0]
		for _, item := range t {
			if item != nil {
				out = append(out, pruneValue(item))
			}
		}
		return out
	}
	return v
}
