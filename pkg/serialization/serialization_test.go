package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/serialization"
)

type note struct {
	entity.Base
	Text  string         `json:"text"`
	Extra map[string]any `json:"extra,omitempty"`
	Count *int           `json:"count"`

	seen int
}

func newNote(name string) *note {
	n := &note{}
	n.Base = entity.NewBase(n, "note", name)
	return n
}

type group struct {
	*entity.Entity
	resolved int
}

func newGroup(name string) *group {
	g := &group{}
	g.Entity = entity.NewEntity(g, "group", name)
	return g
}

func (g *group) ResolveDependencies() {
	g.resolved++
	_, _ = g.EnsureChild("header", func() entity.Component { return newNote("header") })
}

func registry() *serialization.Registry {
	r := serialization.NewRegistry()
	r.Register("note", func(name string) entity.Component { return newNote(name) })
	r.Register("group", func(name string) entity.Component { return newGroup(name) })
	return r
}

func TestRegistry(t *testing.T) {
	r := registry()
	assert.Equal(t, []string{"entity", "group", "note"}, r.Kinds())
	assert.True(t, r.HasKind("note"))

	_, err := r.Create("missing", "x")
	assert.ErrorIs(t, err, serialization.ErrUnknownKind)

	r.Register("liar", func(name string) entity.Component { return newNote(name) })
	_, err = r.Create("liar", "x")
	assert.Error(t, err)

	assert.True(t, r.Unregister("liar"))
	assert.False(t, r.Unregister("liar"))
}

func TestEncode_PropertiesAndState(t *testing.T) {
	n := newNote("n")
	n.Text = "hello"
	n.seen = 4

	node, err := registry().Encode(n)
	require.NoError(t, err)
	assert.Equal(t, "note", node.Kind)
	assert.Equal(t, n.ID(), node.ID)
	assert.Equal(t, "hello", node.Properties["text"])
	assert.NotContains(t, node.Properties, "seen")
}

func TestDecode_ResolvesDependenciesOnce(t *testing.T) {
	g := newGroup("g")
	g.ResolveDependencies()
	require.NoError(t, g.AddComponent(newNote("body")))

	r := registry()
	node, err := r.Encode(g)
	require.NoError(t, err)
	require.Equal(t, 3, node.Count())

	decoded, err := r.Decode(node)
	require.NoError(t, err)
	dg := decoded.(*group)
	assert.Equal(t, 1, dg.resolved)
	require.Equal(t, 2, dg.ChildCount())
	assert.Equal(t, "header", dg.Children()[0].Name())
	assert.Equal(t, node.Children[0].ID, dg.Children()[0].ID())
}

func TestDecode_Errors(t *testing.T) {
	r := registry()

	_, err := r.Decode(&serialization.Node{Kind: "nope", Name: "x"})
	assert.ErrorIs(t, err, serialization.ErrUnknownKind)

	_, err = r.Decode(&serialization.Node{
		Kind: "entity", ID: "a", Name: "root", Enabled: true,
		Children: []*serialization.Node{{Kind: "note", ID: "a", Name: "dup"}},
	})
	assert.True(t, derrors.IsConfiguration(err))

	_, err = r.Decode(&serialization.Node{
		Kind: "note", ID: "leaf", Name: "leaf",
		Children: []*serialization.Node{{Kind: "note", ID: "child", Name: "child"}},
	})
	assert.True(t, derrors.IsConfiguration(err))

	_, err = r.Decode(nil)
	assert.True(t, derrors.IsConfiguration(err))
}

func TestTOML_DropsNilValues(t *testing.T) {
	n := newNote("n")
	n.Extra = map[string]any{"keep": "x", "drop": nil, "list": []any{1, nil, "two"}}

	s := serialization.NewSerializer(registry(), serialization.FormatTOML, nil)
	data, err := s.Marshal(n)
	require.NoError(t, err)

	decoded, err := s.Unmarshal(data)
	require.NoError(t, err)
	dn := decoded.(*note)
	assert.Nil(t, dn.Count)
	assert.Equal(t, "x", dn.Extra["keep"])
	assert.NotContains(t, dn.Extra, "drop")
	assert.Len(t, dn.Extra["list"], 2)
}

func TestUnmarshal_RejectsNewerVersion(t *testing.T) {
	s := serialization.NewSerializer(registry(), serialization.FormatJSON, nil)
	_, err := s.Unmarshal([]byte(`{"version": 99, "root": {"kind": "note", "id": "x", "name": "x"}}`))
	assert.Error(t, err)
}
