package components

import (
	"github.com/wehubfusion/Daedalus/pkg/control"
	"github.com/wehubfusion/Daedalus/pkg/scripting"
	"github.com/wehubfusion/Daedalus/pkg/search"
)

// InputReferences exposes input-device constants to scripts: Keys,
// MouseButtons, Pivots and SearchScopes.
func InputReferences() scripting.ReferenceProvider {
	keys := make(map[string]string, len(control.Keys))
	for k, v := range control.Keys {
		keys[k] = v
	}
	pivots := map[string]string{
		"Center":      control.PivotCenter.String(),
		"TopLeft":     control.PivotTopLeft.String(),
		"TopRight":    control.PivotTopRight.String(),
		"BottomLeft":  control.PivotBottomLeft.String(),
		"BottomRight": control.PivotBottomRight.String(),
	}

	return scripting.HostObjects{
		ProviderName: "input",
		Objects: map[string]any{
			"Keys": keys,
			"MouseButtons": map[string]string{
				"Left":   string(control.ButtonLeft),
				"Right":  string(control.ButtonRight),
				"Middle": string(control.ButtonMiddle),
			},
			"Pivots": pivots,
			"SearchScopes": map[string]string{
				"Children":    search.Children.String(),
				"Descendants": search.Descendants.String(),
				"Sibling":     search.Sibling.String(),
				"Ancestor":    search.Ancestor.String(),
			},
		},
	}
}
