package template

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out := Render("Hi {{name}}, about {{address}}", map[string]string{
		"name":    "Dana",
		"address": "12 Oak St",
	})
	require.Equal(t, "Hi Dana, about 12 Oak St", out)
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	out := Render("Hi {{name}}, ref {{listing_id}}", map[string]string{"name": "Dana"})
	require.Equal(t, "Hi Dana, ref {{listing_id}}", out)
}

func TestRenderWithoutVariables(t *testing.T) {
	require.Equal(t, "plain text", Render("plain text", nil))
	require.Equal(t, "{{name}}", Render("{{name}}", map[string]string{}))
}
