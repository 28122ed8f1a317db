package keymap

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()

	require.NotNil(t, km)
}

func TestDefaultKeyMap_CancelBinding(t *testing.T) {
	km := DefaultKeyMap()

	keys := km.Cancel.Keys()
	assert.Contains(t, keys, "ctrl+c")
	assert.Contains(t, keys, "esc")
}

func TestDefaultKeyMap_QuitBinding(t *testing.T) {
	km := DefaultKeyMap()

	keys := km.Quit.Keys()
	assert.Contains(t, keys, "q")
	assert.Contains(t, keys, "enter")
}

func TestKeyMap_ShortHelp(t *testing.T) {
	km := DefaultKeyMap()

	help := km.ShortHelp()
	require.Len(t, help, 1)
	assert.Equal(t, "cancel", help[0].Help().Desc)
}

func TestMatches(t *testing.T) {
	binding := key.NewBinding(key.WithKeys("a", "b"))

	assert.True(t, Matches("a", binding))
	assert.True(t, Matches("b", binding))
	assert.False(t, Matches("c", binding))
	assert.False(t, Matches("", binding))
}
