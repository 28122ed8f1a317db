// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the ingestion progress view.
type KeyMap struct {
	// Cancel stops the running ingestion. Documents already stored are kept.
	Cancel key.Binding

	// Quit exits once ingestion has finished.
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "enter"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown while ingestion is running.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
