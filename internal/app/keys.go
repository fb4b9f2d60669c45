package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application. Keys that
// only make sense on one tab live in that tab's own key map.
type KeyMap struct {
	Tab1    key.Binding
	Tab2    key.Binding
	Tab3    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Model   key.Binding
	Range   key.Binding
	Pause   key.Binding
	Refresh key.Binding
	Rescan  key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{}
	km = setTabKeys(km)
	km = setActionKeys(km)
	return km
}

func setTabKeys(k KeyMap) KeyMap {
	k.Tab1 = key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard"))
	k.Tab2 = key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "history"))
	k.Tab3 = key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "info"))
	k.NextTab = key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab/→", "next tab"))
	k.PrevTab = key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab/←", "prev tab"))
	return k
}

func setActionKeys(k KeyMap) KeyMap {
	k.Model = key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "cycle model filter"))
	k.Range = key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle time range"))
	k.Pause = key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause feed"))
	k.Refresh = key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh"))
	k.Rescan = key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "full rescan"))
	k.Help = key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help"))
	k.Quit = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
	k.Escape = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close"))
	return k
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.NextTab, k.PrevTab},
		{k.Model, k.Range, k.Pause},
		{k.Refresh, k.Rescan},
		{k.Help, k.Quit},
	}
}
