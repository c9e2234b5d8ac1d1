package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle     key.Binding
	Stop       key.Binding
	Next       key.Binding
	Previous   key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Faster     key.Binding
	Slower     key.Binding
	Voice      key.Binding
	Auto       key.Binding
	Copy       key.Binding
	Filter     key.Binding
	ClearFocus key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Next:       key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n", "next chapter")),
		Previous:   key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p", "previous chapter")),
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open chapter")),
		PageUp:     key.NewBinding(key.WithKeys("pgup", "u"), key.WithHelp("u", "scroll up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown", "d"), key.WithHelp("d", "scroll down")),
		Faster:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		Slower:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "slower")),
		Voice:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "next voice")),
		Auto:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto advance")),
		Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy sentence")),
		Filter:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		ClearFocus: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear filter")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Next, k.Previous, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Stop, k.Next, k.Previous, k.Auto},
		{k.Up, k.Down, k.Select, k.Filter, k.ClearFocus},
		{k.PageUp, k.PageDown, k.Faster, k.Slower, k.Voice},
		{k.Copy, k.Help, k.Quit},
	}
}
