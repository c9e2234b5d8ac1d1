package ui

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool

	// Width of the chapter list pane.
	ListWidth int `env:"SPARKLE_LIST_WIDTH" envDefault:"30"`

	// Highlight the chunk being narrated.
	Highlight bool `env:"SPARKLE_HIGHLIGHT" envDefault:"true"`

	// Rate change per keypress.
	RateStep float64 `env:"SPARKLE_RATE_STEP" envDefault:"0.25"`
}
