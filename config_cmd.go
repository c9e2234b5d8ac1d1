package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# narration engine: mock, piper or gtts
engine: "mock"
# speaking rate, 0.5 to 3.0
rate: 1.0
# preferred voice id (see sparkle voices), empty for the engine default
voice: ""
# chunking policy: sentence or smart
chunking: "sentence"
# split chunks longer than this many characters (0 disables)
max_chunk_runes: 0
# continue with the next chapter when one finishes
auto_advance: false
# mouse support (TUI-mode only)
mouse: false

progress:
  # where the last chapter is remembered, empty for the data directory
  path: ""

log:
  # debug, info, warn or error
  level: "info"

piper:
  binary: "piper"
  # one voice per model file
  models: []
  #  - "~/.local/share/piper/en_US-lessac-medium.onnx"
  speaker: ""
  sample_rate: 22050

gtts:
  language: "en"
  slow: false
  requests_per_minute: 50
  sample_rate: 44100

server:
  addr: "127.0.0.1:8080"
  max_upload_mb: 50
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the sparkle config file",
	Long:    paragraph(fmt.Sprintf("\n%s the sparkle config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created. Rate, voice and auto advance changes are picked up by a running reader.", keyword("Edit"))),
	Example: paragraph("sparkle config\nsparkle config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Sparkle", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if configFile == "" {
			return errors.New("no config file location")
		}
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
