// Package main provides the entry point for the Sparkle CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	// opts is filled in before any command runs.
	opts options

	rootCmd = &cobra.Command{
		Use:   "sparkle [FILE]",
		Short: "Read books aloud, chapter by chapter",
		Long: paragraph(
			fmt.Sprintf("\nRead PDF, EPUB, Word and Markdown books aloud, %s.", keyword("one sentence at a time")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return supportedExtensions(), cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runRead(cmd.Context(), args[0])
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	o, err := loadOptions(viper.GetViper())
	if err != nil {
		return err
	}
	if debug {
		o.LogLevel = "debug"
	}
	if err := setLogLevel(o.LogLevel); err != nil {
		return err
	}
	opts = o
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	_ = closer()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.BoolVar(&debug, "debug", false, "write debug messages to the log file")
	flags.StringP("engine", "e", engineMock, "narration engine (mock, piper, gtts)")
	flags.Float64P("rate", "r", 1.0, "speaking rate (0.5 to 3.0)")
	flags.String("voice", "", "voice id, see sparkle voices")
	flags.String("chunking", "sentence", "chunking policy (sentence, smart)")
	flags.Bool("auto-advance", false, "continue with the next chapter when one finishes")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("rate", flags.Lookup("rate"))
	_ = viper.BindPFlag("voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("chunking", flags.Lookup("chunking"))
	_ = viper.BindPFlag("auto_advance", flags.Lookup("auto-advance"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	rootCmd.AddCommand(readCmd, serveCmd, chaptersCmd, voicesCmd, findCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	setDefaults(viper.GetViper())

	scope := gap.NewScope(gap.User, "sparkle")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "sparkle")}, dirs...)
	}

	if c := os.Getenv("SPARKLE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("sparkle")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("sparkle")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "sparkle.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Warn("Could not parse configuration file", "err", err)
	}
}
