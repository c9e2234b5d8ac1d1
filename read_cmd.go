package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/sparklereader/sparkle/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var readCmd = &cobra.Command{
	Use:   "read FILE",
	Short: "Read a document aloud in the terminal",
	Long: paragraph(fmt.Sprintf("\n%s a PDF, EPUB, Word, Markdown or text file chapter by chapter. The chapter you were on is remembered for next time.",
		keyword("Read"))),
	Example: paragraph("sparkle read book.epub\nsparkle read --engine piper --rate 1.25 book.pdf"),
	Args:    cobra.ExactArgs(1),
	ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return supportedExtensions(), cobra.ShellCompDirectiveFilterFileExt
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRead(cmd.Context(), args[0])
	},
}

func readDocument(path string) (ui.Document, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return ui.Document{}, fmt.Errorf("unable to expand path: %w", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return ui.Document{}, fmt.Errorf("unable to open file: %w", err)
	}
	return ui.Document{Name: filepath.Base(p), Data: data}, nil
}

func runRead(ctx context.Context, path string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("sparkle read needs a terminal, try sparkle serve")
	}

	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.EnableMouse = viper.GetBool("mouse")

	port, closePort, err := newPort(opts)
	if err != nil {
		return err
	}
	defer func() { _ = closePort() }()

	rd, err := newReader(port, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := rd.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("narration stopped", "err", err)
		}
	}()
	watchConfig(viper.GetViper(), rd)

	p := ui.NewProgram(cfg, rd, doc)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}
