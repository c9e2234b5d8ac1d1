package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/spf13/cobra"
)

var (
	findAll bool

	findCmd = &cobra.Command{
		Use:     "find [DIR]",
		Short:   "Find readable documents in a directory",
		Long:    paragraph(fmt.Sprintf("\n%s PDF, EPUB, Word, Markdown and text files below DIR, the current directory by default. Files ignored by git are skipped unless --all is given.", keyword("Find"))),
		Example: paragraph("sparkle find ~/Books"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return findDocuments(cmd.OutOrStdout(), dir, findAll)
		},
	}
)

func init() {
	findCmd.Flags().BoolVarP(&findAll, "all", "a", false, "include hidden and git-ignored files")
}

// supportedExtensions lists document extensions without the leading dot.
func supportedExtensions() []string {
	var exts []string
	for _, ext := range document.SupportedExtensions() {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	return exts
}

func documentPatterns() []string {
	var patterns []string
	for _, ext := range document.SupportedExtensions() {
		patterns = append(patterns, "*"+ext)
	}
	return patterns
}

// findDocuments prints the documents below dir, newest first.
func findDocuments(w io.Writer, dir string, all bool) error {
	cwd, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("unable to resolve %s: %w", dir, err)
	}

	var ch chan gitcha.SearchResult
	if all {
		ch, err = gitcha.FindAllFilesExcept(cwd, documentPatterns(), nil)
	} else {
		ch, err = gitcha.FindFilesExcept(cwd, documentPatterns(), nil)
	}
	if err != nil {
		return fmt.Errorf("error finding local files: %w", err)
	}

	var found []gitcha.SearchResult
	for res := range ch {
		found = append(found, res)
	}
	if len(found) == 0 {
		fmt.Fprintln(w, dim("No documents found."))
		return nil
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Info.ModTime().After(found[j].Info.ModTime())
	})

	for _, res := range found {
		rel, err := filepath.Rel(cwd, res.Path)
		if err != nil {
			rel = res.Path
		}
		fmt.Fprintf(w, "%s %s\n", rel, dim(fmt.Sprintf("%s, %s", humanize.Bytes(uint64(res.Info.Size())), humanize.Time(res.Info.ModTime())))) //nolint:gosec
	}
	return nil
}
