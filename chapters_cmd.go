package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sparklereader/sparkle/internal/chunker"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/spf13/cobra"
)

var chaptersCmd = &cobra.Command{
	Use:     "chapters FILE",
	Short:   "List the chapters of a document",
	Example: paragraph("sparkle chapters book.pdf"),
	Args:    cobra.ExactArgs(1),
	ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return supportedExtensions(), cobra.ShellCompDirectiveFilterFileExt
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		ck, err := opts.chunker()
		if err != nil {
			return err
		}
		return printChapters(cmd.OutOrStdout(), doc.Name, doc.Data, ck)
	},
}

// printChapters writes a numbered chapter list with sentence and word
// counts.
func printChapters(w io.Writer, name string, data []byte, ck chunker.Chunker) error {
	chapters, err := document.Parse(data, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n\n", keyword(name), dim(fmt.Sprintf("(%s, %d chapters)", humanize.Bytes(uint64(len(data))), len(chapters))))
	for i, c := range chapters {
		words := len(strings.Fields(c.Content))
		fmt.Fprintf(w, "%4d. %s %s\n", i+1, c.Title,
			dim(fmt.Sprintf("%d sentences, %s words", len(ck.Chunk(c.Content)), humanize.Comma(int64(words)))))
	}
	return nil
}
