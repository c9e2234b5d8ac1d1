package main

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/sparklereader/sparkle/internal/narration"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the narration engine",
	Example: paragraph("sparkle voices --engine piper"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		vs, err := voices(opts)
		if err != nil {
			return err
		}
		printVoices(cmd.OutOrStdout(), vs, opts.Voice)
		return nil
	},
}

// printVoices writes one voice per line in aligned columns, marking the
// configured voice.
func printVoices(w io.Writer, vs []narration.Voice, selected string) {
	if len(vs) == 0 {
		fmt.Fprintln(w, dim("No voices available."))
		return
	}

	selected = narration.SelectVoice(vs, selected)
	idWidth, nameWidth := 2, 4
	for _, v := range vs {
		idWidth = max(idWidth, runewidth.StringWidth(v.ID))
		nameWidth = max(nameWidth, runewidth.StringWidth(v.Name))
	}

	fmt.Fprintf(w, "  %s  %s  %s\n", runewidth.FillRight("ID", idWidth), runewidth.FillRight("NAME", nameWidth), "LANGUAGE")
	for _, v := range vs {
		marker := "  "
		if v.ID == selected {
			marker = keyword("* ")
		}
		fmt.Fprintf(w, "%s%s  %s  %s\n", marker, runewidth.FillRight(v.ID, idWidth), runewidth.FillRight(v.Name, nameWidth), v.Language)
	}
}
