package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dshills/rewind/internal/app"
)

// writeText prints the report for a terminal. The item undo would revert
// is marked with '>', undone items with '~'.
func writeText(w io.Writer, r app.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Shapes:")
	if len(r.Scene.Shapes) == 0 {
		fmt.Fprintln(tw, "  (none)")
	}
	for _, s := range r.Scene.Shapes {
		color := s.Color
		if color == "" {
			color = "-"
		}
		fmt.Fprintf(tw, "  %s\tx=%g\ty=%g\tvisible=%t\tcolor=%s\n", s.Name, s.X, s.Y, s.Visible, color)
	}

	fmt.Fprintf(tw, "Layers:\t%s\n", orNone(strings.Join(r.Scene.Layers, ", ")))

	keys := make([]string, 0, len(r.Scene.Tags))
	for k := range r.Scene.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]string, len(keys))
	for i, k := range keys {
		tags[i] = k + "=" + r.Scene.Tags[k]
	}
	fmt.Fprintf(tw, "Tags:\t%s\n", orNone(strings.Join(tags, ", ")))

	fmt.Fprintf(tw, "History (%d items):\n", len(r.History))
	for i, e := range r.History {
		mark := " "
		switch {
		case i == r.Cursor:
			mark = ">"
		case e.Undone:
			mark = "~"
		}
		fmt.Fprintf(tw, "%s %d\t%s\t%s\n", mark, i+1, e.Description, plural(e.Changes, "change"))
	}
	return tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
