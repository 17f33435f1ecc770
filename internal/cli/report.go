package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"podocs/internal/service"
	"podocs/internal/storage"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func okWord() string { return green.Sprint("OK") }

// status pads before colouring so escape codes don't break alignment.
func status(c *color.Color, word string) string {
	return c.Sprint(fmt.Sprintf("%-8s", word))
}

func renderMissing(w io.Writer, missing []service.MissingArtifact) {
	if len(missing) == 0 {
		fmt.Fprintf(w, "%s all recorded artifacts present\n", okWord())
		return
	}

	fmt.Fprintf(w, "%-8s %-9s %-9s %s\n", "STATUS", "DOCUMENT", "PO", "PATH")
	for _, m := range missing {
		fmt.Fprintf(w, "%s %-9d %-9d %s\n", status(red, "MISSING"), m.Document.ID, m.Document.POID, m.Document.FilePath)
	}
	fmt.Fprintf(w, "\n%d document(s) missing their artifact\n", len(missing))
}

func renderOrphans(w io.Writer, orphans []storage.ObjectInfo, removed bool) {
	if len(orphans) == 0 {
		if removed {
			fmt.Fprintf(w, "%s no orphaned artifacts removed\n", okWord())
		} else {
			fmt.Fprintf(w, "%s no orphaned artifacts\n", okWord())
		}
		return
	}

	word, c, verb := "ORPHAN", yellow, "found"
	if removed {
		word, c, verb = "REMOVED", green, "removed"
	}

	fmt.Fprintf(w, "%-8s %10s  %-20s  %s\n", "STATUS", "SIZE", "MODIFIED", "PATH")
	for _, o := range orphans {
		fmt.Fprintf(w, "%s %10d  %-20s  %s\n", status(c, word), o.Size, o.ModTime.UTC().Format(time.RFC3339), o.Path)
	}
	fmt.Fprintf(w, "\n%d orphaned artifact(s) %s\n", len(orphans), verb)
}
