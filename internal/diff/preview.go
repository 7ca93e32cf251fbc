package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/halvard/munin/internal/models"
)

// Preview renders the pending op batch as a human-readable unified diff.
// It is a review surface only; the committed batch comes from FileMaps.
func Preview(original, edited *models.FileMap) string {
	var b strings.Builder
	for _, op := range FileMaps(original, edited) {
		switch o := op.(type) {
		case models.WriteOp:
			var before string
			from := "/dev/null"
			if of, ok := original.Get(o.Path); ok {
				if text, has := of.Content(); has {
					before = text
					from = "a/" + o.Path
				}
			}
			b.WriteString(unified(from, "b/"+o.Path, before, o.Content))
		case models.DeleteOp:
			var before string
			if of, ok := original.Get(o.Path); ok {
				before, _ = of.Content()
			}
			b.WriteString(unified("a/"+o.Path, "/dev/null", before, ""))
		case models.MoveOp:
			fmt.Fprintf(&b, "rename %s -> %s\n", o.From, o.To)
		}
	}
	return b.String()
}

func unified(from, to, before, after string) string {
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return ""
	}
	return s
}
