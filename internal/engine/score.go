package engine

import (
	"sort"

	"github.com/jtarleton/lorebook/internal/model"
)

// DefaultAuthorNoteDepth is the fallback depth when neither the chat nor the
// configuration provides one.
const DefaultAuthorNoteDepth = 4

// Score maps an entry's placement to its priority. Higher scores come first.
// The static slots sit in fixed bands; at_depth entries score their raw
// depth, and author-note slots score just above/below the configured
// author-note depth, so the two kinds interleave by runtime configuration.
// That interleaving is intentional and must not be normalized away.
func Score(e model.Entry, authorNoteDepth float64) float64 {
	switch e.Position {
	case model.PosBeforeChar:
		return 100000
	case model.PosAfterChar:
		return 90000
	case model.PosBeforeExamples:
		return 80000
	case model.PosAfterExamples:
		return 70000
	case model.PosAtDepth:
		return float64(e.Depth)
	case model.PosBeforeAuthorNote:
		return authorNoteDepth + 0.6
	case model.PosAfterAuthorNote:
		return authorNoteDepth + 0.4
	default:
		return -9999
	}
}

// SortEntries orders entries in place: score descending, then order
// ascending, then uid ascending. Used for display, write-back and export.
func SortEntries(entries []model.Entry, authorNoteDepth float64) {
	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := Score(entries[i], authorNoteDepth), Score(entries[j], authorNoteDepth)
		if si != sj {
			return si > sj
		}
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].UID < entries[j].UID
	})
}
