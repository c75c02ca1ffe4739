package domain

// ChooseOwner picks a cell's owner from its score ledger. The rule, applied
// explicitly rather than leaning on sort stability: most points wins; on a
// tie, whoever reached the total first (earliest last-update) wins; a final
// tie goes to the lower player id.
func ChooseOwner(entries []ScoreEntry) (ScoreEntry, bool) {
	if len(entries) == 0 {
		return ScoreEntry{}, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if Outranks(e, best) {
			best = e
		}
	}
	return best, true
}

// Outranks reports whether a precedes b in ownership order.
func Outranks(a, b ScoreEntry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.PlayerID < b.PlayerID
}
