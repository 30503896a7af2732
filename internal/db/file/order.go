package file

// olderFirst orders by epoch ascending, then id ascending.
func olderFirst(epochA, idA, epochB, idB int64) bool {
	if epochA != epochB {
		return epochA < epochB
	}
	return idA < idB
}

// newerFirst orders by epoch descending, then id descending.
func newerFirst(epochA, idA, epochB, idB int64) bool {
	if epochA != epochB {
		return epochA > epochB
	}
	return idA > idB
}

// truncate returns at most limit leading elements. limit <= 0 keeps everything.
func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
