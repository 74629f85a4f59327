package database

import "sort"

// ResolveNextBatch is the batch number every migration of the next up run shares
func ResolveNextBatch(records Records) Batch {
	return records.MaxBatch() + 1
}

// ResolveRollbackBatches picks the batches a down run reverses, newest first.
// Without a target only the latest batch qualifies, with one every batch above it does.
func ResolveRollbackBatches(records Records, target *Batch) []Batch {
	if len(records) == 0 {
		return nil
	}

	if target == nil {
		return []Batch{records.MaxBatch()}
	}

	seen := make(map[Batch]struct{})
	var batches []Batch

	for i := range records {
		b := records[i].Batch
		if b <= *target {
			continue
		}

		if _, ok := seen[b]; ok {
			continue
		}

		seen[b] = struct{}{}
		batches = append(batches, b)
	}

	sort.Slice(batches, func(i, j int) bool {
		return batches[i] > batches[j]
	})

	return batches
}
