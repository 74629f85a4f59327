package database

import (
	"sort"

	"github.com/denismitr/tide/migration"
)

// ScheduleForMigration returns every candidate missing from the ledger, ascending by name
func ScheduleForMigration(candidates migration.Migrations, records Records) migration.Migrations {
	var scheduled migration.Migrations

	for i := range candidates {
		if !records.Has(candidates[i].Name) {
			scheduled = append(scheduled, candidates[i])
		}
	}

	sort.Sort(scheduled)

	return scheduled
}

// ScheduleForRollback returns the reversible candidates recorded in one of the
// given batches. Batches are visited in the order given, names descending within each.
func ScheduleForRollback(
	candidates migration.Migrations,
	records Records,
	batches []Batch,
) migration.Migrations {
	var scheduled migration.Migrations

	for _, batch := range batches {
		for _, m := range inBatch(candidates, records, batch) {
			if m.Reversible() {
				scheduled = append(scheduled, m)
			}
		}
	}

	return scheduled
}

// MissingDowns lists the candidates a rollback over the given batches would
// have to reverse but cannot
func MissingDowns(candidates migration.Migrations, records Records, batches []Batch) []string {
	var missing []string

	for _, batch := range batches {
		for _, m := range inBatch(candidates, records, batch) {
			if !m.Reversible() {
				missing = append(missing, m.Name)
			}
		}
	}

	return missing
}

// Orphans lists ledger names inside the batches that have no candidate definition
func Orphans(candidates migration.Migrations, records Records, batches []Batch) []string {
	var orphans []string

	for _, batch := range batches {
		for i := range records {
			if records[i].Batch != batch {
				continue
			}

			if _, ok := candidates.Find(records[i].Name); !ok {
				orphans = append(orphans, records[i].Name)
			}
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(orphans)))

	return orphans
}

func inBatch(candidates migration.Migrations, records Records, batch Batch) migration.Migrations {
	var result migration.Migrations

	for i := range candidates {
		r, ok := records.Find(candidates[i].Name)
		if ok && r.Batch == batch {
			result = append(result, candidates[i])
		}
	}

	sort.Sort(sort.Reverse(result))

	return result
}
