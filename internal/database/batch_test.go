package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func batchPtr(b Batch) *Batch {
	return &b
}

func TestResolveNextBatch(t *testing.T) {
	tt := []struct {
		name     string
		records  Records
		expected Batch
	}{
		{name: "empty ledger starts at one", expected: 1},
		{
			name:     "single batch",
			records:  Records{{Name: "a", Batch: 1}, {Name: "b", Batch: 1}},
			expected: 2,
		},
		{
			name:     "gaps left by a targeted rollback do not matter",
			records:  Records{{Name: "a", Batch: 1}, {Name: "c", Batch: 4}},
			expected: 5,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolveNextBatch(tc.records))
		})
	}
}

func TestResolveRollbackBatches(t *testing.T) {
	records := Records{
		{Name: "a", Batch: 1},
		{Name: "b", Batch: 2},
		{Name: "c", Batch: 2},
		{Name: "d", Batch: 3},
	}

	tt := []struct {
		name     string
		records  Records
		target   *Batch
		expected []Batch
	}{
		{name: "empty ledger is a no-op", records: nil, expected: nil},
		{name: "empty ledger with target is a no-op", records: nil, target: batchPtr(0), expected: nil},
		{name: "latest batch only", records: records, expected: []Batch{3}},
		{name: "everything above zero", records: records, target: batchPtr(0), expected: []Batch{3, 2, 1}},
		{name: "everything above one", records: records, target: batchPtr(1), expected: []Batch{3, 2}},
		{name: "target at the latest batch", records: records, target: batchPtr(3), expected: nil},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolveRollbackBatches(tc.records, tc.target))
		})
	}
}

func TestValidateTableName(t *testing.T) {
	assert.NoError(t, ValidateTableName("migrations"))
	assert.NoError(t, ValidateTableName("_schema_v2"))
	assert.Error(t, ValidateTableName(""))
	assert.Error(t, ValidateTableName("2migrations"))
	assert.Error(t, ValidateTableName("migrations; DROP TABLE users"))
	assert.Equal(t, "migrations_lock", LockTable("migrations"))
}
