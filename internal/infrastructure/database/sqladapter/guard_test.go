package sqladapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

func TestCheckReadOnly_Allowed(t *testing.T) {
	for _, q := range []string{
		"SELECT * FROM patents",
		"  select count(*) from patents;",
		"-- leading comment\nSELECT 1",
		"/* block */ SELECT 1",
		"PRAGMA table_info(patents)",
		"EXPLAIN QUERY PLAN SELECT * FROM patents",
		"SELECT * FROM patents WHERE title = 'a; DROP TABLE patents'",
		`SELECT "出願番号" FROM inpit_data WHERE "出願人" LIKE ?`,
		"SELECT 1; -- trailing comment",
	} {
		t.Run(q, func(t *testing.T) {
			assert.NoError(t, CheckReadOnly(q))
		})
	}
}

func TestCheckReadOnly_Rejected(t *testing.T) {
	tests := []struct {
		query string
		code  errors.ErrorCode
	}{
		{"DELETE FROM patents", errors.ErrCodeNotAllowed},
		{"drop table patents", errors.ErrCodeNotAllowed},
		{"INSERT INTO patents (id) VALUES (1)", errors.ErrCodeNotAllowed},
		{"UPDATE patents SET title = 'x'", errors.ErrCodeNotAllowed},
		{"WITH x AS (SELECT 1) DELETE FROM patents", errors.ErrCodeNotAllowed},
		{"ATTACH DATABASE 'x.db' AS x", errors.ErrCodeNotAllowed},
		{"SELECT 1; DELETE FROM patents", errors.ErrCodeNotAllowed},
		{"PRAGMA query_only = 0", errors.ErrCodeNotAllowed},
		{"/* SELECT */ DELETE FROM patents", errors.ErrCodeNotAllowed},
		{"", errors.ErrCodeInvalidArguments},
		{"   -- only a comment", errors.ErrCodeInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			err := CheckReadOnly(tt.query)
			assert.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}
