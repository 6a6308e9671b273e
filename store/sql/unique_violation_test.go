package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{
			name: "repository duplicate category",
			err:  goerrors.NewNonRetryable("Duplicate key value violates unique constraint", repository.CategoryDatabaseDuplicate),
			want: true,
		},
		{
			name: "raw sqlite message",
			err:  errors.New("constraint failed: UNIQUE constraint failed: recon_inventory_levels.canonical_id, recon_inventory_levels.warehouse_key"),
			want: true,
		},
		{
			name: "raw postgres message",
			err:  errors.New(`ERROR: duplicate key value violates unique constraint "recon_normalization_rules_original_name_source_type_key" (SQLSTATE=23505)`),
			want: true,
		},
		{
			name: "wrapped sqlite message",
			err:  fmt.Errorf("insert inventory level: %w", errors.New("UNIQUE constraint failed: recon_inventory_levels.canonical_id")),
			want: true,
		},
		{name: "no rows", err: sql.ErrNoRows, want: false},
		{name: "unrelated failure", err: errors.New("database is locked"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUniqueViolation(tc.err); got != tc.want {
				t.Fatalf("isUniqueViolation(%v) = %t, want %t", tc.err, got, tc.want)
			}
		})
	}
}
