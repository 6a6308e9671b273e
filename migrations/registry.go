// Package migrations exposes the embedded reconciliation schema to host
// applications that own the migration runner.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	reconcile "github.com/goliatone/go-reconcile"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	migrationsPath     = "data/sql/migrations"
	defaultSourceLabel = "go-reconcile"
)

// FilesystemSpec pairs one dialect with its embedded migration tree.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Registration records what was handed to the host runner.
type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

// RegisterFunc is the host hook that receives one dialect's migrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithSourceLabel overrides the label the host runner files the schema
// under.
func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets restricts registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// Filesystems resolves the embedded postgres and sqlite migration
// trees. Postgres files sit at the migrations root; the sqlite
// variants are nested one level below.
func Filesystems() ([]FilesystemSpec, error) {
	root, err := fs.Sub(reconcile.GetCoreMigrationsFS(), migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsPath, err)
	}
	sqlite, err := fs.Sub(root, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite variant: %w", err)
	}

	filesystems := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: migrationsPath, FS: root},
		{Dialect: DialectSQLite, Path: path.Join(migrationsPath, "sqlite"), FS: sqlite},
	}
	for _, spec := range filesystems {
		matches, globErr := fs.Glob(spec.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", spec.Path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: no *.up.sql files under %s", spec.Path)
		}
	}
	return filesystems, nil
}

// Register hands each targeted dialect's filesystem to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	targeted := make(map[string]bool, len(reg.ValidationTargets))
	for _, dialect := range reg.ValidationTargets {
		targeted[dialect] = true
	}
	for _, spec := range reg.Filesystems {
		if !targeted[spec.Dialect] {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := strings.ToLower(strings.TrimSpace(value))
		if dialect == "" || seen[dialect] {
			continue
		}
		seen[dialect] = true
		out = append(out, dialect)
	}
	return out
}
