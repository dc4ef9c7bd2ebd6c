// Package partition provisions the physical per-organization data partitions.
//
// Each organization owns one table named org_<name> in the same database as
// the master registry. The naming convention is a bit-exact contract that
// external tooling depends on, so both the prefix and the identifier
// validation are centralized here: a partition identifier is only ever
// derived from a name that has passed Normalize and ValidateName, and is
// always quoted with pq.QuoteIdentifier before being spliced into DDL.
//
// DDL statements cannot take the table name as a bind parameter, which is why
// the validation above is load-bearing and not defensive decoration.
package partition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"github.com/org-registry/org-registry/internal/telemetry"
)

// Prefix is the fixed partition naming prefix. org_<normalized name>.
const Prefix = "org_"

// Partition error kinds.
var (
	// ErrPartitionExists is returned by Create when the identifier is already
	// in use. With the registry's uniqueness check running first this should
	// not occur in normal operation; it surfaces registry/partition drift.
	ErrPartitionExists = errors.New("partition already exists")

	// ErrSourceMissing is returned by Rename when the source partition is absent.
	ErrSourceMissing = errors.New("source partition does not exist")

	// ErrTargetExists is returned by Rename when the target identifier is taken.
	ErrTargetExists = errors.New("target partition already exists")

	// ErrInvalidName is returned for names that would produce an unsafe or
	// malformed partition identifier.
	ErrInvalidName = errors.New("invalid organization name")

	// ErrOperationFailed wraps backend I/O failures during create/rename/drop
	// that are not one of the precise kinds above.
	ErrOperationFailed = errors.New("partition operation failed")
)

// namePattern constrains normalized organization names: leading letter, then
// lowercase letters, digits, or underscores. Combined with the org_ prefix
// this always yields a valid unquoted PostgreSQL identifier, and the length
// bounds match the registry's own 3-50 character rule.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,49}$`)

// Normalize canonicalizes an organization name: trimmed and lowercased.
// Uniqueness and partition naming both operate on the normalized form.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName reports whether a normalized name is acceptable as the basis
// of a partition identifier.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must be 3-50 characters, start with a letter, and contain only lowercase letters, digits, and underscores", ErrInvalidName, name)
	}
	return nil
}

// Name derives the partition identifier for a normalized organization name.
func Name(orgName string) string {
	return Prefix + orgName
}

// Manager creates, renames, and drops the physical per-organization tables.
// It holds no state beyond the connection pool; every operation is a single
// DDL statement against the backend.
type Manager struct {
	db *sql.DB
}

// NewManager creates a partition manager over the given connection pool.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// exists checks for the partition via to_regclass, which resolves a relation
// name to its OID without erroring when the relation is absent.
func (m *Manager) exists(ctx context.Context, partition string) (bool, error) {
	var oid sql.NullString
	err := m.db.QueryRowContext(ctx, `SELECT to_regclass($1)`, partition).Scan(&oid)
	if err != nil {
		return false, fmt.Errorf("%w: existence check for %s: %v", ErrOperationFailed, partition, err)
	}
	return oid.Valid, nil
}

// Exists reports whether the partition table is present. Exposed for
// reconciliation tooling and tests; lifecycle code relies on the precise
// errors from Create/Rename/Drop instead.
func (m *Manager) Exists(ctx context.Context, partition string) (bool, error) {
	return m.exists(ctx, partition)
}

// Create provisions an empty partition table. The payload column mirrors the
// schema-less documents of the tenant data model.
func (m *Manager) Create(ctx context.Context, partition string) error {
	query := fmt.Sprintf(`
		CREATE TABLE %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, pq.QuoteIdentifier(partition))

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P07" { // duplicate_table
			telemetry.PartitionOperationsTotal.WithLabelValues("create", "exists").Inc()
			return ErrPartitionExists
		}
		telemetry.PartitionOperationsTotal.WithLabelValues("create", "error").Inc()
		return fmt.Errorf("%w: create %s: %v", ErrOperationFailed, partition, err)
	}

	telemetry.PartitionOperationsTotal.WithLabelValues("create", "ok").Inc()
	return nil
}

// Rename moves all partition contents from oldName to newName and removes
// oldName, atomically from the caller's perspective: ALTER TABLE RENAME is a
// single transactional DDL statement in PostgreSQL. The explicit pre-checks
// exist to return the precise error kinds rather than parsing DDL failures.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) error {
	srcExists, err := m.exists(ctx, oldName)
	if err != nil {
		telemetry.PartitionOperationsTotal.WithLabelValues("rename", "error").Inc()
		return err
	}
	if !srcExists {
		telemetry.PartitionOperationsTotal.WithLabelValues("rename", "source_missing").Inc()
		return ErrSourceMissing
	}

	dstExists, err := m.exists(ctx, newName)
	if err != nil {
		telemetry.PartitionOperationsTotal.WithLabelValues("rename", "error").Inc()
		return err
	}
	if dstExists {
		telemetry.PartitionOperationsTotal.WithLabelValues("rename", "target_exists").Inc()
		return ErrTargetExists
	}

	query := fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`,
		pq.QuoteIdentifier(oldName), pq.QuoteIdentifier(newName))

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		telemetry.PartitionOperationsTotal.WithLabelValues("rename", "error").Inc()
		return fmt.Errorf("%w: rename %s to %s: %v", ErrOperationFailed, oldName, newName, err)
	}

	telemetry.PartitionOperationsTotal.WithLabelValues("rename", "ok").Inc()
	return nil
}

// Drop deletes the partition and all its contents. Idempotent: dropping a
// partition that does not exist is treated as already cleaned up, which makes
// delete retries after partial failures safe.
func (m *Manager) Drop(ctx context.Context, partition string) error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pq.QuoteIdentifier(partition))

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		telemetry.PartitionOperationsTotal.WithLabelValues("drop", "error").Inc()
		return fmt.Errorf("%w: drop %s: %v", ErrOperationFailed, partition, err)
	}

	telemetry.PartitionOperationsTotal.WithLabelValues("drop", "ok").Inc()
	return nil
}
