// organization_repository.go implements the registry store: database queries
// for the master organizations table, including uniqueness-aware insert and
// patch-style update.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/org-registry/org-registry/internal/db/models"
)

// pq error codes and constraint names used to translate unique violations
// into the registry error kinds. The constraint names are fixed by the
// migration and are part of the contract between schema and code.
const (
	pqUniqueViolation = "23505"
	nameConstraint    = "organizations_name_key"
	emailConstraint   = "organizations_admin_email_key"
)

// OrganizationRepository handles database operations for the master registry
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// translateUnique maps a pq unique violation to ErrDuplicateName or
// ErrDuplicateEmail by constraint name, or returns nil if err is not one.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case nameConstraint:
		return ErrDuplicateName
	case emailConstraint:
		return ErrDuplicateEmail
	}
	return nil
}

// GetByName retrieves an organization by its (normalized) name
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `
		SELECT id, name, partition_name, admin_email, admin_password_hash, created_at, updated_at
		FROM organizations
		WHERE name = $1
	`

	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&org.ID,
		&org.Name,
		&org.PartitionName,
		&org.Admin.Email,
		&org.Admin.PasswordHash,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetByEmail retrieves an organization by its admin email. Used by login.
func (r *OrganizationRepository) GetByEmail(ctx context.Context, email string) (*models.Organization, error) {
	query := `
		SELECT id, name, partition_name, admin_email, admin_password_hash, created_at, updated_at
		FROM organizations
		WHERE admin_email = $1
	`

	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&org.ID,
		&org.Name,
		&org.PartitionName,
		&org.Admin.Email,
		&org.Admin.PasswordHash,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization by email: %w", err)
	}

	return org, nil
}

// Insert creates a new organization row together with its admin credential.
// Name and email uniqueness are enforced by the database constraints; a
// violation surfaces as ErrDuplicateName or ErrDuplicateEmail. On success the
// generated ID and timestamps are written back into org.
func (r *OrganizationRepository) Insert(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, partition_name, admin_email, admin_password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		org.Name,
		org.PartitionName,
		org.Admin.Email,
		org.Admin.PasswordHash,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		if dup := translateUnique(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert organization: %w", err)
	}

	return nil
}

// Update applies a patch to the organization identified by name and returns
// the updated row. Uniqueness of a new name or email is re-checked by the
// same constraints that guard Insert. Returns ErrNotFound if no row matches.
func (r *OrganizationRepository) Update(ctx context.Context, name string, patch models.Patch) (*models.Organization, error) {
	if patch.IsZero() {
		return r.GetByName(ctx, name)
	}

	// Build the SET clause from the non-nil patch fields. Positional
	// parameters start at $2 because $1 is the WHERE name.
	set := "updated_at = NOW()"
	args := []interface{}{name}
	next := 2

	add := func(column string, value interface{}) {
		set += fmt.Sprintf(", %s = $%d", column, next)
		args = append(args, value)
		next++
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.PartitionName != nil {
		add("partition_name", *patch.PartitionName)
	}
	if patch.Email != nil {
		add("admin_email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		add("admin_password_hash", *patch.PasswordHash)
	}

	query := fmt.Sprintf(`
		UPDATE organizations
		SET %s
		WHERE name = $1
		RETURNING id, name, partition_name, admin_email, admin_password_hash, created_at, updated_at
	`, set)

	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&org.ID,
		&org.Name,
		&org.PartitionName,
		&org.Admin.Email,
		&org.Admin.PasswordHash,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if dup := translateUnique(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}

// Delete removes the registry row only; the physical partition is dropped
// separately by the partition manager. Returns ErrNotFound if no row matches.
func (r *OrganizationRepository) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM organizations WHERE name = $1`

	res, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
