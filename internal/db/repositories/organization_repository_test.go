package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/org-registry/org-registry/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var orgCols = []string{"id", "name", "partition_name", "admin_email", "admin_password_hash", "created_at", "updated_at"}
var orgInsertCols = []string{"id", "created_at", "updated_at"}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func sampleOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols).
		AddRow("org-1", "acme", "org_acme", "admin@acme.com", "$2a$10$hash", time.Now(), time.Now())
}

func emptyOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols)
}

func newOrgRepo(t *testing.T) (*OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewOrganizationRepository(db), mock
}

func uniqueViolation(constraint string) *pq.Error {
	return &pq.Error{Code: pqUniqueViolation, Constraint: constraint}
}

// ---------------------------------------------------------------------------
// GetByName / GetByEmail
// ---------------------------------------------------------------------------

func TestGetByName_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
		WithArgs("acme").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByName(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.Name != "acme" {
		t.Errorf("Name = %s, want acme", org.Name)
	}
	if org.PartitionName != "org_acme" {
		t.Errorf("PartitionName = %s, want org_acme", org.PartitionName)
	}
	if org.Admin.Email != "admin@acme.com" {
		t.Errorf("Admin.Email = %s, want admin@acme.com", org.Admin.Email)
	}
}

func TestGetByName_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
		WillReturnRows(emptyOrgRow())

	_, err := repo.GetByName(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE admin_email").
		WithArgs("admin@acme.com").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByEmail(context.Background(), "admin@acme.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.Admin.PasswordHash == "" {
		t.Error("expected password hash to be loaded for login verification")
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE admin_email").
		WillReturnRows(emptyOrgRow())

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Insert
// ---------------------------------------------------------------------------

func TestInsert_OK(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("acme", "org_acme", "admin@acme.com", "$2a$10$hash").
		WillReturnRows(sqlmock.NewRows(orgInsertCols).AddRow("org-1", time.Now(), time.Now()))

	org := &models.Organization{
		Name:          "acme",
		PartitionName: "org_acme",
		Admin:         models.Admin{Email: "admin@acme.com", PasswordHash: "$2a$10$hash"},
	}
	if err := repo.Insert(context.Background(), org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID != "org-1" {
		t.Errorf("ID = %s, want org-1 (generated id written back)", org.ID)
	}
	if org.CreatedAt.IsZero() || org.UpdatedAt.IsZero() {
		t.Error("timestamps should be written back from RETURNING")
	}
}

func TestInsert_DuplicateName(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("INSERT INTO organizations").
		WillReturnError(uniqueViolation(nameConstraint))

	err := repo.Insert(context.Background(), &models.Organization{Name: "acme"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}

func TestInsert_DuplicateEmail(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("INSERT INTO organizations").
		WillReturnError(uniqueViolation(emailConstraint))

	err := repo.Insert(context.Background(), &models.Organization{Name: "other"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestInsert_BackendError(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("INSERT INTO organizations").
		WillReturnError(errors.New("connection reset"))

	err := repo.Insert(context.Background(), &models.Organization{Name: "acme"})
	if err == nil || errors.Is(err, ErrDuplicateName) || errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("backend error must not be masked as a duplicate: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func strptr(s string) *string { return &s }

func TestUpdate_NameChange(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("UPDATE organizations.*SET.*WHERE name").
		WithArgs("acme", "globex", "org_globex").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow("org-1", "globex", "org_globex", "admin@acme.com", "$2a$10$hash", time.Now(), time.Now()))

	org, err := repo.Update(context.Background(), "acme", models.Patch{
		Name:          strptr("globex"),
		PartitionName: strptr("org_globex"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.Name != "globex" || org.PartitionName != "org_globex" {
		t.Errorf("updated org = %s/%s, want globex/org_globex", org.Name, org.PartitionName)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("UPDATE organizations.*SET.*WHERE name").
		WillReturnRows(sqlmock.NewRows(orgCols))

	_, err := repo.Update(context.Background(), "missing", models.Patch{Email: strptr("x@y.com")})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_DuplicateNameOnRename(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("UPDATE organizations.*SET.*WHERE name").
		WillReturnError(uniqueViolation(nameConstraint))

	_, err := repo.Update(context.Background(), "acme", models.Patch{Name: strptr("taken")})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}

func TestUpdate_DuplicateEmailOnChange(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("UPDATE organizations.*SET.*WHERE name").
		WillReturnError(uniqueViolation(emailConstraint))

	_, err := repo.Update(context.Background(), "acme", models.Patch{Email: strptr("taken@x.com")})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestUpdate_EmptyPatchIsARead(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
		WithArgs("acme").
		WillReturnRows(sampleOrgRow())

	org, err := repo.Update(context.Background(), "acme", models.Patch{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.Name != "acme" {
		t.Errorf("Name = %s, want acme", org.Name)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDelete_OK(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("DELETE FROM organizations WHERE name").
		WithArgs("acme").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "acme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("DELETE FROM organizations WHERE name").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
