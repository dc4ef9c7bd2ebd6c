// Package orgs implements the organization lifecycle manager: the orchestrator
// that keeps the master registry row and the physical per-organization data
// partition consistent across create, update, and delete.
//
// The backend offers no transaction spanning the registry table and a
// partition DDL statement, so consistency is approximated by a fixed ordering
// discipline with synchronous compensation:
//
//	Create:  registry insert first (uniqueness fails cheaply, no orphan
//	         partition), then partition create; on partition failure the
//	         fresh registry row is deleted before the error returns.
//	Update:  registry rename first (uniqueness re-check), then partition
//	         rename; on partition failure the registry name is reverted.
//	Delete:  partition drop first (idempotent), then registry delete; a crash
//	         between the two leaves a registry row without a partition — a
//	         detectable inconsistency — never an orphaned partition invisible
//	         to the registry.
//
// Concurrent conflicting requests for the same name are not serialized here;
// the registry's single-row atomicity is the only concurrency primitive, and
// the multi-step sequences above are eventually consistent under such races.
//
// The service holds no in-memory state between calls.
package orgs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/org-registry/org-registry/internal/auth"
	"github.com/org-registry/org-registry/internal/db/models"
	"github.com/org-registry/org-registry/internal/db/repositories"
	"github.com/org-registry/org-registry/internal/partition"
	"github.com/org-registry/org-registry/internal/telemetry"
)

// Registry is the view of the master registry store the lifecycle manager
// depends on. Implemented by repositories.OrganizationRepository.
type Registry interface {
	GetByName(ctx context.Context, name string) (*models.Organization, error)
	GetByEmail(ctx context.Context, email string) (*models.Organization, error)
	Insert(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, name string, patch models.Patch) (*models.Organization, error)
	Delete(ctx context.Context, name string) error
}

// Partitions is the view of the partition manager the lifecycle manager
// depends on. Implemented by partition.Manager.
type Partitions interface {
	Create(ctx context.Context, partition string) error
	Rename(ctx context.Context, oldName, newName string) error
	Drop(ctx context.Context, partition string) error
}

// Tokens issues and verifies the bearer tokens gating destructive operations.
// Implemented by auth.TokenIssuer.
type Tokens interface {
	Issue(adminID, organizationID string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// Service orchestrates the registry store, partition manager, and credential
// service. Registry rows and partitions are only ever mutated through it.
type Service struct {
	registry   Registry
	partitions Partitions
	tokens     Tokens
}

// NewService creates a lifecycle service over its three collaborators.
func NewService(registry Registry, partitions Partitions, tokens Tokens) *Service {
	return &Service{
		registry:   registry,
		partitions: partitions,
		tokens:     tokens,
	}
}

// UpdateRequest carries the optional fields of an update. Empty strings mean
// "leave unchanged".
type UpdateRequest struct {
	NewName     string
	NewEmail    string
	NewPassword string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token        string
	Organization *models.Organization
}

// Create registers a new organization: one registry row, one admin
// credential, one empty partition named org_<normalized name>.
//
// The registry insert runs before the partition create on purpose: name and
// email collisions are the common failure and abort before any partition
// exists. If the partition create fails afterwards, the fresh registry row is
// deleted synchronously so the registry never references a missing partition.
func (s *Service) Create(ctx context.Context, name, email, password string) (*models.Organization, error) {
	normalized := partition.Normalize(name)
	if err := partition.ValidateName(normalized); err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("create", "invalid_name").Inc()
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("create", "invalid_password").Inc()
		return nil, err
	}

	org := &models.Organization{
		Name:          normalized,
		PartitionName: partition.Name(normalized),
		Admin: models.Admin{
			Email:        email,
			PasswordHash: hash,
		},
	}

	if err := s.registry.Insert(ctx, org); err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("create", outcome(err)).Inc()
		return nil, err
	}

	if err := s.partitions.Create(ctx, org.PartitionName); err != nil {
		// Roll back the registry insert so the row never points at a
		// partition that was not provisioned, then surface the partition
		// error unchanged.
		if delErr := s.registry.Delete(ctx, normalized); delErr != nil {
			slog.Error("create rollback failed; registry row references a missing partition",
				"organization", normalized, "error", delErr)
		}
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("create", "rolled_back").Inc()
		return nil, err
	}

	slog.Info("organization created", "organization", normalized, "partition", org.PartitionName)
	telemetry.OrgLifecycleOperationsTotal.WithLabelValues("create", "ok").Inc()
	return org, nil
}

// Get returns the registry metadata for an organization. Read-only, no auth;
// the password hash stays inside the model and is never serialized by the
// API layer.
func (s *Service) Get(ctx context.Context, name string) (*models.Organization, error) {
	org, err := s.registry.GetByName(ctx, partition.Normalize(name))
	telemetry.OrgLifecycleOperationsTotal.WithLabelValues("get", outcome(err)).Inc()
	return org, err
}

// Update applies an optional rename, email change, and password change.
//
// A rename touches both the registry and the partition: the registry update
// runs first so uniqueness violations abort before any DDL, and a failed
// partition rename reverts the registry to the old name before the rename
// error is surfaced. Email and password changes are independent single-row
// updates and never touch the partition.
func (s *Service) Update(ctx context.Context, name string, req UpdateRequest) (*models.Organization, error) {
	normalized := partition.Normalize(name)

	org, err := s.registry.GetByName(ctx, normalized)
	if err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("update", outcome(err)).Inc()
		return nil, err
	}

	current := org

	if req.NewName != "" {
		newName := partition.Normalize(req.NewName)
		if err := partition.ValidateName(newName); err != nil {
			telemetry.OrgLifecycleOperationsTotal.WithLabelValues("update", "invalid_name").Inc()
			return nil, err
		}

		if newName != current.Name {
			oldName, oldPartition := current.Name, current.PartitionName
			newPartition := partition.Name(newName)

			renamed, err := s.registry.Update(ctx, oldName, models.Patch{
				Name:          &newName,
				PartitionName: &newPartition,
			})
			if err != nil {
				telemetry.OrgLifecycleOperationsTotal.WithLabelValues("update", outcome(err)).Inc()
				return nil, err
			}

			if err := s.partitions.Rename(ctx, oldPartition, newPartition); err != nil {
				// Revert the registry rename so registry and partition stay
				// consistent, then surface the partition error unchanged.
				if _, revertErr := s.registry.Update(ctx, newName, models.Patch{
					Name:          &oldName,
					PartitionName: &oldPartition,
				}); revertErr != nil {
					slog.Error("rename revert failed; registry name diverges from partition",
						"organization", oldName, "error", revertErr)
				}
				telemetry.OrgLifecycleOperationsTotal.WithLabelValues("update", "rename_reverted").Inc()
				return nil, err
			}

			current = renamed
			slog.Info("organization renamed",
				"from", oldName, "to", newName, "partition", newPartition)
		}
	}

	patch := models.Patch{}
	if req.NewEmail != "" {
		patch.Email = &req.NewEmail
	}
	if req.NewPassword != "" {
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			telemetry.OrgLifecycleOperationsTotal.WithLabelValues("update", "invalid_password").Inc()
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	if !patch.IsZero() {
		updated, err := s.registry.Update(ctx, current.Name, patch)
		if err != nil {
			telemetry.OrgLifecycleOperationsTotal.WithLabelValues("update", outcome(err)).Inc()
			return nil, err
		}
		current = updated
	}

	telemetry.OrgLifecycleOperationsTotal.WithLabelValues("update", "ok").Inc()
	return current, nil
}

// Delete removes an organization and its partition. The bearer token must be
// valid and must name the organization being deleted: an admin may only
// delete their own organization.
//
// The partition is dropped before the registry row is deleted. Drop is
// idempotent, so a retry after a crash between the two steps cleanly removes
// the dangling registry row.
func (s *Service) Delete(ctx context.Context, name, token string) error {
	normalized := partition.Normalize(name)

	claims, err := s.tokens.Verify(token)
	if err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("delete", "unauthorized").Inc()
		return ErrUnauthorized
	}
	if claims.OrganizationID != normalized {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("delete", "unauthorized").Inc()
		return ErrUnauthorized
	}

	org, err := s.registry.GetByName(ctx, normalized)
	if err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("delete", outcome(err)).Inc()
		return err
	}

	if err := s.partitions.Drop(ctx, org.PartitionName); err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("delete", "partition_error").Inc()
		return err
	}

	if err := s.registry.Delete(ctx, normalized); err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("delete", outcome(err)).Inc()
		return err
	}

	slog.Info("organization deleted", "organization", normalized, "partition", org.PartitionName)
	telemetry.OrgLifecycleOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Login authenticates an admin by email and password and mints a bearer
// token naming their organization. An unknown email and a wrong password
// produce the identical ErrInvalidCredentials so callers cannot probe which
// emails are registered.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	org, err := s.registry.GetByEmail(ctx, email)
	if err != nil {
		// Only an absent email is a credential failure. Backend errors keep
		// their own kind so they surface as 500, not 401.
		if errors.Is(err, repositories.ErrNotFound) {
			telemetry.OrgLifecycleOperationsTotal.WithLabelValues("login", "invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("login", "error").Inc()
		return nil, err
	}

	if !auth.VerifyPassword(password, org.Admin.PasswordHash) {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("login", "invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(org.Admin.Email, org.Name)
	if err != nil {
		telemetry.OrgLifecycleOperationsTotal.WithLabelValues("login", "error").Inc()
		return nil, err
	}

	slog.Info("admin logged in", "organization", org.Name)
	telemetry.OrgLifecycleOperationsTotal.WithLabelValues("login", "ok").Inc()
	return &LoginResult{Token: token, Organization: org}, nil
}

// outcome maps an error to a coarse metrics label. Organization names never
// appear in labels.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repositories.ErrNotFound):
		return "not_found"
	case errors.Is(err, repositories.ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return "duplicate_email"
	default:
		return "error"
	}
}
