// Package models - organization.go defines the Organization registry row: the
// master record tying an organization name to its admin credential and its
// physical data partition.
package models

import "time"

// Organization represents one tenant in the master registry. The admin
// credential is embedded in the row (exactly one admin per organization), so
// every registry mutation is a single-row operation — the only atomicity
// primitive the concurrency model relies on.
type Organization struct {
	ID            string
	Name          string // case-normalized, globally unique
	PartitionName string // physical per-tenant table, always "org_" + Name
	Admin         Admin
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Admin is the single administrator credential of an organization.
// PasswordHash is a bcrypt hash; the plaintext is never stored or returned.
type Admin struct {
	Email        string // unique across the whole registry, used as login identifier
	PasswordHash string
}

// Patch describes a partial update to an organization row. Nil fields are
// left unchanged. Name changes imply a PartitionName change computed by the
// lifecycle service, never by callers.
type Patch struct {
	Name          *string
	PartitionName *string
	Email         *string
	PasswordHash  *string
}

// IsZero reports whether the patch would change nothing.
func (p Patch) IsZero() bool {
	return p.Name == nil && p.PartitionName == nil && p.Email == nil && p.PasswordHash == nil
}
