// handlers.go implements the HTTP handlers for organization lifecycle and
// admin login. Handlers translate between JSON and the lifecycle service;
// all business rules live in internal/orgs.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/org-registry/org-registry/internal/auth"
	"github.com/org-registry/org-registry/internal/db/models"
	"github.com/org-registry/org-registry/internal/db/repositories"
	"github.com/org-registry/org-registry/internal/middleware"
	"github.com/org-registry/org-registry/internal/orgs"
	"github.com/org-registry/org-registry/internal/partition"
)

// OrgService is the slice of the lifecycle service the handlers depend on.
// Implemented by *orgs.Service.
type OrgService interface {
	Create(ctx context.Context, name, email, password string) (*models.Organization, error)
	Get(ctx context.Context, name string) (*models.Organization, error)
	Update(ctx context.Context, name string, req orgs.UpdateRequest) (*models.Organization, error)
	Delete(ctx context.Context, name, token string) error
	Login(ctx context.Context, email, password string) (*orgs.LoginResult, error)
}

// Handlers holds the HTTP handlers for the organization endpoints.
type Handlers struct {
	svc OrgService
}

// NewHandlers creates a Handlers instance over the lifecycle service.
func NewHandlers(svc OrgService) *Handlers {
	return &Handlers{svc: svc}
}

// CreateOrganizationRequest is the body of POST /org/create.
type CreateOrganizationRequest struct {
	OrganizationName string `json:"organization_name" binding:"required"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=6"`
}

// UpdateOrganizationRequest is the body of PUT /org/update. All fields other
// than organization_name are optional; empty means "leave unchanged".
type UpdateOrganizationRequest struct {
	OrganizationName string `json:"organization_name" binding:"required"`
	NewName          string `json:"new_name"`
	Email            string `json:"email" binding:"omitempty,email"`
	Password         string `json:"password" binding:"omitempty,min=6"`
}

// LoginRequest is the body of POST /admin/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// orgResponse renders organization metadata. The password hash is never
// included.
func orgResponse(org *models.Organization) gin.H {
	return gin.H{
		"organization_id":   org.ID,
		"organization_name": org.Name,
		"email":             org.Admin.Email,
		"partition_name":    org.PartitionName,
		"created_at":        org.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":        org.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateOrganizationHandler handles POST /org/create.
func (h *Handlers) CreateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		org, err := h.svc.Create(c.Request.Context(), req.OrganizationName, req.Email, req.Password)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusCreated, orgResponse(org))
	}
}

// GetOrganizationHandler handles GET /org/get?organization_name=.
func (h *Handlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("organization_name")
		if name == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "organization_name query parameter is required",
			})
			return
		}

		org, err := h.svc.Get(c.Request.Context(), name)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, orgResponse(org))
	}
}

// UpdateOrganizationHandler handles PUT /org/update.
func (h *Handlers) UpdateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		org, err := h.svc.Update(c.Request.Context(), req.OrganizationName, orgs.UpdateRequest{
			NewName:     req.NewName,
			NewEmail:    req.Email,
			NewPassword: req.Password,
		})
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, orgResponse(org))
	}
}

// DeleteOrganizationHandler handles DELETE /org/delete?organization_name=.
// The route is behind middleware.BearerAuth; the raw token is passed through
// to the lifecycle service, which enforces that it names this organization.
func (h *Handlers) DeleteOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("organization_name")
		if name == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "organization_name query parameter is required",
			})
			return
		}

		token := c.GetString(middleware.BearerTokenKey)

		if err := h.svc.Delete(c.Request.Context(), name, token); err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":           "Organization deleted successfully",
			"partition_dropped": true,
		})
	}
}

// LoginHandler handles POST /admin/login.
func (h *Handlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":      result.Token,
			"token_type":        "bearer",
			"organization_name": result.Organization.Name,
			"organization_id":   result.Organization.ID,
		})
	}
}

// writeServiceError maps lifecycle error kinds to HTTP responses. Unknown
// errors become an opaque 500: backend failure details, password material,
// and token secrets never reach the client.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, partition.ErrInvalidName):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrEmptyPassword):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrDuplicateName), errors.Is(err, repositories.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
	case errors.Is(err, orgs.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, orgs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
