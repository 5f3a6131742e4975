package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/ports/secondary"
)

const requestTimeout = 10 * time.Second

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the dispatch REST surface.
type Handler struct {
	service  primary.DispatchService
	identity secondary.IdentityProvider
	store    Pinger
}

// NewHandler creates a new handler instance
func NewHandler(service primary.DispatchService, identity secondary.IdentityProvider, store Pinger) *Handler {
	return &Handler{service: service, identity: identity, store: store}
}

// Ready checks that the store is reachable.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "Store unavailable",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"service":   "galley",
		"timestamp": time.Now().UTC(),
	})
}

// ListDispatches handles GET /api/dispatches
func (h *Handler) ListDispatches(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	manifests, err := h.service.ListManifests(ctx, primary.ManifestFilters{
		DeliveryDate: c.Query("delivery_date"),
		BranchSlug:   c.Query("branch"),
		Status:       c.Query("status"),
		Limit:        limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if manifests == nil {
		manifests = []*primary.Manifest{}
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Dispatches retrieved successfully", Data: manifests})
}

// CreateDispatch handles POST /api/dispatches
func (h *Handler) CreateDispatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var req primary.CreateManifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	req.CreatedBy = actor.Label()

	manifest, err := h.service.CreateManifest(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "Dispatch created successfully", Data: manifest})
}

// GetDispatch handles GET /api/dispatches/:id
func (h *Handler) GetDispatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	manifest, err := h.service.GetManifest(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Dispatch retrieved successfully", Data: manifest})
}

// DeleteDispatch handles DELETE /api/dispatches/:id
func (h *Handler) DeleteDispatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	archived, err := h.service.DeleteManifest(ctx, primary.DeleteManifestRequest{
		ManifestID: c.Param("id"),
		DeletedBy:  actor.Label(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Dispatch archived successfully", Data: archived})
}

// UpdateBranch handles PATCH /api/dispatches/:id/branches/:slug
func (h *Handler) UpdateBranch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	slug := c.Param("slug")
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if result := access.CanUpdateBranch(actor, slug); !result.Allowed {
		respondForbidden(c, result.Reason)
		return
	}

	var req primary.UpdateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.ManifestID = c.Param("id")
	req.BranchSlug = slug

	manifest, err := h.service.UpdateBranchDispatch(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Branch dispatch updated successfully", Data: manifest})
}

// ResolveIssue handles POST /api/dispatches/:id/branches/:slug/resolve
func (h *Handler) ResolveIssue(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var req primary.ResolveIssueRequest
	// An empty body is a resolution without a note.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}
	req.ManifestID = c.Param("id")
	req.BranchSlug = c.Param("slug")

	manifest, err := h.service.ResolveIssue(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Issue resolved successfully", Data: manifest})
}

// AddLateItem handles POST /api/dispatches/:id/late-items
func (h *Handler) AddLateItem(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var req primary.AddLateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	req.ManifestID = c.Param("id")
	req.AddedBy = actor.Label()

	resp, err := h.service.AddLateItem(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Late item added", Data: resp})
}

// ListArchive handles GET /api/archive
func (h *Handler) ListArchive(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	manifests, err := h.service.ListArchived(ctx, primary.ArchiveFilters{
		DeliveryDate: c.Query("delivery_date"),
		Limit:        limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if manifests == nil {
		manifests = []*primary.Manifest{}
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Archived dispatches retrieved successfully", Data: manifests})
}

// GetArchived handles GET /api/archive/:id
func (h *Handler) GetArchived(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	manifest, err := h.service.GetArchived(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Archived dispatch retrieved successfully", Data: manifest})
}

// InferUnit handles GET /api/units/infer?name=
func (h *Handler) InferUnit(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing parameter", Message: "name is required"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Unit inferred",
		Data:    gin.H{"name": name, "unit": h.service.InferUnit(name)},
	})
}

func (h *Handler) actor(c *gin.Context) (access.Actor, bool) {
	actor, err := h.identity.CurrentActor(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid user", Message: err.Error()})
		return access.Actor{}, false
	}
	return actor, true
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid parameter", Message: "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}
