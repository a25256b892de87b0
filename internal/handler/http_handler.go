package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
	"github.com/kurantoB/TwitterClone-sub000/internal/service"
	pkglog "github.com/kurantoB/TwitterClone-sub000/pkg/log"
	"github.com/kurantoB/TwitterClone-sub000/pkg/middleware"
	"github.com/kurantoB/TwitterClone-sub000/pkg/response"
)

// Handler handles HTTP requests for the social graph service.
type Handler struct {
	coordinator    service.FollowCoordinator
	queries        service.RelationshipQueryEngine
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(coordinator service.FollowCoordinator, queries service.RelationshipQueryEngine, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		coordinator:    coordinator,
		queries:        queries,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			users.POST("/:user_id/follow", h.authMiddleware.RequireAuth(), h.Follow)
			users.DELETE("/:user_id/follow", h.authMiddleware.RequireAuth(), h.Unfollow)
			users.POST("/:user_id/block", h.authMiddleware.RequireAuth(), h.Block)
			users.DELETE("/:user_id/block", h.authMiddleware.RequireAuth(), h.Unblock)
			users.GET("/:user_id/status", h.authMiddleware.RequireAuth(), h.GetStatus)
			users.GET("/:user_id/relationships/:relationship", h.authMiddleware.RequireAuth(), h.ListRelationship)
			// Counters are public.
			users.GET("/:user_id/counters", h.GetCounters)
		}

		me := api.Group("/me", h.authMiddleware.RequireAuth())
		{
			me.GET("/blocks", h.ListBlocked)
			me.GET("/relationships/:relationship", h.ListMyRelationship)
		}

		api.GET("/relationships", h.ListRelationshipNames)
	}
}

type edgeMutation func(c *gin.Context, sourceID, targetID string) error

// Follow handles POST /api/v1/users/:user_id/follow.
func (h *Handler) Follow(c *gin.Context) {
	h.mutate(c, "follow", func(c *gin.Context, s, t string) error {
		return h.coordinator.Follow(c.Request.Context(), s, t)
	})
}

// Unfollow handles DELETE /api/v1/users/:user_id/follow.
func (h *Handler) Unfollow(c *gin.Context) {
	h.mutate(c, "unfollow", func(c *gin.Context, s, t string) error {
		return h.coordinator.Unfollow(c.Request.Context(), s, t)
	})
}

// Block handles POST /api/v1/users/:user_id/block.
func (h *Handler) Block(c *gin.Context) {
	h.mutate(c, "block", func(c *gin.Context, s, t string) error {
		return h.coordinator.Block(c.Request.Context(), s, t)
	})
}

// Unblock handles DELETE /api/v1/users/:user_id/block.
func (h *Handler) Unblock(c *gin.Context) {
	h.mutate(c, "unblock", func(c *gin.Context, s, t string) error {
		return h.coordinator.Unblock(c.Request.Context(), s, t)
	})
}

// mutate applies op from the authenticated user to :user_id. All four
// mutations are idempotent, so repeating one succeeds with 204.
func (h *Handler) mutate(c *gin.Context, op string, fn edgeMutation) {
	sourceID := middleware.GetUserID(c)
	if sourceID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	targetID := c.Param("user_id")
	if targetID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	if err := fn(c, sourceID, targetID); err != nil {
		h.writeError(c, err, op+" failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetCounters handles GET /api/v1/users/:user_id/counters.
func (h *Handler) GetCounters(c *gin.Context) {
	counters, err := h.queries.Counters(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.writeError(c, err, "get counters failed")
		return
	}
	response.Success(c, counters)
}

// GetStatus handles GET /api/v1/users/:user_id/status, the edges between
// the caller and :user_id.
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.queries.Status(c.Request.Context(), middleware.GetUserID(c), c.Param("user_id"))
	if err != nil {
		h.writeError(c, err, "get status failed")
		return
	}
	response.Success(c, gin.H{
		"following":   status.Following,
		"followed_by": status.FollowedBy,
		"mutual":      status.Mutual(),
		"blocking":    status.Blocking,
		"blocked_by":  status.BlockedBy,
	})
}

// ListRelationship handles GET /api/v1/users/:user_id/relationships/:relationship.
// Cross-account relationships are evaluated with the caller as viewer and
// :user_id as target. Single-account ones list :user_id's own network.
func (h *Handler) ListRelationship(c *gin.Context) {
	rel, err := domain.ParseRelationship(c.Param("relationship"))
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	page, ok := h.page(c)
	if !ok {
		return
	}

	viewerID, targetID := c.Param("user_id"), ""
	if rel.RequiresTarget() {
		viewerID, targetID = middleware.GetUserID(c), c.Param("user_id")
	}
	h.query(c, rel, viewerID, targetID, page)
}

// ListMyRelationship handles GET /api/v1/me/relationships/:relationship.
// Cross-account relationships take the other account from ?target_id=.
func (h *Handler) ListMyRelationship(c *gin.Context) {
	rel, err := domain.ParseRelationship(c.Param("relationship"))
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	page, ok := h.page(c)
	if !ok {
		return
	}
	h.query(c, rel, middleware.GetUserID(c), c.Query("target_id"), page)
}

func (h *Handler) query(c *gin.Context, rel domain.Relationship, viewerID, targetID string, page domain.Page) {
	accounts, err := h.queries.Query(c.Request.Context(), rel, viewerID, targetID, page)
	if err != nil {
		h.writeError(c, err, "list relationship failed")
		return
	}
	response.Paged(c, accounts, len(accounts), page.Offset, page.Amount)
}

// ListBlocked handles GET /api/v1/me/blocks.
func (h *Handler) ListBlocked(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}

	accounts, err := h.queries.ListBlocked(c.Request.Context(), middleware.GetUserID(c), page)
	if err != nil {
		h.writeError(c, err, "list blocked failed")
		return
	}
	response.Paged(c, accounts, len(accounts), page.Offset, page.Amount)
}

// ListRelationshipNames handles GET /api/v1/relationships.
func (h *Handler) ListRelationshipNames(c *gin.Context) {
	type entry struct {
		Name           domain.Relationship `json:"name"`
		RequiresTarget bool                `json:"requires_target"`
	}
	rels := domain.Relationships()
	out := make([]entry, 0, len(rels))
	for _, r := range rels {
		out = append(out, entry{Name: r, RequiresTarget: r.RequiresTarget()})
	}
	response.Success(c, gin.H{"relationships": out})
}

// page reads offset and amount from the query string. It writes the error
// response itself when they are malformed.
func (h *Handler) page(c *gin.Context) (domain.Page, bool) {
	offset, err := queryInt(c, "offset")
	if err != nil {
		response.BadRequest(c, "offset must be an integer")
		return domain.Page{}, false
	}
	amount, err := queryInt(c, "amount")
	if err != nil {
		response.BadRequest(c, "amount must be an integer")
		return domain.Page{}, false
	}

	page, err := h.queries.NormalizePage(offset, amount)
	if err != nil {
		response.BadRequest(c, "offset must be >= 0 and amount >= 1")
		return domain.Page{}, false
	}
	return page, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, service.ErrSelfReference):
		response.BadRequest(c, "cannot target yourself")
	case errors.Is(err, service.ErrBlocked):
		response.Forbidden(c, "blocked")
	case errors.Is(err, service.ErrInvalidPagination):
		response.BadRequest(c, "offset must be >= 0 and amount >= 1")
	case errors.Is(err, service.ErrTargetRequired):
		response.BadRequest(c, "relationship requires a target user")
	case errors.Is(err, service.ErrUnknownRelationship):
		response.NotFound(c, "unknown relationship")
	case errors.Is(err, service.ErrTryAgain):
		response.TryAgain(c, "try again")
	default:
		l := pkglog.Ctx(c.Request.Context())
		l.Error().Err(err).
			Str(pkglog.FieldUserID, middleware.GetUserID(c)).
			Str(pkglog.FieldTargetID, c.Param("user_id")).
			Msg(msg)
		response.InternalError(c, msg)
	}
}
