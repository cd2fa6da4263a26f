package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/gateway"
	"github.com/GriffinCanCode/EdgeCode/internal/logging"
	"github.com/GriffinCanCode/EdgeCode/internal/shared/id"
	"github.com/GriffinCanCode/EdgeCode/internal/store"
	"github.com/GriffinCanCode/EdgeCode/internal/validator"
)

// Handlers contains all admin HTTP handlers
type Handlers struct {
	store store.Store
	gw    *gateway.Gateway
	log   *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(st store.Store, gw *gateway.Gateway, log *logging.Logger) *Handlers {
	return &Handlers{store: st, gw: gw, log: log}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "edgecode",
	})
}

// Health handles the health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// fragmentRequest is the write payload for create and update.
type fragmentRequest struct {
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	Kind       string `json:"kind"`
	Source     string `json:"source"`
	Active     *bool  `json:"active"`
	Mode       string `json:"injection_mode"`
	Conditions string `json:"conditions"`
	// SkipValidation saves the fragment even when the syntax check fails.
	// Every use is logged.
	SkipValidation bool `json:"skip_validation"`
}

// apply copies the request onto a fragment, parsing enum fields.
func (r *fragmentRequest) apply(f *fragment.Fragment) error {
	kind, err := fragment.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	mode := fragment.ModeAutoInject
	if r.Mode != "" {
		if mode, err = fragment.ParseInjectionMode(r.Mode); err != nil {
			return err
		}
	}
	f.Title = r.Title
	if r.Slug != "" {
		f.Slug = r.Slug
	}
	f.Kind = kind
	f.Source = r.Source
	f.Mode = mode
	f.Conditions = r.Conditions
	if r.Active != nil {
		f.Active = *r.Active
	}
	return nil
}

// checkSyntax runs the validator unless the operator asked to skip it.
func (h *Handlers) checkSyntax(c *gin.Context, req *fragmentRequest, f *fragment.Fragment) bool {
	if req.SkipValidation {
		h.log.Warn("syntax validation skipped by operator",
			zap.String("fragment_id", f.ID.String()),
			zap.String("title", f.Title),
		)
		return true
	}
	res := validator.Validate(f.Source, f.Kind)
	if !res.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": res.Err,
			"line":  res.Line,
		})
		return false
	}
	return true
}

// CreateFragment handles POST /fragments
func (h *Handlers) CreateFragment(c *gin.Context) {
	var req fragmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := &fragment.Fragment{Active: true}
	if err := req.apply(f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := f.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.checkSyntax(c, &req, f) {
		return
	}

	if err := h.store.Create(c.Request.Context(), f); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// GetFragment handles GET /fragments/:id
func (h *Handlers) GetFragment(c *gin.Context) {
	f, err := h.store.Get(c.Request.Context(), fragmentID(c))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// UpdateFragment handles PUT /fragments/:id
func (h *Handlers) UpdateFragment(c *gin.Context) {
	var req fragmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	f, err := h.store.Get(ctx, fragmentID(c))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	if err := req.apply(f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := f.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.checkSyntax(c, &req, f) {
		return
	}

	if err := h.store.Update(ctx, f); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// ListFragments handles GET /fragments
func (h *Handlers) ListFragments(c *gin.Context) {
	var filter store.Filter
	if v := c.Query("kind"); v != "" {
		kind, err := fragment.ParseKind(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Kind = &kind
	}
	if v := c.Query("active"); v != "" {
		active := v == "true" || v == "1"
		filter.Active = &active
	}
	if c.Query("trash") == "true" {
		filter.DeletedOnly = true
	}

	frags, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fragments": frags,
		"count":     len(frags),
	})
}

// DeleteFragment handles DELETE /fragments/:id. The default is a soft
// delete into the trash; ?force=true removes the fragment and its history
// for good.
func (h *Handlers) DeleteFragment(c *gin.Context) {
	ctx := c.Request.Context()
	fragID := fragmentID(c)

	var err error
	if c.Query("force") == "true" {
		err = h.store.HardDelete(ctx, fragID)
	} else {
		err = h.store.SoftDelete(ctx, fragID)
	}
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RestoreFragment handles POST /fragments/:id/restore
func (h *Handlers) RestoreFragment(c *gin.Context) {
	ctx := c.Request.Context()
	fragID := fragmentID(c)

	if err := h.store.Restore(ctx, fragID); err != nil {
		h.writeStoreError(c, err)
		return
	}
	f, err := h.store.Get(ctx, fragID)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// ListRevisions handles GET /fragments/:id/revisions
func (h *Handlers) ListRevisions(c *gin.Context) {
	ctx := c.Request.Context()
	fragID := fragmentID(c)

	// Surface a 404 for unknown fragments rather than an empty history.
	if _, err := h.store.Get(ctx, fragID); err != nil {
		h.writeStoreError(c, err)
		return
	}
	revs, err := h.store.Revisions(ctx, fragID)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"revisions": revs,
		"count":     len(revs),
	})
}

// validateRequest is the payload for the standalone syntax check.
type validateRequest struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
}

// ValidateFragment handles POST /fragments/validate. It never executes the
// submitted source.
func (h *Handlers) ValidateFragment(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := fragment.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := validator.Validate(req.Source, kind)
	c.JSON(http.StatusOK, gin.H{
		"valid": res.Valid,
		"error": res.Err,
		"line":  res.Line,
	})
}

// TestFragment handles POST /fragments/:id/test. The run uses the normal
// executor but never trips the circuit breaker.
func (h *Handlers) TestFragment(c *gin.Context) {
	ctx := c.Request.Context()
	f, err := h.store.Get(ctx, fragmentID(c))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}

	res := h.gw.TestRun(ctx, f)
	c.JSON(http.StatusOK, res)
}

// GetDiagnostic handles GET /fragments/:id/diagnostic. Reading a diagnostic
// consumes it; the next read returns 404.
func (h *Handlers) GetDiagnostic(c *gin.Context) {
	diag, err := h.store.TakeDiagnostic(c.Request.Context(), fragmentID(c))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, diag)
}

// fragmentID extracts the fragment id path parameter.
func fragmentID(c *gin.Context) id.FragmentID {
	return id.FragmentID(c.Param("id"))
}

// writeStoreError maps persistence errors to HTTP responses.
func (h *Handlers) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fragment.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "fragment not found"})
	case errors.Is(err, store.ErrNoDiagnostic):
		c.JSON(http.StatusNotFound, gin.H{"error": "no diagnostic recorded"})
	case errors.Is(err, store.ErrSlugTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
	case errors.Is(err, fragment.ErrOnDemandKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("store operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
