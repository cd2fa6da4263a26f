package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/store"
	"github.com/GriffinCanCode/EdgeCode/internal/validator"
)

// ExportVersion tags export envelopes so future formats can be detected.
const ExportVersion = "1.0"

// exportSnippet is the portable fragment representation. Ids are local to
// an installation and deliberately not exported.
type exportSnippet struct {
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Kind       string    `json:"type"`
	Source     string    `json:"code"`
	Active     bool      `json:"active"`
	Mode       string    `json:"injection_mode,omitempty"`
	Conditions string    `json:"conditions,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// exportEnvelope is the import/export wire format.
type exportEnvelope struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at,omitempty"`
	Snippets   []exportSnippet `json:"snippets"`
	// Snippet carries a single-fragment export; import accepts either.
	Snippet *exportSnippet `json:"snippet,omitempty"`
}

// importReport summarizes an import run.
type importReport struct {
	Total    int      `json:"total"`
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Export handles GET /export. ?active=true limits the payload to active
// fragments; the trash is never exported.
func (h *Handlers) Export(c *gin.Context) {
	var filter store.Filter
	if c.Query("active") == "true" {
		active := true
		filter.Active = &active
	}

	frags, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}

	env := exportEnvelope{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Snippets:   make([]exportSnippet, 0, len(frags)),
	}
	for _, f := range frags {
		env.Snippets = append(env.Snippets, exportSnippet{
			Title:      f.Title,
			Slug:       f.Slug,
			Kind:       f.Kind.String(),
			Source:     f.Source,
			Active:     f.Active,
			Mode:       f.Mode.String(),
			Conditions: f.Conditions,
			CreatedAt:  f.CreatedAt,
			UpdatedAt:  f.UpdatedAt,
		})
	}

	body, err := sonic.Marshal(env)
	if err != nil {
		h.log.Error("export encode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="fragments-export.json"`)
	c.Data(http.StatusOK, "application/json", body)
}

// Import handles POST /import. Imported fragments arrive deactivated unless
// ?keep_active=true; ?skip_duplicates=true leaves colliding slugs alone,
// ?update_existing=true overwrites them.
func (h *Handlers) Import(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var env exportEnvelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import payload"})
		return
	}
	if env.Snippet != nil {
		env.Snippets = append(env.Snippets, *env.Snippet)
	}
	if len(env.Snippets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no snippets in import payload"})
		return
	}

	keepActive := c.Query("keep_active") == "true"
	skipDuplicates := c.Query("skip_duplicates") == "true"
	updateExisting := c.Query("update_existing") == "true"

	ctx := c.Request.Context()
	report := importReport{
		Total:    len(env.Snippets),
		Imported: []string{},
		Skipped:  []string{},
		Errors:   []string{},
	}

	for i, snip := range env.Snippets {
		if snip.Title == "" || snip.Source == "" || snip.Kind == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("snippet #%d is missing required fields", i+1))
			continue
		}
		kind, err := fragment.ParseKind(snip.Kind)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("snippet %q: %v", snip.Title, err))
			continue
		}
		mode := fragment.ModeAutoInject
		if snip.Mode != "" {
			if mode, err = fragment.ParseInjectionMode(snip.Mode); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("snippet %q: %v", snip.Title, err))
				continue
			}
		}
		if res := validator.Validate(snip.Source, kind); !res.Valid {
			report.Errors = append(report.Errors, fmt.Sprintf("snippet %q: %s", snip.Title, res.Err))
			continue
		}

		slug := snip.Slug
		if slug == "" {
			slug = fragment.Slugify(snip.Title)
		}

		existing, err := h.store.GetBySlug(ctx, slug)
		switch {
		case err == nil && skipDuplicates:
			report.Skipped = append(report.Skipped, fmt.Sprintf("snippet %q already exists", snip.Title))
			continue
		case err == nil && updateExisting:
			existing.Title = snip.Title
			existing.Kind = kind
			existing.Source = snip.Source
			existing.Mode = mode
			existing.Conditions = snip.Conditions
			existing.Active = keepActive && snip.Active
			if err := h.store.Update(ctx, existing); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("snippet %q: %v", snip.Title, err))
				continue
			}
			report.Imported = append(report.Imported, fmt.Sprintf("snippet %q updated", snip.Title))
			continue
		case err == nil:
			report.Errors = append(report.Errors, fmt.Sprintf("snippet %q: slug already in use", snip.Title))
			continue
		case !errors.Is(err, fragment.ErrNotFound):
			report.Errors = append(report.Errors, fmt.Sprintf("snippet %q: %v", snip.Title, err))
			continue
		}

		f := &fragment.Fragment{
			Title:      snip.Title,
			Slug:       slug,
			Kind:       kind,
			Source:     snip.Source,
			Mode:       mode,
			Conditions: snip.Conditions,
			Active:     keepActive && snip.Active,
		}
		if err := h.store.Create(ctx, f); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("snippet %q: %v", snip.Title, err))
			continue
		}
		report.Imported = append(report.Imported, fmt.Sprintf("snippet %q imported", snip.Title))
	}

	h.log.Info("import finished",
		zap.Int("total", report.Total),
		zap.Int("imported", len(report.Imported)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("errors", len(report.Errors)),
	)
	c.JSON(http.StatusOK, report)
}
