package gateway

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/monitoring"
	"github.com/GriffinCanCode/EdgeCode/internal/shared/id"
)

// markerAttr is the attribute hosts put on placeholder elements to request
// an on-demand fragment at that spot.
const markerAttr = "data-fragment"

// MarkerRef names a fragment a marker points at, by id or by slug.
type MarkerRef struct {
	ID   id.FragmentID
	Slug string
}

// ParseMarkerRef interprets a raw marker value as an id when it carries the
// fragment id prefix, otherwise as a slug.
func ParseMarkerRef(value string) MarkerRef {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, id.FragmentPrefix+"_") && id.IsValid(value) {
		return MarkerRef{ID: id.FragmentID(value)}
	}
	return MarkerRef{Slug: value}
}

// RenderMarker resolves and executes one marker occurrence. Failures render
// as an inline error for privileged viewers and as an empty string for
// everyone else; only persistence failures surface as errors. Script and
// stylesheet fragments never run on demand.
func (g *Gateway) RenderMarker(ctx context.Context, pctx *PassContext, ref MarkerRef) (string, error) {
	f, err := g.resolve(ctx, ref)
	if errors.Is(err, fragment.ErrNotFound) {
		g.recordMarker(monitoring.StatusSkipped)
		return g.inlineError(pctx, "fragment not found or inactive"), nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve marker: %w", err)
	}

	if f.Kind == fragment.KindScript || f.Kind == fragment.KindStylesheet {
		g.recordMarker(monitoring.StatusRefused)
		return g.inlineError(pctx, "script and stylesheet fragments cannot run on demand; use auto-inject"), nil
	}
	if !f.Runnable() {
		g.recordMarker(monitoring.StatusSkipped)
		return g.inlineError(pctx, "fragment not found or inactive"), nil
	}
	if !g.eval.ShouldRun(f, pctx.Request) {
		g.recordMarker(monitoring.StatusSkipped)
		return "", nil
	}

	res := g.exec.Execute(ctx, f)
	g.recordExecution(f.Kind, res)
	if res.Success {
		g.recordMarker(monitoring.StatusSuccess)
		return res.Output, nil
	}

	log := g.log.WithFragment(f.ID)
	if res.Refusal {
		g.recordMarker(monitoring.StatusRefused)
		log.Warn("fragment refused", zap.String("reason", res.Err))
		return g.inlineError(pctx, res.Err), nil
	}

	g.recordMarker(monitoring.StatusFailure)
	log.Error("fragment execution failed", zap.String("error", res.Err))
	if f.Kind == fragment.KindServerLogic {
		if err := g.trip(ctx, f, res.Err); err != nil {
			return "", err
		}
	}
	return g.inlineError(pctx, res.Err), nil
}

// resolve loads the fragment a ref points at. Soft-deleted fragments are
// reported as not found.
func (g *Gateway) resolve(ctx context.Context, ref MarkerRef) (*fragment.Fragment, error) {
	var (
		f   *fragment.Fragment
		err error
	)
	switch {
	case ref.ID != "":
		f, err = g.store.Get(ctx, ref.ID)
	case ref.Slug != "":
		f, err = g.store.GetBySlug(ctx, ref.Slug)
	default:
		return nil, fragment.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if f.Deleted {
		return nil, fragment.ErrNotFound
	}
	return f, nil
}

// inlineError renders an error for privileged viewers. Anonymous visitors
// never see execution errors.
func (g *Gateway) inlineError(pctx *PassContext, msg string) string {
	if !pctx.Privileged {
		return ""
	}
	return `<div class="fragment-error">` + html.EscapeString(msg) + `</div>`
}

func (g *Gateway) recordMarker(status string) {
	if g.metrics != nil {
		g.metrics.RecordMarkerRender(status)
	}
}

// ScanMarkers extracts marker refs from host-rendered HTML in document
// order. Hosts that manage their own substitution use this to discover what
// to resolve.
func ScanMarkers(page string) ([]MarkerRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	var refs []MarkerRef
	doc.Find("[" + markerAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		value, _ := sel.Attr(markerAttr)
		if strings.TrimSpace(value) == "" {
			return
		}
		refs = append(refs, ParseMarkerRef(value))
	})
	return refs, nil
}

// ReplaceMarkers renders every marker placeholder in the page and replaces
// the placeholder element with its output. Placeholders that render empty
// are removed. The page comes back normalized as a full HTML document.
func (g *Gateway) ReplaceMarkers(ctx context.Context, pctx *PassContext, page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var renderErr error
	doc.Find("[" + markerAttr + "]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		value, _ := sel.Attr(markerAttr)
		if strings.TrimSpace(value) == "" {
			sel.Remove()
			return true
		}
		out, err := g.RenderMarker(ctx, pctx, ParseMarkerRef(value))
		if err != nil {
			renderErr = err
			return false
		}
		if out == "" {
			sel.Remove()
			return true
		}
		sel.ReplaceWithHtml(out)
		return true
	})
	if renderErr != nil {
		return "", renderErr
	}

	rendered, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize page: %w", err)
	}
	return rendered, nil
}
