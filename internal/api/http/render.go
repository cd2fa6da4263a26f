package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/EdgeCode/internal/conditions"
	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/gateway"
)

// defaultPage is the content rendered when no page body is posted.
const defaultPage = `<main><h1>Sample page</h1></main>`

// Render serves a sample host page: every ambient stage runs in host order
// and on-demand markers in the content are resolved, so one request drives
// the whole pipeline. GET renders the default page; POST renders the
// request body as the page content.
func (h *Handlers) Render(c *gin.Context) {
	content := defaultPage
	if c.Request.Method == http.MethodPost {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable page content"})
			return
		}
		if len(raw) > 0 {
			content = string(raw)
		}
	}

	ctx := c.Request.Context()
	pctx := renderPassContext(c)

	outputs := make(map[fragment.Stage]string, len(fragment.Stages()))
	for _, stage := range fragment.Stages() {
		out, err := h.gw.Pass(ctx, pctx, stage)
		if err != nil {
			h.log.Error("ambient pass failed",
				zap.String("stage", string(stage)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
			return
		}
		outputs[stage] = out
	}

	var page strings.Builder
	page.WriteString("<html>\n<head>\n")
	page.WriteString(outputs[fragment.StageHeadRender])
	page.WriteString(outputs[fragment.StageStyleEnqueue])
	page.WriteString("</head>\n<body>\n")
	page.WriteString(outputs[fragment.StageEarlyRequest])
	page.WriteString(outputs[fragment.StageBodyRender])
	page.WriteString(content)
	page.WriteString("\n")
	page.WriteString(outputs[fragment.StageFooterRender])
	page.WriteString(outputs[fragment.StageScriptEnqueue])
	page.WriteString("</body>\n</html>\n")

	rendered, err := h.gw.ReplaceMarkers(ctx, pctx, page.String())
	if err != nil {
		h.log.Error("marker replacement failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, "<!DOCTYPE html>\n"+rendered)
}

// renderPassContext derives the evaluation context from the demo request.
// Roles come from the roles query parameter; any role makes the session
// authenticated, and the administrator role sees inline error output.
func renderPassContext(c *gin.Context) *gateway.PassContext {
	var roles []string
	for _, r := range strings.Split(c.Query("roles"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	device := conditions.DeviceDesktop
	if strings.Contains(c.Request.UserAgent(), "Mobi") {
		device = conditions.DeviceMobile
	}

	pctx := gateway.NewPassContext(&conditions.StaticContext{
		PageTypes:   c.QueryArray("page_type"),
		Content:     c.Query("content_type"),
		UserRoles:   roles,
		LoggedIn:    len(roles) > 0,
		DeviceClass: device,
		RequestURL:  "http://" + c.Request.Host + c.Request.URL.RequestURI(),
	})
	for _, r := range roles {
		if r == "administrator" {
			pctx.Privileged = true
		}
	}
	return pctx
}
