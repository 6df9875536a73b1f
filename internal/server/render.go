package server

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

//go:embed templates/*.html
var templateFS embed.FS

var viewTitles = map[string]string{
	"dashboard": "Tableau de bord",
	"settings":  "Réglages",
}

// HTMLRenderer renders the server side pages
type HTMLRenderer struct {
	templates *template.Template
	loc       *time.Location
	now       func() time.Time
}

// NewHTMLRenderer parses the page templates from dir, or the embedded copies when dir is empty
func NewHTMLRenderer(dir string, loc *time.Location) (*HTMLRenderer, error) {
	var (
		tmpl *template.Template
		err  error
	)
	if dir == "" {
		tmpl, err = template.ParseFS(templateFS, "templates/*.html")
	} else {
		tmpl, err = template.ParseGlob(filepath.Join(dir, "*.html"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &HTMLRenderer{templates: tmpl, loc: loc, now: time.Now}, nil
}

// Has reports whether a template exists for view
func (r *HTMLRenderer) Has(view string) bool {
	return r.templates.Lookup(view+".html") != nil
}

// Render implements dispatch.Renderer
func (r *HTMLRenderer) Render(c *gin.Context, view string) {
	title, ok := viewTitles[view]
	if !ok {
		title = view
	}
	c.Render(http.StatusOK, render.HTML{
		Template: r.templates,
		Name:     view + ".html",
		Data: gin.H{
			"Title":    title,
			"Page":     c.GetString("page"),
			"Today":    r.now().In(r.loc).Format(time.DateOnly),
			"Timezone": r.loc.String(),
		},
	})
}
