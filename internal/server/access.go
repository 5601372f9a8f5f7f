package server

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/learning-panda-ai/website/internal/policy/engine"
	"github.com/learning-panda-ai/website/internal/session"
)

// AccessDecider is implemented by *engine.AccessEvaluator.
type AccessDecider interface {
	Evaluate(ctx context.Context, in engine.AccessInput) engine.Decision
}

func accessInput(c *gin.Context, p string) engine.AccessInput {
	in := engine.AccessInput{Path: p}
	if claims, ok := session.Claims(c); ok {
		in.Authenticated = true
		in.Onboarded = claims.Onboarded
	}
	return in
}

// AccessHandler serves GET /api/access?path= for frontends that route on the client.
func AccessHandler(access AccessDecider) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Query("path")
		if p == "" {
			p = "/"
		}
		c.JSON(http.StatusOK, access.Evaluate(c.Request.Context(), accessInput(c, p)))
	}
}

// PageHandler serves the built frontend in dir, redirecting when the access policy denies a page.
// It is mounted as the NoRoute handler so API routes take precedence.
func PageHandler(access AccessDecider, dir string) gin.HandlerFunc {
	root := http.Dir(dir)
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		reqPath := c.Request.URL.Path
		if strings.HasPrefix(reqPath, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if d := access.Evaluate(c.Request.Context(), accessInput(c, reqPath)); !d.Allow {
			c.Redirect(http.StatusFound, d.Redirect)
			c.Abort()
			return
		}
		name, status := resolvePage(root, reqPath)
		if name == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		f, err := root.Open(name)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}
		if status != http.StatusOK {
			body, err := io.ReadAll(f)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
			c.Data(status, "text/html; charset=utf-8", body)
			return
		}
		http.ServeContent(c.Writer, c.Request, st.Name(), st.ModTime(), f)
	}
}

// resolvePage maps a URL path to a file in the exported site: the file itself,
// then "<path>.html", then "<path>/index.html". Unknown paths get 404.html when it exists.
func resolvePage(root http.FileSystem, urlPath string) (string, int) {
	clean := path.Clean("/" + urlPath)
	candidates := []string{clean, clean + ".html", path.Join(clean, "index.html")}
	for _, name := range candidates {
		if isFile(root, name) {
			return name, http.StatusOK
		}
	}
	if isFile(root, "/404.html") {
		return "/404.html", http.StatusNotFound
	}
	return "", http.StatusNotFound
}

func isFile(root http.FileSystem, name string) bool {
	f, err := root.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return !st.IsDir()
}
