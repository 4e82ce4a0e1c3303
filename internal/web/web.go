// Package web serves the embedded diary front end.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed static/*
var staticFS embed.FS

// Register mounts the diary page at / and its assets under /static/.
func Register(router *gin.Engine) error {
	index, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		return fmt.Errorf("read index page: %w", err)
	}

	assets, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static sub-fs: %w", err)
	}

	router.StaticFS("/static", http.FS(assets))
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
	return nil
}
