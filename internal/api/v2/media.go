// internal/api/v2/media.go
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
)

// safeFilenamePattern is a whitelist of characters allowed in served file names.
var safeFilenamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

func (c *Controller) initMediaRoutes() {
	c.Group.GET("/uploads/:filename", c.ServeUpload)
	c.Group.GET("/reference-photos/:filename", c.ServeReferencePhoto)
}

// validateMediaPath resolves filename inside baseDir and rejects anything that
// could escape it.
func (c *Controller) validateMediaPath(baseDir, filename string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("media directory not configured")
	}
	if filename == "" {
		return "", fmt.Errorf("empty filename")
	}
	if !safeFilenamePattern.MatchString(filename) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid filename characters")
	}

	fullPath := filepath.Join(baseDir, filepath.Base(filename))

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media path: %w", err)
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	if !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected")
	}

	return fullPath, nil
}

// ServeUpload serves a processed inspection image.
func (c *Controller) ServeUpload(ctx echo.Context) error {
	return c.serveMedia(ctx, c.mediaDir(func() string { return c.Settings.Inspection.UploadsDir }), "Image")
}

// ServeReferencePhoto serves a workplace reference photo.
func (c *Controller) ServeReferencePhoto(ctx echo.Context) error {
	return c.serveMedia(ctx, c.mediaDir(func() string { return c.Settings.Training.ReferencePhotosDir }), "Reference photo")
}

func (c *Controller) mediaDir(dir func() string) string {
	if c.Settings == nil {
		return ""
	}
	return c.Settings.ResolvePath(dir())
}

func (c *Controller) serveMedia(ctx echo.Context, baseDir, what string) error {
	fullPath, err := c.validateMediaPath(baseDir, ctx.Param("filename"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid file request", http.StatusBadRequest)
	}

	info, err := os.Stat(fullPath)
	switch {
	case os.IsNotExist(err):
		return c.HandleError(ctx, err, what+" not found", http.StatusNotFound)
	case err != nil:
		return c.HandleError(ctx, err, "Error accessing file", http.StatusInternalServerError)
	case info.IsDir():
		return c.HandleError(ctx, nil, "Invalid file request", http.StatusBadRequest)
	}

	ctx.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return ctx.File(fullPath)
}
