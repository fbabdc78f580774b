package api

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// maxImageUpload bounds a single uploaded photo.
const maxImageUpload = 25 << 20

func badRequest(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}

// parseID reads a positive numeric path parameter.
func parseID(ctx echo.Context, name string) (uint, error) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// queryInt reads an integer query parameter, returning def when it is absent.
func queryInt(ctx echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(ctx.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

// queryFloat reads a float query parameter, returning def when it is absent.
func queryFloat(ctx echo.Context, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(ctx.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

// queryBool reads a boolean query parameter, returning def when it is absent.
func queryBool(ctx echo.Context, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(ctx.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

// optionalUint parses an optional id, treating "" and "0" as absent.
func optionalUint(raw, name string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, raw)
	}
	id := uint(v)
	return &id, nil
}

// optionalFloat parses an optional float form value.
func optionalFloat(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, raw)
	}
	return &v, nil
}

// formBool interprets checkbox style form values.
func formBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// readUpload reads a multipart file field into memory.
func readUpload(ctx echo.Context, field string) ([]byte, *multipart.FileHeader, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, nil, badRequest("missing file field %q", field)
	}
	if fh.Size > maxImageUpload {
		return nil, nil, badRequest("file %q exceeds %d bytes", fh.Filename, maxImageUpload)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, badRequest("cannot read file %q", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageUpload+1))
	if err != nil {
		return nil, nil, badRequest("cannot read file %q", fh.Filename)
	}
	if len(data) > maxImageUpload {
		return nil, nil, badRequest("file %q exceeds %d bytes", fh.Filename, maxImageUpload)
	}
	return data, fh, nil
}
