package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
)

// ClassesResponse is the body of /classes.
type ClassesResponse struct {
	Scheme  inference.SchemeKind   `json:"scheme"`
	Schemes []inference.SchemeKind `json:"schemes"`
	Classes []inference.ClassInfo  `json:"classes"`
}

// ModelInfoResponse is the body of /debug/model-info.
type ModelInfoResponse struct {
	ModelLoaded     bool                    `json:"model_loaded"`
	ModelPath       string                  `json:"model_path"`
	ModelType       entities.ModelType      `json:"model_type"`
	ModelVersion    string                  `json:"model_version"`
	ModelExists     bool                    `json:"model_exists"`
	Scheme          inference.SchemeKind    `json:"scheme"`
	ExpectedClasses int                     `json:"expected_classes"`
	ClassMapping    map[string]string       `json:"class_mapping"`
	Loaded          []inference.LoadedModel `json:"loaded"`
}

func (c *Controller) initDebugRoutes() {
	c.Group.GET("/classes", c.GetClasses)
	c.Group.GET("/debug/model-info", c.GetModelInfo)
}

// GetClasses returns the class table of a scheme.
func (c *Controller) GetClasses(ctx echo.Context) error {
	name := ctx.QueryParam("scheme")
	if name == "" {
		name = string(c.defaultModel.Scheme)
	}
	scheme, err := inference.SchemeFor(name)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Unknown scheme")
	}
	return ctx.JSON(http.StatusOK, ClassesResponse{
		Scheme:  scheme.Kind(),
		Schemes: inference.SchemeKinds(),
		Classes: scheme.Classes(),
	})
}

// GetModelInfo describes the default model and the loaded handles.
func (c *Controller) GetModelInfo(ctx echo.Context) error {
	ref := c.defaultModel
	resp := ModelInfoResponse{
		ModelPath:    ref.Path,
		ModelType:    ref.Type,
		ModelVersion: ref.Version,
		ClassMapping: map[string]string{},
		Loaded:       []inference.LoadedModel{},
	}

	if ref.Path != "" {
		if _, err := os.Stat(ref.Path); err == nil {
			resp.ModelExists = true
		}
	}

	scheme, err := inference.SchemeFor(string(ref.Scheme))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Default model has an unknown scheme")
	}
	resp.Scheme = scheme.Kind()
	resp.ExpectedClasses = scheme.Arity()
	for _, class := range scheme.Classes() {
		resp.ClassMapping[strconv.Itoa(class.ID)] = class.Label
	}

	if c.models != nil {
		resp.Loaded = append(resp.Loaded, c.models.Loaded()...)
		for _, m := range resp.Loaded {
			if m.Path == ref.Path {
				resp.ModelLoaded = true
				break
			}
		}
	}

	return ctx.JSON(http.StatusOK, resp)
}
