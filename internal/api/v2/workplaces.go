package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/review"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/workplace"
)

// WorkplaceResponse wraps a single workplace.
type WorkplaceResponse struct {
	Success   bool                `json:"success"`
	Workplace *entities.Workplace `json:"workplace"`
	Message   string              `json:"message,omitempty"`
}

// WorkplacesResponse lists workplaces.
type WorkplacesResponse struct {
	Success    bool                 `json:"success"`
	Workplaces []entities.Workplace `json:"workplaces"`
	Count      int                  `json:"count"`
}

// WorkplaceUpdateRequest carries the fields of a partial update. A null
// whiteboard_region clears the region; an absent one leaves it unchanged.
type WorkplaceUpdateRequest struct {
	Name                *string         `json:"name"`
	Description         *string         `json:"description"`
	Items               []string        `json:"items"`
	Active              *bool           `json:"active"`
	ConfidenceThreshold *float64        `json:"confidence_threshold"`
	WhiteboardRegion    json.RawMessage `json:"whiteboard_region"`
}

// ReferencePhotoResponse is the body of a reference photo upload.
type ReferencePhotoResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// TrainingImageUpdateRequest relabels or validates a training image.
type TrainingImageUpdateRequest struct {
	Label     *string `json:"label"`
	ClassID   *int    `json:"class_id"`
	Validated *bool   `json:"validated"`
}

// TrainingImagesResponse lists training images.
type TrainingImagesResponse struct {
	Success bool                     `json:"success"`
	Images  []entities.TrainingImage `json:"images"`
	Count   int                      `json:"count"`
}

// TrainingImageResponse wraps a single training image.
type TrainingImageResponse struct {
	Success bool                    `json:"success"`
	Image   *entities.TrainingImage `json:"image"`
}

// ModelsResponse lists models.
type ModelsResponse struct {
	Success bool             `json:"success"`
	Models  []entities.Model `json:"models"`
	Count   int              `json:"count"`
}

// ModelResponse wraps a single model.
type ModelResponse struct {
	Success bool            `json:"success"`
	Model   *entities.Model `json:"model"`
	Message string          `json:"message,omitempty"`
}

// DatasetExportRequest tunes a dataset export.
type DatasetExportRequest struct {
	TrainSplit float64 `json:"train_split"`
	ExportedBy string  `json:"exported_by"`
	Notes      string  `json:"notes"`
	Seed       uint64  `json:"seed"`
}

// DatasetExportResponse is the body of /export-dataset.
type DatasetExportResponse struct {
	Success bool                  `json:"success"`
	Result  *review.DatasetResult `json:"result"`
}

// ExportsResponse lists dataset exports.
type ExportsResponse struct {
	Success bool                     `json:"success"`
	Exports []entities.DatasetExport `json:"exports"`
	Count   int                      `json:"count"`
}

// DatasetStatsResponse is the body of /dataset-stats.
type DatasetStatsResponse struct {
	Success bool                     `json:"success"`
	Stats   *repository.DatasetStats `json:"stats"`
}

func (c *Controller) initWorkplaceRoutes() {
	c.Group.GET("/workplaces", c.ListWorkplaces)
	c.Group.POST("/workplaces", c.CreateWorkplace)
	c.Group.GET("/workplaces/:id", c.GetWorkplace)
	c.Group.PUT("/workplaces/:id", c.UpdateWorkplace)
	c.Group.DELETE("/workplaces/:id", c.DeleteWorkplace)
	c.Group.POST("/workplaces/:id/reference-photo", c.UploadReferencePhoto)

	c.Group.GET("/workplaces/:id/training-images", c.ListTrainingImages)
	c.Group.POST("/workplaces/:id/training-images", c.UploadTrainingImage)
	c.Group.PUT("/training-images/:id", c.UpdateTrainingImage)
	c.Group.DELETE("/training-images/:id", c.DeleteTrainingImage)
	c.Group.GET("/workplaces/:id/dataset-stats", c.GetDatasetStats)

	c.Group.GET("/workplaces/:id/models", c.ListModels)
	c.Group.POST("/workplaces/:id/models", c.UploadModel)
	c.Group.POST("/models/:id/activate", c.ActivateModel)
	c.Group.POST("/workplaces/:id/export-dataset", c.ExportDataset)
	c.Group.GET("/workplaces/:id/exports", c.ListExports)
}

// ListWorkplaces lists workplaces, active ones only unless active_only=false.
func (c *Controller) ListWorkplaces(ctx echo.Context) error {
	activeOnly, err := queryBool(ctx, "active_only", true)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid active_only")
	}
	list, err := c.workplaces.List(ctx.Request().Context(), activeOnly)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list workplaces")
	}
	if list == nil {
		list = []entities.Workplace{}
	}
	return ctx.JSON(http.StatusOK, WorkplacesResponse{Success: true, Workplaces: list, Count: len(list)})
}

// CreateWorkplace creates a workplace. A duplicate name is a bad request.
func (c *Controller) CreateWorkplace(ctx echo.Context) error {
	var in workplace.CreateInput
	if err := ctx.Bind(&in); err != nil {
		return c.HandleError(ctx, err, "Invalid workplace body", http.StatusBadRequest)
	}
	w, err := c.workplaces.Create(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create workplace", createStatusFor(err))
	}
	return ctx.JSON(http.StatusCreated, WorkplaceResponse{Success: true, Workplace: w, Message: "Werkplek aangemaakt"})
}

// GetWorkplace returns a workplace with its dataset stats, models and exports.
func (c *Controller) GetWorkplace(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	detail, err := c.workplaces.Detail(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to load workplace")
	}
	return ctx.JSON(http.StatusOK, struct {
		Success bool `json:"success"`
		*workplace.Detail
	}{true, detail})
}

// UpdateWorkplace applies a partial update.
func (c *Controller) UpdateWorkplace(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	var req WorkplaceUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid workplace body", http.StatusBadRequest)
	}
	update, err := req.toUpdate()
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid whiteboard region")
	}

	w, err := c.workplaces.Update(ctx.Request().Context(), id, update)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to update workplace")
	}
	return ctx.JSON(http.StatusOK, WorkplaceResponse{Success: true, Workplace: w, Message: "Werkplek bijgewerkt"})
}

func (r WorkplaceUpdateRequest) toUpdate() (repository.WorkplaceUpdate, error) {
	u := repository.WorkplaceUpdate{
		Name:                r.Name,
		Description:         r.Description,
		Items:               r.Items,
		Active:              r.Active,
		ConfidenceThreshold: r.ConfidenceThreshold,
	}
	raw := bytes.TrimSpace(r.WhiteboardRegion)
	switch {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		u.WhiteboardRegion = &repository.RegionUpdate{Clear: true}
	default:
		var region entities.Region
		if err := json.Unmarshal(raw, &region); err != nil {
			return u, badRequest("whiteboard_region must be an object with x1, y1, x2 and y2")
		}
		u.WhiteboardRegion = &repository.RegionUpdate{X1: region.X1, Y1: region.Y1, X2: region.X2, Y2: region.Y2}
	}
	return u, nil
}

// DeleteWorkplace removes a workplace and its related records.
func (c *Controller) DeleteWorkplace(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	if err := c.workplaces.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete workplace")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{Success: true, Message: "Werkplek verwijderd", ID: id})
}

// UploadReferencePhoto stores the reference photo of a workplace.
func (c *Controller) UploadReferencePhoto(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	data, fh, err := readUpload(ctx, "file")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid upload")
	}
	path, err := c.workplaces.SetReferencePhoto(ctx.Request().Context(), id, fh.Filename, data)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to store reference photo")
	}
	return ctx.JSON(http.StatusOK, ReferencePhotoResponse{Success: true, Path: path})
}

// ListTrainingImages lists a workplace's training images.
func (c *Controller) ListTrainingImages(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	validatedOnly, err := queryBool(ctx, "validated_only", false)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid validated_only")
	}
	images, err := c.workplaces.ListTrainingImages(ctx.Request().Context(), id, validatedOnly)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list training images")
	}
	if images == nil {
		images = []entities.TrainingImage{}
	}
	return ctx.JSON(http.StatusOK, TrainingImagesResponse{Success: true, Images: images, Count: len(images)})
}

// UploadTrainingImage adds a training image to a workplace.
func (c *Controller) UploadTrainingImage(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	data, fh, err := readUpload(ctx, "file")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid upload")
	}

	up := workplace.TrainingUpload{
		Filename: fh.Filename,
		Data:     data,
		Label:    ctx.FormValue("label"),
		Source:   strings.TrimSpace(ctx.FormValue("source")),
	}
	if raw := strings.TrimSpace(ctx.FormValue("class_id")); raw != "" {
		classID, err := strconv.Atoi(raw)
		if err != nil {
			return c.HandleServiceError(ctx, badRequest("invalid class_id %q", raw), "Invalid class id")
		}
		up.ClassID = &classID
	}

	img, err := c.workplaces.AddTrainingImage(ctx.Request().Context(), id, up)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to store training image")
	}
	return ctx.JSON(http.StatusCreated, TrainingImageResponse{Success: true, Image: img})
}

// UpdateTrainingImage relabels or validates a training image.
func (c *Controller) UpdateTrainingImage(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid training image id")
	}
	var req TrainingImageUpdateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid training image body", http.StatusBadRequest)
	}
	img, err := c.workplaces.UpdateTrainingImage(ctx.Request().Context(), id, repository.TrainingImageUpdate{
		Label:     req.Label,
		ClassID:   req.ClassID,
		Validated: req.Validated,
	})
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to update training image")
	}
	return ctx.JSON(http.StatusOK, TrainingImageResponse{Success: true, Image: img})
}

// DeleteTrainingImage removes a training image and its file.
func (c *Controller) DeleteTrainingImage(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid training image id")
	}
	if err := c.workplaces.DeleteTrainingImage(ctx.Request().Context(), id); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete training image")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{Success: true, Message: "Trainingsafbeelding verwijderd", ID: id})
}

// GetDatasetStats reports model error statistics of a workplace.
func (c *Controller) GetDatasetStats(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	stats, err := c.workplaces.PerformanceStats(ctx.Request().Context(), id, strings.TrimSpace(ctx.QueryParam("model_version")))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to compute dataset statistics")
	}
	return ctx.JSON(http.StatusOK, DatasetStatsResponse{Success: true, Stats: stats})
}

// ListModels lists a workplace's models, optionally filtered by status.
func (c *Controller) ListModels(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	status := entities.ModelStatus(strings.TrimSpace(ctx.QueryParam("status")))
	models, err := c.workplaces.ListModels(ctx.Request().Context(), id, status)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list models")
	}
	if models == nil {
		models = []entities.Model{}
	}
	return ctx.JSON(http.StatusOK, ModelsResponse{Success: true, Models: models, Count: len(models)})
}

// UploadModel stores an uploaded model file for a workplace.
func (c *Controller) UploadModel(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleServiceError(ctx, badRequest("missing file field %q", "file"), "Invalid upload")
	}
	accuracy, err := optionalFloat(ctx.FormValue("test_accuracy"), "test_accuracy")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid test accuracy")
	}

	f, err := fh.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Cannot read uploaded model", http.StatusBadRequest)
	}
	defer f.Close()

	m, err := c.workplaces.UploadModel(ctx.Request().Context(), id, workplace.ModelUpload{
		Filename:     fh.Filename,
		Data:         f,
		Version:      ctx.FormValue("version"),
		Type:         entities.ModelType(strings.TrimSpace(ctx.FormValue("model_type"))),
		Scheme:       strings.TrimSpace(ctx.FormValue("scheme")),
		TestAccuracy: accuracy,
		Config:       ctx.FormValue("config"),
		Notes:        ctx.FormValue("notes"),
		UploadedBy:   ctx.FormValue("uploaded_by"),
	})
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to store model")
	}
	return ctx.JSON(http.StatusCreated, ModelResponse{Success: true, Model: m, Message: "Model geüpload"})
}

// ActivateModel makes a model the active model of its workplace.
func (c *Controller) ActivateModel(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid model id")
	}
	m, err := c.workplaces.ActivateModel(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to activate model")
	}
	return ctx.JSON(http.StatusOK, ModelResponse{Success: true, Model: m, Message: "Model geactiveerd"})
}

// ExportDataset writes a training dataset archive for a workplace.
func (c *Controller) ExportDataset(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	var req DatasetExportRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return c.HandleError(ctx, err, "Invalid export body", http.StatusBadRequest)
		}
	}
	if req.TrainSplit == 0 && c.Settings != nil {
		req.TrainSplit = c.Settings.Training.TrainSplit
	}

	result, err := c.datasets.Export(ctx.Request().Context(), id, review.DatasetOptions{
		TrainSplit: req.TrainSplit,
		ExportedBy: req.ExportedBy,
		Notes:      req.Notes,
		Seed:       req.Seed,
	})
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to export dataset")
	}
	return ctx.JSON(http.StatusOK, DatasetExportResponse{Success: true, Result: result})
}

// ListExports lists the dataset exports of a workplace.
func (c *Controller) ListExports(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	exports, err := c.workplaces.Exports(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list exports")
	}
	if exports == nil {
		exports = []entities.DatasetExport{}
	}
	return ctx.JSON(http.StatusOK, ExportsResponse{Success: true, Exports: exports, Count: len(exports)})
}
