package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/review"
)

// TrainingStatisticsResponse is the body of /training/statistics.
type TrainingStatisticsResponse struct {
	Success    bool                           `json:"success"`
	Statistics *repository.TrainingStatistics `json:"statistics"`
}

// CandidatesResponse is the body of /training/candidates.
type CandidatesResponse struct {
	Success    bool                `json:"success"`
	Candidates []entities.Analysis `json:"candidates"`
	Count      int                 `json:"count"`
}

// TrainingExportRequest selects analyses for a training export.
type TrainingExportRequest struct {
	AnalysisIDs []uint `json:"analysis_ids"`
	ExportName  string `json:"export_name"`
}

// TrainingExportResponse is the body of /training/export.
type TrainingExportResponse struct {
	Success bool                 `json:"success"`
	Export  *review.ExportResult `json:"export"`
	Message string               `json:"message"`
}

func (c *Controller) initTrainingRoutes() {
	c.Group.GET("/training/statistics", c.GetTrainingStatistics)
	c.Group.GET("/training/candidates", c.GetTrainingCandidates)
	c.Group.POST("/training/export", c.ExportTrainingData)
}

// GetTrainingStatistics reports progress toward the retraining target.
func (c *Controller) GetTrainingStatistics(ctx echo.Context) error {
	stats, err := c.review.TrainingStatistics(ctx.Request().Context())
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to load training statistics")
	}
	return ctx.JSON(http.StatusOK, TrainingStatisticsResponse{Success: true, Statistics: stats})
}

// GetTrainingCandidates lists reviewed analyses waiting for export.
func (c *Controller) GetTrainingCandidates(ctx echo.Context) error {
	threshold, err := queryFloat(ctx, "confidence_threshold", review.DefaultThresholdPercent)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid confidence threshold")
	}

	candidates, err := c.review.TrainingCandidates(ctx.Request().Context(), threshold)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to load training candidates")
	}
	if candidates == nil {
		candidates = []entities.Analysis{}
	}
	return ctx.JSON(http.StatusOK, CandidatesResponse{
		Success:    true,
		Candidates: candidates,
		Count:      len(candidates),
	})
}

// ExportTrainingData copies the selected analyses into an export folder.
func (c *Controller) ExportTrainingData(ctx echo.Context) error {
	var req TrainingExportRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid export request", http.StatusBadRequest)
	}
	if len(req.AnalysisIDs) == 0 {
		return c.HandleError(ctx, nil, "Geen analyses geselecteerd", http.StatusBadRequest)
	}

	result, err := c.review.ExportForTraining(ctx.Request().Context(), req.AnalysisIDs, req.ExportName)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to export training data")
	}
	return ctx.JSON(http.StatusOK, TrainingExportResponse{
		Success: true,
		Export:  result,
		Message: "Training data geëxporteerd",
	})
}
