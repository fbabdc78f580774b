package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/review"
)

// History pagination bounds.
const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Pagination echoes the paging parameters of a list response.
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Count  int   `json:"count"`
	Total  int64 `json:"total"`
}

// HistoryResponse is the body of /history.
type HistoryResponse struct {
	Success    bool                   `json:"success"`
	Analyses   []entities.Analysis    `json:"analyses"`
	Statistics *repository.Statistics `json:"statistics"`
	Pagination Pagination             `json:"pagination"`
}

// TimelineResponse is the body of /accuracy-timeline.
type TimelineResponse struct {
	Success  bool                        `json:"success"`
	Timeline []repository.WeeklyAccuracy `json:"timeline"`
	Count    int                         `json:"count"`
}

// CorrectionResponse is the body of a stored correction.
type CorrectionResponse struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message"`
	AnalysisID uint                  `json:"analysis_id"`
	Result     *review.CorrectResult `json:"result"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      uint   `json:"id"`
}

func (c *Controller) initAnalysisRoutes() {
	c.Group.GET("/history", c.GetHistory)
	c.Group.GET("/accuracy-timeline", c.GetAccuracyTimeline)
	c.Group.POST("/analyses/:id/correction", c.CorrectAnalysis)
	c.Group.DELETE("/analyses/:id", c.DeleteAnalysis)
	c.Group.GET("/export/csv", c.ExportCSV)
	c.Group.GET("/export/xlsx", c.ExportXLSX)
}

func (c *Controller) historyFilter(ctx echo.Context) (repository.AnalysisFilter, error) {
	var f repository.AnalysisFilter

	limit, err := queryInt(ctx, "limit", defaultHistoryLimit)
	if err != nil {
		return f, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	f.Limit = min(limit, maxHistoryLimit)

	offset, err := queryInt(ctx, "offset", 0)
	if err != nil {
		return f, err
	}
	if offset < 0 {
		return f, badRequest("offset must not be negative")
	}
	f.Offset = offset

	if status := strings.ToUpper(strings.TrimSpace(ctx.QueryParam("status"))); status != "" {
		if status != entities.StatusOK && status != entities.StatusNOK {
			return f, badRequest("status must be %s or %s", entities.StatusOK, entities.StatusNOK)
		}
		f.Status = status
	}

	if f.WorkplaceID, err = optionalUint(ctx.QueryParam("workplace_id"), "workplace_id"); err != nil {
		return f, err
	}
	f.ModelVersion = strings.TrimSpace(ctx.QueryParam("model_version"))
	return f, nil
}

// GetHistory lists analyses newest first with aggregate statistics.
func (c *Controller) GetHistory(ctx echo.Context) error {
	filter, err := c.historyFilter(ctx)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid history query")
	}

	reqCtx := ctx.Request().Context()
	analyses, err := c.store.Analyses.List(reqCtx, filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load history", http.StatusInternalServerError)
	}
	total, err := c.store.Analyses.Count(reqCtx, filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to count analyses", http.StatusInternalServerError)
	}
	stats, err := c.store.Analyses.Statistics(reqCtx, filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute statistics", http.StatusInternalServerError)
	}

	if analyses == nil {
		analyses = []entities.Analysis{}
	}
	return ctx.JSON(http.StatusOK, HistoryResponse{
		Success:    true,
		Analyses:   analyses,
		Statistics: stats,
		Pagination: Pagination{
			Limit:  filter.Limit,
			Offset: filter.Offset,
			Count:  len(analyses),
			Total:  total,
		},
	})
}

// GetAccuracyTimeline returns weekly accuracy of reviewed analyses.
func (c *Controller) GetAccuracyTimeline(ctx echo.Context) error {
	timeline, err := c.store.Analyses.AccuracyTimeline(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute accuracy timeline", http.StatusInternalServerError)
	}
	if timeline == nil {
		timeline = []repository.WeeklyAccuracy{}
	}
	return ctx.JSON(http.StatusOK, TimelineResponse{
		Success:  true,
		Timeline: timeline,
		Count:    len(timeline),
	})
}

// CorrectAnalysis stores a reviewer correction.
func (c *Controller) CorrectAnalysis(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid analysis id")
	}

	var body review.Correction
	if err := ctx.Bind(&body); err != nil {
		return c.HandleError(ctx, err, "Invalid correction body", http.StatusBadRequest)
	}

	result, err := c.review.Correct(ctx.Request().Context(), id, body)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to store correction")
	}

	return ctx.JSON(http.StatusOK, CorrectionResponse{
		Success:    true,
		Message:    "Correctie opgeslagen",
		AnalysisID: id,
		Result:     result,
	})
}

// DeleteAnalysis removes an analysis and its photo.
func (c *Controller) DeleteAnalysis(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid analysis id")
	}
	if err := c.review.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete analysis")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{
		Success: true,
		Message: "Analyse verwijderd",
		ID:      id,
	})
}

// ExportCSV downloads the full history as CSV.
func (c *Controller) ExportCSV(ctx echo.Context) error {
	return c.exportHistory(ctx, "csv", "text/csv; charset=utf-8", c.history.WriteCSV)
}

// ExportXLSX downloads the full history as a spreadsheet.
func (c *Controller) ExportXLSX(ctx echo.Context) error {
	return c.exportHistory(ctx, "xlsx", contentTypeXLSX, c.history.WriteXLSX)
}

// exportHistory buffers the export so that a failure still yields a JSON error.
func (c *Controller) exportHistory(ctx echo.Context, format, contentType string,
	write func(context.Context, io.Writer) (int, error)) error {
	var buf bytes.Buffer
	rows, err := write(ctx.Request().Context(), &buf)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to export history")
	}

	name := review.ExportFileName(format, c.now())
	c.logger.Info("history exported",
		logger.String("format", format),
		logger.Int("rows", rows))

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return ctx.Blob(http.StatusOK, contentType, buf.Bytes())
}
