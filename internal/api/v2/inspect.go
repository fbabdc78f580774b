package api

import (
	"context"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/Timvanhoudt/VirtualTeamLeader/internal/api/middleware"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inspection"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/privacy"
)

// PrivacyRejection is the 403 body of an inspection refused for privacy reasons.
type PrivacyRejection struct {
	ErrorResponse
	Success       bool `json:"success"`
	FacesDetected int  `json:"faces_detected"`
}

// PrivacyInfo reports what the privacy filter did.
type PrivacyInfo struct {
	FacesDetected int `json:"faces_detected"`
	FacesBlurred  int `json:"faces_blurred"`
}

// ClassificationStep is the OK/NOK part of an inspection response.
type ClassificationStep struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Result     string  `json:"result"`
}

// AnalysisStep describes the predicted class.
type AnalysisStep struct {
	ClassID      int      `json:"class_id"`
	ClassName    string   `json:"class_name"`
	Label        string   `json:"label"`
	Description  string   `json:"description"`
	MissingItems []string `json:"missing_items"`
}

// ModelInfo names the model behind a verdict.
type ModelInfo struct {
	Type            string         `json:"type"`
	Version         string         `json:"version,omitempty"`
	Scheme          string         `json:"scheme"`
	Detections      map[string]int `json:"detections,omitempty"`
	TotalDetections int            `json:"total_detections"`
}

// ImagePayload is the processed photo returned to the client.
type ImagePayload struct {
	Filename string `json:"filename,omitempty"`
	Base64   string `json:"base64,omitempty"`
}

// InspectResponse is the body of a successful inspection.
type InspectResponse struct {
	Success        bool                   `json:"success"`
	AnalysisID     *uint                  `json:"analysis_id"`
	Stored         bool                   `json:"stored"`
	Timestamp      time.Time              `json:"timestamp"`
	DeviceID       string                 `json:"device_id"`
	WorkplaceID    *uint                  `json:"workplace_id,omitempty"`
	Privacy        PrivacyInfo            `json:"privacy"`
	Classification ClassificationStep     `json:"step1_classification"`
	Analysis       AnalysisStep           `json:"step2_analysis"`
	Suggestions    []inference.Suggestion `json:"step3_suggestions"`
	Model          ModelInfo              `json:"model"`
	Image          ImagePayload           `json:"image"`
	DurationMs     int64                  `json:"duration_ms"`
}

// BlurPreviewResponse is the body of /blur-preview.
type BlurPreviewResponse struct {
	FaceCount    int    `json:"face_count"`
	BlurredImage string `json:"blurred_image"`
	HasFaces     bool   `json:"has_faces"`
}

// CompareSide is the verdict for one photo of a comparison.
type CompareSide struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
}

// CompareResponse is the body of /compare.
type CompareResponse struct {
	Success     bool                   `json:"success"`
	Match       bool                   `json:"match"`
	Reference   CompareSide            `json:"reference"`
	Test        CompareSide            `json:"test"`
	Suggestions []inference.Suggestion `json:"suggestions"`
	Difference  *imaging.CompareResult `json:"difference,omitempty"`
}

func (c *Controller) initInspectionRoutes() {
	inspect := []echo.MiddlewareFunc{}
	if c.Settings != nil && c.Settings.WebServer.RateLimit > 0 {
		inspect = append(inspect, mw.NewRateLimiter(c.Settings.WebServer.RateLimit, c.Settings.WebServer.RateLimitBurst))
	}

	c.Group.POST("/inspect", c.Inspect, inspect...)
	c.Group.GET("/progress/:token", c.GetProgress)
	c.Group.POST("/blur-preview", c.BlurPreview)
	c.Group.POST("/compare", c.Compare, inspect...)
}

// Inspect runs the inspection pipeline on an uploaded photo.
func (c *Controller) Inspect(ctx echo.Context) error {
	if c.pipeline == nil {
		return c.HandleError(ctx, nil, "Inspection pipeline not available", http.StatusServiceUnavailable)
	}

	data, _, err := readUpload(ctx, "file")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid upload")
	}
	workplaceID, err := optionalUint(ctx.FormValue("workplace_id"), "workplace_id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}
	threshold, err := optionalFloat(ctx.FormValue("confidence_threshold"), "confidence_threshold")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid confidence threshold")
	}

	token := ctx.Request().Header.Get(mw.HeaderProgressSession)
	if token == "" {
		token = ctx.FormValue("session_token")
	}

	res := c.pipeline.Run(ctx.Request().Context(), inspection.Request{
		Image:               data,
		WorkplaceID:         workplaceID,
		DeviceID:            strings.TrimSpace(ctx.FormValue("device_id")),
		UserAgent:           ctx.Request().UserAgent(),
		SessionToken:        token,
		BlurFaces:           formBool(ctx.FormValue("blur_faces")),
		ConfidenceThreshold: threshold,
	})

	switch r := res.(type) {
	case *inspection.Ok:
		return ctx.JSON(http.StatusOK, newInspectResponse(r))
	case *inspection.Rejected:
		return c.privacyRejection(ctx, r.Reason, r.FaceCount)
	case *inspection.Failed:
		return c.HandleServiceError(ctx, r.Err, "Inspection failed")
	default:
		return c.HandleError(ctx, nil, "Inspection failed", http.StatusInternalServerError)
	}
}

func (c *Controller) privacyRejection(ctx echo.Context, reason string, faces int) error {
	resp := PrivacyRejection{
		ErrorResponse: *NewErrorResponse(nil, reason, http.StatusForbidden),
		FacesDetected: faces,
	}
	c.logger.Info("photo rejected by privacy policy",
		logger.String("correlation_id", resp.CorrelationID),
		logger.Int("faces", faces),
		logger.String("path", ctx.Request().URL.Path))
	return ctx.JSON(http.StatusForbidden, resp)
}

func newInspectResponse(r *inspection.Ok) InspectResponse {
	v := r.Verdict
	resp := InspectResponse{
		Success:     true,
		Stored:      r.Stored(),
		Timestamp:   r.Timestamp,
		DeviceID:    r.DeviceID,
		WorkplaceID: r.WorkplaceID,
		Privacy: PrivacyInfo{
			FacesDetected: r.FacesFound,
			FacesBlurred:  r.FacesBlurred,
		},
		Classification: ClassificationStep{
			Status:     v.Status(),
			Confidence: v.Confidence,
			Result:     v.Status(),
		},
		Analysis: AnalysisStep{
			ClassID:      v.ClassID,
			ClassName:    v.Class.Name,
			Label:        v.Class.Label,
			Description:  v.Class.Description,
			MissingItems: nonNil(v.Class.MissingItems),
		},
		Suggestions: v.Suggestions(),
		Model: ModelInfo{
			Type:            string(v.ModelType),
			Version:         v.ModelVersion,
			Scheme:          string(v.Scheme),
			Detections:      v.Counts,
			TotalDetections: v.TotalDetections(),
		},
		Image:      ImagePayload{Filename: r.ImageName},
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Stored() {
		id := r.AnalysisID
		resp.AnalysisID = &id
	}
	if len(r.ImageJPEG) > 0 {
		resp.Image.Base64 = imaging.DataURL(r.ImageJPEG)
	}
	return resp
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// GetProgress reports the progress of an inspection by session token.
func (c *Controller) GetProgress(ctx echo.Context) error {
	p, ok := c.tracker.Get(ctx.Param("token"))
	if !ok {
		return c.HandleError(ctx, nil, "Unknown or expired progress token", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, p)
}

// BlurPreview blurs faces in an uploaded photo without storing anything.
func (c *Controller) BlurPreview(ctx echo.Context) error {
	img, err := c.decodeUpload(ctx, "file")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid image")
	}

	res := c.privacy.BlurPreview(img)
	jpegBytes, err := imaging.EncodeJPEG(res.Image, c.jpegQuality())
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to encode preview")
	}

	return ctx.JSON(http.StatusOK, BlurPreviewResponse{
		FaceCount:    res.FaceCount,
		BlurredImage: imaging.DataURL(jpegBytes),
		HasFaces:     res.FaceCount > 0,
	})
}

// Compare classifies a reference and a test photo and reports whether they
// agree, plus the changed regions when image comparison is available.
func (c *Controller) Compare(ctx echo.Context) error {
	ref, err := c.decodeUpload(ctx, "reference")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid reference image")
	}
	test, err := c.decodeUpload(ctx, "test")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid test image")
	}
	workplaceID, err := optionalUint(ctx.FormValue("workplace_id"), "workplace_id")
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid workplace id")
	}

	for _, img := range []image.Image{ref, test} {
		if check := c.privacy.Check(img, false); check.FaceCount > 0 {
			return c.privacyRejection(ctx, privacy.RejectionMessage(check.FaceCount), check.FaceCount)
		}
	}

	model, modelRef, err := c.modelFor(ctx.Request().Context(), workplaceID)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Model not available")
	}

	threshold := c.inferenceThreshold()
	reqCtx := context.WithoutCancel(ctx.Request().Context())
	refVerdict, err := model.Infer(reqCtx, ref, threshold)
	if err != nil {
		return c.HandleServiceError(ctx, inferenceError(err, modelRef), "Failed to analyze reference image")
	}
	testVerdict, err := model.Infer(reqCtx, test, threshold)
	if err != nil {
		return c.HandleServiceError(ctx, inferenceError(err, modelRef), "Failed to analyze test image")
	}

	resp := CompareResponse{
		Success:     true,
		Match:       refVerdict.ClassID == testVerdict.ClassID,
		Reference:   compareSide(refVerdict),
		Test:        compareSide(testVerdict),
		Suggestions: []inference.Suggestion{},
	}
	if !resp.Match {
		resp.Suggestions = testVerdict.Suggestions()
	}

	diff, err := imaging.Compare(ref, test)
	switch {
	case err == nil:
		resp.Difference = diff
	case errors.Is(err, imaging.ErrCompareUnavailable):
		// built without OpenCV
	default:
		c.logger.Warn("image comparison failed", logger.Error(err))
	}

	return ctx.JSON(http.StatusOK, resp)
}

func compareSide(v *inference.Verdict) CompareSide {
	return CompareSide{
		ClassID:    v.ClassID,
		ClassName:  v.Class.Name,
		Status:     v.Status(),
		Confidence: v.Confidence,
	}
}

func inferenceError(err error, ref inference.ModelRef) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryModelInference).
		ModelContext(ref.Path, string(ref.Type)).
		Build()
}

// modelFor resolves the model of a workplace, or the default model.
func (c *Controller) modelFor(ctx context.Context, workplaceID *uint) (inference.Inferrer, inference.ModelRef, error) {
	ref := c.defaultModel
	if c.selector != nil {
		selected, err := c.selector.Select(ctx, workplaceID)
		if err != nil {
			return nil, ref, err
		}
		ref = selected
	}
	if c.models == nil {
		return nil, ref, errors.Newf("no model registry configured").
			Component("api").
			Category(errors.CategoryModelLoad).
			Build()
	}
	model, err := c.models.Get(ctx, ref)
	if err != nil {
		return nil, ref, errors.New(err).
			Component("api").
			Category(errors.CategoryModelLoad).
			ModelContext(ref.Path, string(ref.Type)).
			Build()
	}
	return model, ref, nil
}

func (c *Controller) decodeUpload(ctx echo.Context, field string) (image.Image, error) {
	data, _, err := readUpload(ctx, field)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(data)
	return img, err
}

func (c *Controller) jpegQuality() int {
	if c.Settings == nil {
		return imaging.DefaultJPEGQuality
	}
	return c.Settings.Inspection.JPEGQuality
}

func (c *Controller) inferenceThreshold() float64 {
	if c.Settings == nil || c.Settings.Inspection.ConfidenceThreshold <= 0 {
		return inspection.DefaultConfidenceThreshold
	}
	return c.Settings.Inspection.ConfidenceThreshold
}
