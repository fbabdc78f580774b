package repository

// AnalysisFilter narrows analysis queries. Zero values mean "no filter".
type AnalysisFilter struct {
	WorkplaceID  *uint
	Status       string
	ModelVersion string
	Limit        int
	Offset       int
}

// IssueCount is one entry of the most common NOK labels.
type IssueCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Statistics aggregates the inspection history.
type Statistics struct {
	TotalAnalyses    int64        `json:"total_analyses"`
	OKCount          int64        `json:"ok_count"`
	NOKCount         int64        `json:"nok_count"`
	CommonIssues     []IssueCount `json:"common_issues"`
	AvgConfidence    float64      `json:"avg_confidence"`
	CorrectionsCount int64        `json:"corrections_count"`
}

// WeeklyAccuracy is one point of the accuracy timeline.
type WeeklyAccuracy struct {
	Week     string  `json:"week"`
	Date     string  `json:"date"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Correction holds the reviewer-supplied fields written by ApplyCorrection.
type Correction struct {
	CorrectedClass    int
	CorrectedLabel    string
	Notes             *string
	TrainingCandidate bool
}

// TrainingStatistics summarizes the retraining queue.
type TrainingStatistics struct {
	UnreviewedCount         int64   `json:"unreviewed_count"`
	TrainingQueueCount      int64   `json:"training_queue_count"`
	ExportedCount           int64   `json:"exported_count"`
	TrainingTarget          int     `json:"training_target"`
	TrainingProgressPercent float64 `json:"training_progress_percent"`
}

// ErrorType counts one predicted/actual label confusion.
type ErrorType struct {
	Predicted   string `json:"predicted"`
	Actual      string `json:"actual"`
	Count       int64  `json:"count"`
	Description string `json:"description"`
}

// DetectionErrors are per-item detector mistakes collected from reviewer notes.
type DetectionErrors struct {
	Missing       map[string]int `json:"missing"`
	FalsePositive map[string]int `json:"false_positive"`
	CountError    map[string]int `json:"count_error"`
}

// DatasetStats describes model performance on a workplace's reviewed analyses.
type DatasetStats struct {
	TotalImages          int64            `json:"total_images"`
	LabeledCount         int64            `json:"labeled_count"`
	UnlabeledCount       int64            `json:"unlabeled_count"`
	TrainingReady        int64            `json:"training_ready"`
	CorrectPredictions   int64            `json:"correct_predictions"`
	IncorrectPredictions int64            `json:"incorrect_predictions"`
	Accuracy             float64          `json:"accuracy"`
	ErrorTypes           []ErrorType      `json:"error_types"`
	LabelDistribution    map[string]int64 `json:"label_distribution"`
	DetectionErrors      DetectionErrors  `json:"detection_errors"`
}

// WorkplaceUpdate carries optional workplace fields; nil fields are left unchanged.
type WorkplaceUpdate struct {
	Name                *string
	Description         *string
	Items               []string
	Active              *bool
	ConfidenceThreshold *float64
	WhiteboardRegion    *RegionUpdate
}

// RegionUpdate sets or clears the whiteboard region.
type RegionUpdate struct {
	Clear bool
	X1    float64
	Y1    float64
	X2    float64
	Y2    float64
}

// TrainingImageUpdate carries optional training image fields.
type TrainingImageUpdate struct {
	Label     *string
	ClassID   *int
	Validated *bool
}
