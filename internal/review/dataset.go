package review

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// DefaultTrainSplit is the share of images placed in train/.
const DefaultTrainSplit = 0.8

// DatasetOptions tunes a dataset export.
type DatasetOptions struct {
	TrainSplit float64
	ExportedBy string
	Notes      string
	// Seed fixes the shuffle; zero picks one from the clock.
	Seed uint64
}

// LabelSplit is the per-label image count of an export.
type LabelSplit struct {
	Train int `json:"train"`
	Val   int `json:"val"`
	Total int `json:"total"`
}

// DatasetResult describes a written dataset archive.
type DatasetResult struct {
	Export       *entities.DatasetExport `json:"export"`
	Path         string                  `json:"path"`
	TrainCount   int                     `json:"train_count"`
	ValCount     int                     `json:"val_count"`
	Skipped      int                     `json:"skipped"`
	Distribution map[string]LabelSplit   `json:"distribution"`
}

// dataYAML is the training config consumed by YOLO classification training.
type dataYAML struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// DatasetExporter packages a workplace's training images into a zip archive.
type DatasetExporter struct {
	workplaces repository.WorkplaceRepository
	images     repository.TrainingImageRepository
	exports    repository.DatasetExportRepository
	outDir     string
	trainSplit float64
	log        logger.Logger
	now        func() time.Time
}

// NewDatasetExporter creates an exporter writing archives to outDir.
func NewDatasetExporter(store *repository.Store, outDir string, trainSplit float64) *DatasetExporter {
	if trainSplit <= 0 || trainSplit >= 1 {
		trainSplit = DefaultTrainSplit
	}
	return &DatasetExporter{
		workplaces: store.Workplaces,
		images:     store.TrainingImages,
		exports:    store.DatasetExports,
		outDir:     outDir,
		trainSplit: trainSplit,
		log:        GetLogger(),
		now:        time.Now,
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// slug turns a workplace name into a file name fragment.
func slug(name string) string {
	s := strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" {
		return "workplace"
	}
	return s
}

type splitImage struct {
	entities.TrainingImage
	train bool
}

// Export builds the archive for workplaceID and records it.
func (e *DatasetExporter) Export(ctx context.Context, workplaceID uint, opts DatasetOptions) (*DatasetResult, error) {
	split := opts.TrainSplit
	if split == 0 {
		split = e.trainSplit
	}
	if split <= 0 || split >= 1 {
		return nil, validationError("train split must be between 0 and 1")
	}

	w, err := e.workplaces.GetByID(ctx, workplaceID)
	if err != nil {
		return nil, err
	}
	images, err := e.images.List(ctx, workplaceID, false)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, validationError("workplace %d has no training images", workplaceID)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(e.now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	// Labels become archive directories; rows with unsafe labels are left out
	byLabel := map[string][]entities.TrainingImage{}
	unsafe := 0
	for i := range images {
		label := images[i].Label
		if !entities.ValidLabel(label) {
			unsafe++
			e.log.Warn("training image with unsafe label skipped",
				logger.Uint64("image_id", uint64(images[i].ID)),
				logger.String("label", label))
			continue
		}
		byLabel[label] = append(byLabel[label], images[i])
	}
	if len(byLabel) == 0 {
		return nil, validationError("workplace %d has no exportable training images", workplaceID)
	}
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var planned []splitImage
	for _, label := range labels {
		group := byLabel[label]
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		cut := int(float64(len(group)) * split)
		for i := range group {
			planned = append(planned, splitImage{TrainingImage: group[i], train: i < cut})
		}
	}

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return nil, exportIOError(err, "create_export_dir")
	}
	stamp := e.now().Format("20060102_150405")
	path := filepath.Join(e.outDir, fmt.Sprintf("dataset_%s_%s.zip", slug(w.Name), stamp))

	result := &DatasetResult{Path: path, Skipped: unsafe, Distribution: map[string]LabelSplit{}}
	if err := e.writeArchive(ctx, path, w, labels, planned, split, result); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(result.Distribution))
	for label, d := range result.Distribution {
		counts[label] = d.Total
	}
	record := &entities.DatasetExport{
		WorkplaceID: workplaceID,
		ExportPath:  path,
		ImageCount:  result.TrainCount + result.ValCount,
		ExportedBy:  opts.ExportedBy,
	}
	if record.ExportedBy == "" {
		record.ExportedBy = "admin"
	}
	if opts.Notes != "" {
		notes := opts.Notes
		record.Notes = &notes
	}
	record.SetDistribution(counts)
	if err := e.exports.Create(ctx, record); err != nil {
		return nil, err
	}
	result.Export = record

	e.log.Info("dataset exported",
		logger.Uint64("workplace_id", uint64(workplaceID)),
		logger.String("path", path),
		logger.Int("train", result.TrainCount),
		logger.Int("val", result.ValCount),
		logger.Int("skipped", result.Skipped))

	return result, nil
}

func exportIOError(err error, operation string) error {
	return errors.New(err).
		Component("review").
		Category(errors.CategoryExport).
		Context("operation", operation).
		Build()
}

// writeArchive writes to a temp file next to path and renames it on success.
func (e *DatasetExporter) writeArchive(ctx context.Context, path string, w *entities.Workplace,
	labels []string, planned []splitImage, split float64, result *DatasetResult,
) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.zip")
	if err != nil {
		return exportIOError(err, "create_archive")
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, img := range planned {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return err
		}
		dir := "val"
		if img.train {
			dir = "train"
		}
		name := fmt.Sprintf("%s/%s/%s", dir, img.Label, filepath.Base(img.ImagePath))
		if err := addFile(zw, name, img.ImagePath); err != nil {
			if os.IsNotExist(err) {
				result.Skipped++
				continue
			}
			_ = zw.Close()
			_ = tmp.Close()
			return exportIOError(err, "add_image")
		}
		d := result.Distribution[img.Label]
		if img.train {
			d.Train++
			result.TrainCount++
		} else {
			d.Val++
			result.ValCount++
		}
		d.Total++
		result.Distribution[img.Label] = d
	}

	config, err := yaml.Marshal(dataYAML{Path: ".", Train: "train", Val: "val", NC: len(labels), Names: labels})
	if err != nil {
		_ = zw.Close()
		_ = tmp.Close()
		return exportIOError(err, "write_data_yaml")
	}
	readme := datasetReadme(w, labels, split, result, e.now())

	manifest := []struct {
		name    string
		content []byte
	}{{"data.yaml", config}, {"README.md", readme}}
	for _, m := range manifest {
		fw, err := zw.Create(m.name)
		if err == nil {
			_, err = fw.Write(m.content)
		}
		if err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return exportIOError(err, "write_manifest")
		}
	}

	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return exportIOError(err, "finalize_archive")
	}
	if err := tmp.Close(); err != nil {
		return exportIOError(err, "finalize_archive")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return exportIOError(err, "finalize_archive")
	}
	tmpName = ""
	return nil
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	fw, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

func datasetReadme(w *entities.Workplace, labels []string, split float64, result *DatasetResult, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Training dataset - %s\n\n", w.Name)
	description := w.Description
	if description == "" {
		description = "-"
	}
	fmt.Fprintf(&b, "- Workplace: %s\n", w.Name)
	fmt.Fprintf(&b, "- Description: %s\n", description)
	fmt.Fprintf(&b, "- Items: %s\n", strings.Join(w.ItemList(), ", "))
	fmt.Fprintf(&b, "- Images: %d (train %d, val %d)\n", result.TrainCount+result.ValCount, result.TrainCount, result.ValCount)
	fmt.Fprintf(&b, "- Split: %.0f%% train / %.0f%% val\n", split*100, (1-split)*100)
	fmt.Fprintf(&b, "- Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	b.WriteString("## Classes\n\n")
	for i, label := range labels {
		d := result.Distribution[label]
		fmt.Fprintf(&b, "%d. %s: %d images (train %d, val %d)\n", i, label, d.Total, d.Train, d.Val)
	}
	if result.Skipped > 0 {
		fmt.Fprintf(&b, "\n%d image(s) were missing on disk and left out.\n", result.Skipped)
	}
	b.WriteString("\n## Layout\n\n```\ndata.yaml\ntrain/<label>/\nval/<label>/\n```\n")
	return b.Bytes()
}
