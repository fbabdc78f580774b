package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	v2 "github.com/Timvanhoudt/VirtualTeamLeader/internal/api/v2"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inspection"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/mqtt"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/notification"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/observability"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/privacy"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/progress"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/review"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/telemetry"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/workplace"
)

// sentryFlushTimeout bounds the wait for queued telemetry on shutdown.
const sentryFlushTimeout = 2 * time.Second

// App holds the long-lived components of a running service.
type App struct {
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Services v2.Services

	manager  datastore.Manager
	registry *inference.Registry
	notifier *notification.Notifier
	detector *privacy.CascadeDetector
	log      logger.Logger
}

// NewApp opens the database, applies migrations and builds every service the
// HTTP API needs. On error everything opened so far is closed again.
func NewApp(ctx context.Context, settings *conf.Settings, build *buildinfo.Info, log logger.Logger) (app *App, err error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	a := &App{Settings: settings, log: log}
	defer func() {
		if err != nil {
			if cerr := a.Close(context.Background()); cerr != nil {
				log.Warn("cleanup after failed start", logger.Error(cerr))
			}
		}
	}()

	if err := telemetry.InitSentry(&settings.Sentry, build.GetVersion()); err != nil {
		return nil, err
	}

	if settings.Telemetry.Enabled {
		if a.Metrics, err = observability.NewMetrics(); err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	if a.manager, err = datastore.NewManager(settings, log.Module("datastore")); err != nil {
		return nil, err
	}
	if a.Metrics != nil {
		if err := datastore.Instrument(a.manager.DB(), a.Metrics.Datastore); err != nil {
			return nil, err
		}
	}
	store := repository.NewStore(a.manager.DB())

	a.registry = inference.NewRegistry(inference.RegistryOptions{
		Loader:        inference.NewTFLiteLoader(settings.Model.Threads, settings.Inspection.NMSThreshold),
		DummyFallback: settings.Model.DummyFallback,
		DummyVersion:  settings.Model.Version,
	})
	defaultModel := inference.DefaultModelRef(&settings.Model)
	defaultModel.Path = settings.ResolvePath(defaultModel.Path)
	selector := inference.NewSelector(store.Models, store.Workplaces, defaultModel)

	filter := a.newPrivacyFilter()
	tracker := progress.NewTracker(settings.Inspection.ProgressTTL, 0)

	var mqttMetrics mqtt.Metrics
	if a.Metrics != nil {
		mqttMetrics = a.Metrics.Notification
	}
	if a.notifier, err = notification.FromSettings(&settings.Notification, mqttMetrics); err != nil {
		return nil, err
	}

	// Migrations, directories and the default model are independent of each other
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.manager.Initialize(gctx)
	})
	g.Go(func() error {
		return ensureDirs(settings)
	})
	g.Go(func() error {
		if _, err := a.registry.Get(gctx, defaultModel); err != nil {
			// Requests retry the load, so a missing model is not fatal here
			log.Warn("default model not loaded",
				logger.String("path", defaultModel.Path),
				logger.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	deps := inspection.Deps{
		Selector:   selector,
		Models:     a.registry,
		Privacy:    filter,
		Analyses:   store.Analyses,
		Workplaces: store.Workplaces,
		Tracker:    tracker,
		Notifier:   a.notifier,
	}
	var corrections review.CorrectionRecorder
	if a.Metrics != nil {
		deps.Metrics = a.Metrics.Inspection
		corrections = a.Metrics.Inspection
	}

	a.Services = v2.Services{
		Store:        store,
		Database:     a.manager,
		Pipeline:     inspection.NewPipeline(deps, inspection.ConfigFromSettings(settings)),
		Privacy:      filter,
		Tracker:      tracker,
		Selector:     selector,
		Models:       a.registry,
		DefaultModel: defaultModel,
		Review: review.NewService(store.Analyses,
			settings.ResolvePath(settings.Training.ExportDir),
			settings.Training.Target,
			corrections),
		Datasets: review.NewDatasetExporter(store,
			settings.ResolvePath(settings.Training.DatasetExportDir),
			settings.Training.TrainSplit),
		History: review.NewHistoryExporter(store.Analyses),
		Workplaces: workplace.NewService(store, a.registry, workplace.Paths{
			ReferencePhotos: settings.ResolvePath(settings.Training.ReferencePhotosDir),
			TrainingImages:  settings.ResolvePath(settings.Training.TrainingImagesDir),
			Models:          settings.ResolvePath(settings.Training.ModelsDir),
		}),
	}

	log.Info("services initialized",
		logger.String("database", a.manager.Dialect()),
		logger.String("default_model", defaultModel.Path),
		logger.Bool("face_detection", a.detector != nil),
		logger.Any("notification_sinks", a.notifier.Sinks()),
		logger.Bool("metrics", a.Metrics != nil))
	return a, nil
}

// newPrivacyFilter loads the face detector. A detector that cannot be loaded
// leaves the filter without one, which lets every photo through.
func (a *App) newPrivacyFilter() *privacy.Filter {
	opts := privacy.Options{
		BlurStrength: a.Settings.Privacy.BlurStrength,
		Padding:      a.Settings.Privacy.Padding,
	}
	if !a.Settings.Privacy.Enabled {
		a.log.Warn("face detection disabled in configuration")
		return privacy.NewFilter(nil, opts, a.log.Module("privacy"))
	}

	path := a.Settings.ResolvePath(a.Settings.Privacy.CascadePath)
	detector, err := privacy.NewCascadeDetector(path)
	if err != nil {
		a.log.Warn("face detector unavailable, photos are not screened",
			logger.String("cascade", path),
			logger.Error(err))
		return privacy.NewFilter(nil, opts, a.log.Module("privacy"))
	}
	a.detector = detector
	return privacy.NewFilter(detector, opts, a.log.Module("privacy"))
}

func ensureDirs(settings *conf.Settings) error {
	dirs := []string{
		settings.Inspection.UploadsDir,
		settings.Training.ExportDir,
		settings.Training.DatasetExportDir,
		settings.Training.TrainingImagesDir,
		settings.Training.ReferencePhotosDir,
		settings.Training.ModelsDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(settings.ResolvePath(dir), 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Close drains the notifier and releases models, the face detector and the
// database. It is safe to call on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.notifier != nil {
		if err := a.notifier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notifier: %w", err))
		}
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("models: %w", err))
		}
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("face detector: %w", err))
		}
	}
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	telemetry.Flush(sentryFlushTimeout)
	return errors.Join(errs...)
}
