package inference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// ModelExtension is the only accepted model file extension.
const ModelExtension = ".tflite"

// Loader constructs an inferrer for a model reference.
type Loader func(ref ModelRef) (Inferrer, error)

// NewTFLiteLoader returns a Loader that builds tflite classifiers and detectors.
func NewTFLiteLoader(threads int, nmsThreshold float64) Loader {
	return func(ref ModelRef) (Inferrer, error) {
		if !strings.EqualFold(filepath.Ext(ref.Path), ModelExtension) {
			return nil, errors.Newf("unsupported model file %q, %s required", filepath.Base(ref.Path), ModelExtension).
				Component("inference").
				Category(errors.CategoryModelLoad).
				Build()
		}
		switch ref.Type {
		case entities.ModelTypeDetection:
			return NewDetector(ref, threads, nmsThreshold)
		case entities.ModelTypeClassification, "":
			return NewClassifier(ref, threads)
		default:
			return nil, errors.Newf("unsupported model type %q", ref.Type).
				Component("inference").
				Category(errors.CategoryModelLoad).
				Build()
		}
	}
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Loader        Loader
	DummyFallback bool // serve the dummy model when loading fails
	DummyVersion  string
}

// LoadedModel describes a cached inferrer.
type LoadedModel struct {
	Path   string             `json:"path"`
	Type   entities.ModelType `json:"type"`
	Scheme SchemeKind         `json:"scheme"`
	Arity  int                `json:"arity"`
}

// Registry holds loaded inferrers keyed by model path. Concurrent loads of the
// same path are deduplicated. Handles replaced by Swap stay open until Close.
type Registry struct {
	models  *cache.Cache
	group   singleflight.Group
	loader  Loader
	dummy   *Dummy
	options RegistryOptions
	log     logger.Logger

	// mu guards the cache writes together with swaps and retired
	mu      sync.Mutex
	swaps   map[string]uint64 // Swap count per path
	retired []Inferrer
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Loader == nil {
		opts.Loader = NewTFLiteLoader(0, DefaultNMSThreshold)
	}
	return &Registry{
		models:  cache.New(cache.NoExpiration, 0),
		swaps:   make(map[string]uint64),
		loader:  opts.Loader,
		dummy:   NewDummy(opts.DummyVersion),
		options: opts,
		log:     GetLogger().Module("registry"),
	}
}

// Get returns the inferrer for ref, loading it on first use. When loading
// fails and the dummy fallback is enabled the dummy model is returned instead.
func (r *Registry) Get(ctx context.Context, ref ModelRef) (Inferrer, error) {
	if ref.Type == entities.ModelTypeDummy {
		return r.dummy, nil
	}
	if inf, ok := r.lookup(ref.Path); ok {
		return inf, nil
	}

	ch := r.group.DoChan(ref.Path, func() (any, error) {
		r.mu.Lock()
		cached, ok := r.lookup(ref.Path)
		gen := r.swaps[ref.Path]
		r.mu.Unlock()
		if ok {
			return cached, nil
		}

		inf, err := r.load(ref)
		if err != nil {
			return nil, err
		}
		return r.store(ref, inf, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(Inferrer), nil
		}
		if r.options.DummyFallback {
			r.log.Warn("model unavailable, using dummy model",
				logger.String("model", filepath.Base(ref.Path)),
				logger.Error(res.Err))
			return r.dummy, nil
		}
		return nil, res.Err
	}
}

// Swap loads ref and replaces any cached handle for its path. Requests that
// already hold the old handle finish on it.
func (r *Registry) Swap(ref ModelRef) (Inferrer, error) {
	inf, err := r.load(ref)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.discard(ref, inf)
		return nil, errRegistryClosed()
	}
	if old, ok := r.lookup(ref.Path); ok {
		r.retired = append(r.retired, old)
	}
	r.swaps[ref.Path]++
	r.models.Set(ref.Path, inf, cache.NoExpiration)
	r.mu.Unlock()

	r.log.Info("model swapped",
		logger.String("model", filepath.Base(ref.Path)),
		logger.String("type", string(inf.Type())),
		logger.String("version", ref.Version))
	return inf, nil
}

// Loaded lists the cached inferrers sorted by path.
func (r *Registry) Loaded() []LoadedModel {
	items := r.models.Items()
	out := make([]LoadedModel, 0, len(items))
	for path, item := range items {
		inf, ok := item.Object.(Inferrer)
		if !ok {
			continue
		}
		s := inf.Scheme()
		out = append(out, LoadedModel{Path: path, Type: inf.Type(), Scheme: s.Kind(), Arity: s.Arity()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Close closes every cached and retired inferrer.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	handles := r.retired
	r.retired = nil
	for _, item := range r.models.Items() {
		if inf, ok := item.Object.(Inferrer); ok {
			handles = append(handles, inf)
		}
	}
	r.models.Flush()
	r.mu.Unlock()

	var errs []error
	for _, inf := range handles {
		if err := inf.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) lookup(path string) (Inferrer, bool) {
	v, ok := r.models.Get(path)
	if !ok {
		return nil, false
	}
	inf, ok := v.(Inferrer)
	return inf, ok
}

// store caches a handle loaded by Get. A Swap of the same path since gen wins:
// the fresh handle is closed and the swapped one returned. After Close the
// handle is closed as well.
func (r *Registry) store(ref ModelRef, inf Inferrer, gen uint64) (Inferrer, error) {
	r.mu.Lock()
	switch {
	case r.closed:
		r.mu.Unlock()
		r.discard(ref, inf)
		return nil, errRegistryClosed()
	case r.swaps[ref.Path] != gen:
		current, ok := r.lookup(ref.Path)
		r.mu.Unlock()
		r.discard(ref, inf)
		if !ok {
			return nil, errRegistryClosed()
		}
		return current, nil
	}
	r.models.Set(ref.Path, inf, cache.NoExpiration)
	r.mu.Unlock()
	return inf, nil
}

func (r *Registry) discard(ref ModelRef, inf Inferrer) {
	if err := inf.Close(); err != nil {
		r.log.Warn("failed to close superseded model",
			logger.String("model", filepath.Base(ref.Path)),
			logger.Error(err))
	}
}

func errRegistryClosed() error {
	return fmt.Errorf("model registry is closed")
}

func (r *Registry) load(ref ModelRef) (Inferrer, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, errRegistryClosed()
	}

	if _, err := os.Stat(ref.Path); err != nil {
		return nil, errors.New(fmt.Errorf("model file not available: %w", err)).
			Component("inference").
			Category(errors.CategoryModelLoad).
			ModelContext(ref.Path, string(ref.Type)).
			Build()
	}
	return r.loader(ref)
}
