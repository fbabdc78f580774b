package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// interpreter owns one tflite model and serialises access to it.
type interpreter struct {
	mu        sync.Mutex
	path      string
	modelType entities.ModelType
	model     *tflite.Model
	options   *tflite.InterpreterOptions
	interp    *tflite.Interpreter

	width  int
	height int
	nchw   bool
	closed bool
}

func loadError(err error, path string, modelType entities.ModelType, start time.Time) error {
	return errors.New(err).
		Component("inference").
		Category(errors.CategoryModelLoad).
		ModelContext(path, string(modelType)).
		Timing("model-load", time.Since(start)).
		Build()
}

// newInterpreter reads a float32 tflite model and allocates its tensors.
func newInterpreter(path string, modelType entities.ModelType, threads int) (*interpreter, error) {
	start := time.Now()
	log := GetLogger()

	modelData, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(fmt.Errorf("failed to read model file: %w", err), path, modelType, start)
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, loadError(fmt.Errorf("cannot load model from %s", filepath.Base(path)), path, modelType, start)
	}

	threads = threadCount(threads)
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		log.Error("tflite interpreter error",
			logger.String("model", filepath.Base(path)),
			logger.String("message", msg))
	}, nil)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, loadError(fmt.Errorf("cannot create interpreter"), path, modelType, start)
	}

	it := &interpreter{
		path:      path,
		modelType: modelType,
		model:     model,
		options:   options,
		interp:    interp,
	}

	if status := interp.AllocateTensors(); status != tflite.OK {
		it.release()
		return nil, loadError(fmt.Errorf("tensor allocation failed"), path, modelType, start)
	}

	if err := it.readInputShape(); err != nil {
		it.release()
		return nil, loadError(err, path, modelType, start)
	}

	log.Info("model loaded",
		logger.String("model", filepath.Base(path)),
		logger.String("type", string(modelType)),
		logger.Int("threads", threads),
		logger.Int("input_width", it.width),
		logger.Int("input_height", it.height),
		logger.Duration("duration", time.Since(start)))

	return it, nil
}

// readInputShape accepts [1,H,W,3] and [1,3,H,W] float32 inputs.
func (it *interpreter) readInputShape() error {
	input := it.interp.GetInputTensor(0)
	if input == nil {
		return fmt.Errorf("cannot get input tensor")
	}
	if input.Type() != tflite.Float32 {
		return fmt.Errorf("unsupported input tensor type %v, float32 required", input.Type())
	}
	if input.NumDims() != 4 {
		return fmt.Errorf("unexpected input rank %d, want 4", input.NumDims())
	}

	switch {
	case input.Dim(3) == 3:
		it.height, it.width = input.Dim(1), input.Dim(2)
	case input.Dim(1) == 3:
		it.height, it.width, it.nchw = input.Dim(2), input.Dim(3), true
	default:
		return fmt.Errorf("input tensor has no RGB channel dimension")
	}
	return nil
}

// run copies input into the model, invokes it once and returns a copy of
// output tensor 0 with its shape. Invoke is not interruptible.
func (it *interpreter) run(input []float32) ([]float32, []int, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return nil, nil, fmt.Errorf("interpreter for %s is closed", filepath.Base(it.path))
	}

	inputTensor := it.interp.GetInputTensor(0)
	if inputTensor == nil {
		return nil, nil, fmt.Errorf("cannot get input tensor")
	}
	if it.nchw {
		input = nhwcToNCHW(input, it.width, it.height)
	}
	copy(inputTensor.Float32s(), input)

	start := time.Now()
	if status := it.interp.Invoke(); status != tflite.OK {
		return nil, nil, errors.Newf("tensor invoke failed: %v", status).
			Component("inference").
			Category(errors.CategoryModelInference).
			ModelContext(it.path, string(it.modelType)).
			Timing("invoke", time.Since(start)).
			Build()
	}

	outputTensor := it.interp.GetOutputTensor(0)
	if outputTensor == nil {
		return nil, nil, fmt.Errorf("cannot get output tensor")
	}
	shape := make([]int, outputTensor.NumDims())
	for i := range shape {
		shape[i] = outputTensor.Dim(i)
	}
	data := outputTensor.Float32s()
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("output tensor is not float32")
	}

	return slices.Clone(data), shape, nil
}

func (it *interpreter) close() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return
	}
	it.closed = true
	it.release()
}

func (it *interpreter) release() {
	if it.interp != nil {
		it.interp.Delete()
		it.interp = nil
	}
	if it.options != nil {
		it.options.Delete()
		it.options = nil
	}
	if it.model != nil {
		it.model.Delete()
		it.model = nil
	}
}

// nhwcToNCHW reorders an interleaved RGB tensor into planar channels.
func nhwcToNCHW(in []float32, w, h int) []float32 {
	out := make([]float32, len(in))
	plane := w * h
	for i := 0; i < plane; i++ {
		out[i] = in[i*3]
		out[plane+i] = in[i*3+1]
		out[2*plane+i] = in[i*3+2]
	}
	return out
}
