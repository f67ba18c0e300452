// Package processor implements the contract-only processor plugin
// described in spec.md §4.5: it decodes the frame header, runs an
// external ML runtime over the image, accumulates statistics, and
// optionally publishes results and the raw image over a ZMQ PUB
// socket.
package processor

// Tensor is a named, flat N-D array, the shape the external ML
// runtime consumes and produces. Dims is row-major.
type Tensor struct {
	Name string
	Dims []int
	Data []float32
}

// Runtime is the opaque ML inference engine described in spec.md §1:
// load a model from a path, then run named-input to named-output on a
// typed tensor. Not re-implemented here; FakeRuntime stands in for
// tests and -sim mode.
type Runtime interface {
	LoadModel(path string) error
	Run(inputLayer string, input Tensor, outputLayer string) (Tensor, error)
}

// FakeRuntime is a scriptable Runtime used by tests. Run returns
// Result whether or not LoadModel has been called, unless RunErr is
// set; LoadModel returns LoadErr if set.
type FakeRuntime struct {
	LoadErr error
	RunErr  error

	loaded bool
	Result []float32
}

// NewFakeRuntime returns a FakeRuntime that will answer Run calls
// with result.
func NewFakeRuntime(result []float32) *FakeRuntime {
	return &FakeRuntime{Result: result}
}

func (f *FakeRuntime) LoadModel(path string) error {
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.loaded = true
	return nil
}

func (f *FakeRuntime) Run(inputLayer string, input Tensor, outputLayer string) (Tensor, error) {
	if f.RunErr != nil {
		return Tensor{}, f.RunErr
	}
	return Tensor{Name: outputLayer, Dims: []int{len(f.Result)}, Data: f.Result}, nil
}
