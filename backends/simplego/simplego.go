// Package simplego implements a simple and very portable backend for the ScatterElementsUpdate evaluator,
// in pure Go.
//
// It supports all numeric dtypes (including Float16 and BFloat16) and Bool for data and updates, and all
// integer dtypes for indices and axis.
//
// Configuration, given as "go:<options>" in $SCATTERUPDATE_BACKEND, is a comma-separated list of key=value:
//
//   - pool=true|false: reuse output and scratch buffers through a pool (default true).
//   - reuse=true|false: allow a donated data tensor to be reused as the output (default true).
package simplego

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gomlx/scatterupdate/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in SCATTERUPDATE_BACKEND to specify this backend.
const BackendName = "go"

// Registers New() as the default constructor for "go" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new SimpleGo Backend, see package documentation for the configuration options.
func New(config string) (backends.Backend, error) {
	b := newBackend()
	if err := b.parseConfig(config); err != nil {
		return nil, err
	}
	klog.V(1).Infof("created backend %q: pool=%v, reuse=%v", BackendName, b.usePool, b.allowReuse)
	return b, nil
}

func newBackend() *Backend {
	return &Backend{
		usePool:    true,
		allowReuse: true,
	}
}

// Backend implements the backends.Backend interface.
//
// It's safe for concurrent use: the only shared state is the pool of buffers.
type Backend struct {
	// bufferPools are a map to pools of buffers that can be reused.
	// The underlying type is map[bufferPoolKey]*sync.Pool.
	bufferPools sync.Map

	// usePool enables the pool of buffers. If false buffers are always freshly allocated.
	usePool bool

	// allowReuse allows donated inputs to be reused as outputs.
	allowReuse bool

	isFinalized atomic.Bool
}

// Compile-time check that simplego.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// parseConfig parses the comma-separated key=value options.
func (b *Backend) parseConfig(config string) error {
	for _, option := range strings.Split(config, ",") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, found := strings.Cut(option, "=")
		if !found {
			return errors.Errorf("backend %q: invalid option %q in configuration %q, options must be formatted as key=value",
				BackendName, option, config)
		}
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "backend %q: invalid value for option %q in configuration %q", BackendName, key, config)
		}
		switch key {
		case "pool":
			b.usePool = boolValue
		case "reuse":
			b.allowReuse = boolValue
		default:
			return errors.Errorf("backend %q: unknown option %q in configuration %q, valid options are \"pool\" and \"reuse\"",
				BackendName, key, config)
		}
	}
	return nil
}

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return BackendName
}

// String implement backends.Backend.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	return "SimpleGo (go): Simple Go Portable Backend"
}

// Capabilities returns information about what is supported by this backend.
func (b *Backend) Capabilities() backends.Capabilities {
	return Capabilities
}

// Finalize releases all the associated resources immediately, and makes the backend invalid.
func (b *Backend) Finalize() {
	if b.isFinalized.Swap(true) {
		return
	}
	b.bufferPools.Clear()
}

// checkOk returns an error if the backend has been finalized.
func (b *Backend) checkOk() error {
	if b.isFinalized.Load() {
		return errors.Errorf("backend %q has already been finalized", BackendName)
	}
	return nil
}
