// Package backends defines the API for the evaluators of the ScatterElementsUpdate operation, and a
// registry of available implementations.
//
// An evaluator (a Backend) is used by an external graph-execution engine as a node-evaluation callback:
// it takes the `data`, `indices`, `updates` and `axis` tensors, and returns the scattered output, or a typed
// error (see ErrShapeMismatch, ErrInvalidAxis and friends).
//
// To use it, import the implementation you want to use, usually:
//
//	import _ "github.com/gomlx/scatterupdate/backends/simplego"
//
// And then create the backend with New(), configurable with the SCATTERUPDATE_BACKEND environment variable.
package backends

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/gomlx/scatterupdate/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Backend evaluates ScatterElementsUpdate nodes.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "go" for the pure Go backend.
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Capabilities returns what is supported by this backend.
	Capabilities() Capabilities

	// InferShape runs only the shape inference of ScatterElementsUpdate: it validates the inputs and returns
	// the output shape. Shapes may be dynamic (see shapes.DimUnknown).
	InferShape(data, indices, updates shapes.Shape, axis int, attrs ScatterAttributes) (shapes.Shape, error)

	// ScatterElementsUpdate evaluates the operation, with the axis given as a tensor: an integer scalar, or
	// an integer tensor with a single element.
	//
	// The returned tensor is owned by the caller, it may be given back with Recycle when no longer needed.
	ScatterElementsUpdate(data, indices, updates, axis *tensors.Tensor, attrs ScatterAttributes) (*tensors.Tensor, error)

	// ScatterElementsUpdateWithAxis is like ScatterElementsUpdate, with the axis given as an attribute.
	ScatterElementsUpdateWithAxis(data, indices, updates *tensors.Tensor, axis int, attrs ScatterAttributes) (*tensors.Tensor, error)

	// Recycle gives back to the backend the storage of a tensor returned by it. The tensor is finalized.
	Recycle(t *tensors.Tensor)

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	Finalize()
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registeredMu           sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the names of the registered backends, sorted.
func List() []string {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default backend configuration to use if the environment
// variable SCATTERUPDATE_BACKEND is not set.
var DefaultConfig string

// ConfigEnvVar is the name of the environment variable with the default backend configuration to use:
// "<backend_name>:<backend_configuration>".
const ConfigEnvVar = "SCATTERUPDATE_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment variable $SCATTERUPDATE_BACKEND (ConfigEnvVar) is used as a configuration if defined.
// 2. Next, it uses the variable DefaultConfig as the configuration.
// 3. The first registered backend is used with an empty configuration.
func New() (Backend, error) {
	if config, found := os.LookupEnv(ConfigEnvVar); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// MustNew returns a new default Backend or panics if it fails.
//
// See New for details.
func MustNew() Backend {
	return must.M1(New())
}

// NewWithConfig takes a configurations string formatted as:
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "go") and
// "<backend_configuration>" is backend specific (e.g.: "pool=false").
// If the ":" is absent, the whole config is taken as the backend name, and an empty configuration is used.
// An empty config selects the first registered backend.
func NewWithConfig(config string) (Backend, error) {
	registeredMu.Lock()
	if len(registeredConstructors) == 0 {
		registeredMu.Unlock()
		return nil, errors.Errorf(`no registered backends -- maybe import the default one with import _ "github.com/gomlx/scatterupdate/backends/simplego"?`)
	}
	backendName, backendConfig := firstRegistered, ""
	if config != "" {
		backendName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			backendName = config[:idx]
			backendConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[backendName]
	registeredMu.Unlock()
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given", backendName, config)
	}
	klog.V(1).Infof("creating backend %q with configuration %q", backendName, backendConfig)
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", backendName)
	}
	return backend, nil
}
