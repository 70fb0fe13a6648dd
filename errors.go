package jobengine

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrConfiguration is matched by every registration-time failure.
	ErrConfiguration = errors.New("jobengine: configuration error")

	// Contract errors.
	ErrNotAssetContext = errors.New("jobengine: type is not an asset context")
	ErrNotQueue        = errors.New("jobengine: type is not a queue")
	ErrNotExecutor     = errors.New("jobengine: type is not a job executor")
	ErrNotHook         = errors.New("jobengine: type implements no event hook")

	// Registry errors.
	ErrNotRegistered      = errors.New("jobengine: capability not registered")
	ErrCircularDependency = errors.New("jobengine: circular dependency")

	// Dispatch errors.
	ErrNoExecutor  = errors.New("jobengine: no executor registered for job")
	ErrQueueClosed = errors.New("jobengine: queue closed")
	ErrDLQNotFound = errors.New("jobengine: dead letter entry not found")

	// Asset errors.
	ErrAssetExists    = errors.New("jobengine: asset already exists")
	ErrAssetNotFound  = errors.New("jobengine: asset not found")
	ErrUnmanagedAsset = errors.New("jobengine: asset type not managed by context")
)

// ConfigError reports a type that failed registration. It matches both its
// cause and ErrConfiguration with errors.Is.
type ConfigError struct {
	Op   string
	Type reflect.Type
	Err  error
}

// NewConfigError builds a ConfigError for op on t.
func NewConfigError(op string, t reflect.Type, err error) *ConfigError {
	return &ConfigError{Op: op, Type: t, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Type, e.Err)
}

// Unwrap exposes the cause and the ErrConfiguration class.
func (e *ConfigError) Unwrap() []error {
	return []error{e.Err, ErrConfiguration}
}
