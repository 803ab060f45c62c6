package geo

import "fmt"

// GeometryLoadError reports a layer that could not be read or whose features
// cannot be used as the requested geometry kind.
type GeometryLoadError struct {
	Layer string
	Err   error
}

func (e *GeometryLoadError) Error() string {
	return fmt.Sprintf("failed to load layer %q: %v", e.Layer, e.Err)
}

func (e *GeometryLoadError) Unwrap() error { return e.Err }

// ProjectionError reports a missing or unsupported CRS, or coordinates that
// cannot be transformed between two systems.
type ProjectionError struct {
	Layer  string
	From   CRS
	To     CRS
	Reason string
	Err    error
}

func (e *ProjectionError) Error() string {
	msg := fmt.Sprintf("projection %s -> %s", e.From, e.To)
	if e.Layer != "" {
		msg = fmt.Sprintf("layer %q: %s", e.Layer, msg)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProjectionError) Unwrap() error { return e.Err }
