package datagrid

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDependency is returned when a manager is constructed
	// without its router or markup collaborator.
	ErrMissingDependency = errors.New("datagrid: missing required dependency")

	// ErrDuplicateGrid is returned when a grid name is registered twice.
	ErrDuplicateGrid = errors.New("datagrid: grid already registered")

	// ErrNoSource is returned by Refresh when neither the options nor the
	// markup name a data source.
	ErrNoSource = errors.New("datagrid: grid has no data source")

	// ErrInvalidNumber is returned by the throttle and threshold setters.
	ErrInvalidNumber = errors.New("datagrid: invalid numeric value")
)

// FetchError describes a failed data fetch.
type FetchError struct {
	Grid   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Grid, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Grid, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
