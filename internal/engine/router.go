package engine

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
)

// recordingRouter appends every fragment written to the router to the
// store's history.
type recordingRouter struct {
	datagrid.Router
	store  state.Store
	origin state.Origin
	logger *slog.Logger
}

func (r *recordingRouter) Navigate(fragment string, trigger bool) {
	r.Router.Navigate(fragment, trigger)
	if _, err := r.store.RecordFragment(context.Background(), r.origin, r.Router.Fragment()); err != nil {
		r.logger.Warn("failed to record fragment", "fragment", fragment, "error", err)
	}
}
