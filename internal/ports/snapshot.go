// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// SnapshotLoader supplies the full cohort of agent metrics for one ranking
// request. Implementations own persistence; the ranking engine treats the
// returned slice as an immutable snapshot.
type SnapshotLoader interface {
	// LoadCohort returns one AgentMetric per agent. The order is irrelevant;
	// duplicate agent IDs are an implementation defect.
	//
	// Any timeout or retry policy for the underlying data source belongs
	// here, not in the engine.
	LoadCohort(ctx context.Context) ([]domain.AgentMetric, error)

	// Name identifies the loader in logs and traces.
	Name() string
}

// ChangeNotifier signals that the underlying metrics changed, so that any
// cached rankings derived from the previous snapshot can be dropped.
type ChangeNotifier interface {
	// WaitForChange blocks until the data source reports a change or ctx is
	// done. It returns a short description of the change (may be empty).
	WaitForChange(ctx context.Context) (string, error)
}
