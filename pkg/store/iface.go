package store

import "github.com/daviddao/lamportpair/pkg/model"

// Journaler is the set of journal operations the sinks and the CLI depend
// on. *Store implements it; tests can substitute an in-memory fake.
type Journaler interface {
	Close() error

	// CreateRun records the start of a driver run.
	CreateRun(actors, iterations int) (*model.Run, error)

	// FinishRun stamps a run's finish time.
	FinishRun(id string) error

	// GetRun retrieves a run by id.
	GetRun(id string) (*model.Run, error)

	// LatestRun returns the most recently started run.
	LatestRun() (*model.Run, error)

	// ListRuns returns runs newest first.
	ListRuns(limit int) ([]model.Run, error)

	// InsertNotification appends a notification. Returns the row id.
	InsertNotification(n *model.Notification) (int64, error)

	// ListNotifications returns a run's notifications in journal order.
	ListNotifications(runID string, limit int) ([]model.Notification, error)

	// CountNotifications counts a run's notifications of one kind.
	CountNotifications(runID string, kind model.NotificationKind) (int64, error)
}

var _ Journaler = (*Store)(nil)
