// Package status pushes commit queue status events to external sinks, e.g.
// for dashboards.
package status

import (
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

// Names of the events.
const (
	EventInitial = "initial"
	EventWhyNot  = "why not"
	EventCommit  = "commit"
	EventAbort   = "abort"
)

// Event is a status change of a pending commit.
type Event struct {
	Name      string    `json:"name"`
	Issue     int       `json:"issue"`
	Patchset  int       `json:"patchset"`
	Owner     string    `json:"owner"`
	Message   string    `json:"message,omitempty"`
	Revision  string    `json:"revision,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Event) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("status.event", e.Name),
		logfields.Issue(e.Issue),
		logfields.Patchset(e.Patchset),
	}
}
