// Package broadcast delivers the current family list to observers. Hub pushes
// a snapshot after every change; Poller re-reads on an interval for clients
// that cannot hold a live connection. Both satisfy Source and hand out the
// same Snapshot shape.
package broadcast

import (
	"context"
	"errors"
	"sync"

	"budgetsim/internal/core"
)

// ErrClosed is returned by Subscribe after the source has shut down.
var ErrClosed = errors.New("broadcast source closed")

// Lister loads the full family table.
type Lister interface {
	ListFamilies(ctx context.Context) ([]core.Family, error)
}

// Snapshot is the payload every observer receives. It marshals as {"data":[...]}.
type Snapshot struct {
	Data []core.Family `json:"data"`
}

// Source is the one subscription contract shared by push and pull transports.
type Source interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Subscription is a live handle. C receives snapshots, starting with the
// current state, and is closed when the subscription ends.
type Subscription struct {
	ID string
	C  <-chan Snapshot

	once   sync.Once
	cancel func()
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// offer delivers snap without blocking. When the buffer is full the oldest
// queued snapshot is dropped, since the newest one supersedes it. Returns
// false if snap itself could not be queued.
func offer(ch chan Snapshot, snap Snapshot) (delivered, droppedOld bool) {
	select {
	case ch <- snap:
		return true, false
	default:
	}
	select {
	case <-ch:
		droppedOld = true
	default:
	}
	select {
	case ch <- snap:
		return true, droppedOld
	default:
		return false, droppedOld
	}
}
