package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"budgetsim/internal/log"
)

// DefaultPollInterval matches what browser clients fall back to.
const DefaultPollInterval = 3 * time.Second

// Poller is the pull transport: it re-reads the family list on a fixed
// interval and offers each read to the subscriber.
type Poller struct {
	lister   Lister
	interval time.Duration
	buffer   int
	logger   *log.Logger
}

func NewPoller(lister Lister, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Poller{
		lister:   lister,
		interval: interval,
		buffer:   1,
		logger:   logger.WithComponent(log.ComponentBroadcast),
	}
}

// Subscribe loads the first snapshot synchronously so callers see load errors
// immediately. Later load errors are logged and the poll continues.
func (p *Poller) Subscribe(ctx context.Context) (*Subscription, error) {
	families, err := p.lister.ListFamilies(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan Snapshot, p.buffer)
	ch <- Snapshot{Data: families}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{ID: uuid.NewString(), C: ch, cancel: cancel}

	go func() {
		defer close(ch)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				families, err := p.lister.ListFamilies(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					p.logger.Warn("poll failed", log.FieldSubscriber, sub.ID, log.FieldError, err)
					continue
				}
				offer(ch, Snapshot{Data: families})
			}
		}
	}()

	return sub, nil
}
