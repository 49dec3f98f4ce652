package event

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

// Dispatcher delivers notifications to a human-facing channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// BusDispatcher publishes notifications as [NotificationEvent]s.
type BusDispatcher struct {
	bus *Bus
}

// NewBusDispatcher creates a dispatcher publishing on bus.
func NewBusDispatcher(bus *Bus) *BusDispatcher {
	return &BusDispatcher{bus: bus}
}

// Dispatch publishes n.
func (d *BusDispatcher) Dispatch(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.bus.Publish(NewNotificationEvent(n))
	return nil
}

// WriterDispatcher writes each notification as one JSON line.
type WriterDispatcher struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterDispatcher creates a dispatcher writing JSON lines to w.
func NewWriterDispatcher(w io.Writer) *WriterDispatcher {
	return &WriterDispatcher{enc: json.NewEncoder(w)}
}

// Dispatch writes n.
func (d *WriterDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enc.Encode(n); err != nil {
		return errors.Wrap(err, "write notification")
	}
	return nil
}

// MultiDispatcher fans a notification out to every dispatcher. All of them
// are tried; their errors are joined.
type MultiDispatcher []Dispatcher

// Dispatch delivers n to each dispatcher.
func (m MultiDispatcher) Dispatch(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
