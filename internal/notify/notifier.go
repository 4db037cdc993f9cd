// Package notify fans operator alerts out to chat channels. Order and setup
// events are filtered by type so operators only get the alerts they asked for.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches events to every Sender.
type Notifier struct {
	senders []Sender
	allow   func(event string) bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier forwarding the listed event types. An
// empty list forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	n := &Notifier{
		senders: senders,
		allow:   func(string) bool { return true },
		logger:  logger.With(slog.String("component", "notifier")),
	}
	set := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			set[e] = struct{}{}
		}
	}
	if len(set) > 0 {
		n.allow = func(event string) bool {
			_, ok := set[event]
			return ok
		}
	}
	return n
}

func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify delivers an event unless it is filtered out.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.allow(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.NotifyAll(ctx, title, message)
}

// NotifyAll delivers to every sender regardless of the filter. Senders run
// concurrently and a failing sender does not stop the others.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	errs := make([]error, len(n.senders))
	var wg sync.WaitGroup
	for i, s := range n.senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Send(ctx, title, message); err != nil {
				n.logger.ErrorContext(ctx, "sender failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()),
				)
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
