package notify

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Setup event types.
const (
	EventSetupReady         = "setup_ready"
	EventSetupFailed        = "setup_failed"
	EventWalletConnected    = "wallet_connected"
	EventWalletDisconnected = "wallet_disconnected"
)

// EventSink delivers one named event. *Notifier is an EventSink.
type EventSink interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SetupReporter turns setup status transitions into events. Only edges are
// reported: a status that repeats the previous step emits nothing.
type SetupReporter struct {
	notifier EventSink
	audit    domain.AuditStore
	logger   *slog.Logger
}

// NewSetupReporter creates a reporter. Either sink may be nil.
func NewSetupReporter(notifier EventSink, audit domain.AuditStore, logger *slog.Logger) *SetupReporter {
	return &SetupReporter{
		notifier: notifier,
		audit:    audit,
		logger:   logger.With(slog.String("component", "setup_reporter")),
	}
}

// Run consumes updates until ctx is done or the channel closes.
func (r *SetupReporter) Run(ctx context.Context, updates <-chan domain.SetupStatus) error {
	var prev domain.SetupStatus
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			r.report(ctx, prev, st)
			prev = st
		}
	}
}

func (r *SetupReporter) report(ctx context.Context, prev, st domain.SetupStatus) {
	switch {
	case st.IsWalletConnected && (!prev.IsWalletConnected || prev.WalletAddress != st.WalletAddress):
		r.emit(ctx, EventWalletConnected, "Wallet connected", st.WalletAddress, st)
	case !st.IsWalletConnected && prev.IsWalletConnected:
		r.emit(ctx, EventWalletDisconnected, "Wallet disconnected", prev.WalletAddress, st)
	}

	if st.CurrentStep == prev.CurrentStep {
		return
	}
	switch st.CurrentStep {
	case domain.StepReady:
		r.emit(ctx, EventSetupReady, "Ready to trade", st.WalletAddress, st)
	case domain.StepError:
		r.emit(ctx, EventSetupFailed, "Trading setup failed", st.Error, st)
	}
}

func (r *SetupReporter) emit(ctx context.Context, event, title, message string, st domain.SetupStatus) {
	if r.audit != nil {
		detail := map[string]any{
			"wallet":   st.WalletAddress,
			"chain_id": st.ChainID,
			"step":     string(st.CurrentStep),
		}
		if st.Error != "" {
			detail["error"] = st.Error
		}
		if err := r.audit.Log(ctx, event, detail); err != nil {
			r.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, event, title, message); err != nil {
			r.logger.WarnContext(ctx, "notification failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
