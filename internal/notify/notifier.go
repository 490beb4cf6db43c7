// Package notify forwards selected simulator events to chat channels
// (Telegram, Discord). Events are filtered by type so operators receive only
// the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Notify only
// forwards event types in the allowed set; NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders. An empty events list
// allows every event type.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify sends a notification if the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// Handle turns a bus event into a notification. Trades are only announced
// when they are corrective, since user and random trades are routine.
func (n *Notifier) Handle(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.ArbitrageOpportunity:
		return n.Notify(ctx, string(e.Topic()), "Arbitrage opportunity",
			fmt.Sprintf("%s: pool %.6f vs market %.6f (%.2f%%)", e.Direction, e.PoolPrice, e.MarketPrice, e.Percentage))
	case domain.TradeExecuted:
		if e.Origin != domain.TradeOriginArbitrage {
			return nil
		}
		return n.Notify(ctx, string(e.Topic()), "Arbitrage trade executed",
			fmt.Sprintf("%.6f %s -> %.6f %s, pool price %.6f -> %.6f",
				e.AmountIn, e.From, e.AmountOut, e.To, e.PoolBefore.Price(), e.PoolAfter.Price()))
	case domain.PoolUpdated:
		msg := fmt.Sprintf("%d providers, reserves %.6f ETH / %.6f BTC", len(e.Pool.Users), e.Pool.EthReserve, e.Pool.BtcReserve)
		if e.User != nil {
			msg = fmt.Sprintf("provider %s (%.6f ETH, %.6f BTC); %s", e.User.ID, e.User.EthDeposit, e.User.BtcDeposit, msg)
		}
		return n.Notify(ctx, string(e.Topic()), "Pool "+strings.ReplaceAll(string(e.Action), "_", " "), msg)
	}
	return nil
}

// dispatch sends to every sender. A single sender failure does not prevent
// delivery to the rest; failures are combined into one error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
