package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

// Channel is a named sender so failures can be attributed.
type Channel struct {
	Name   string
	Sender ports.AlertSender
}

// Fanout delivers each alert to every channel. One failing channel does not
// stop the others.
type Fanout struct {
	channels []Channel
	logger   *slog.Logger
}

var _ ports.AlertSender = (*Fanout)(nil)

// NewFanout drops channels without a sender.
func NewFanout(log *slog.Logger, channels ...Channel) *Fanout {
	kept := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Sender != nil {
			kept = append(kept, ch)
		}
	}
	return &Fanout{channels: kept, logger: logger.Component(log, "alert.fanout")}
}

// Len reports how many channels are configured.
func (f *Fanout) Len() int {
	return len(f.channels)
}

// Send returns the joined errors of the failing channels.
func (f *Fanout) Send(ctx context.Context, a domain.Alert) error {
	var errs []error
	for _, ch := range f.channels {
		if err := ch.Sender.Send(ctx, a); err != nil {
			f.logger.Warn("alert channel failed", "channel", ch.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		f.logger.Info("alert sent", "channel", ch.Name, "source", a.Source, "class", a.ThreatClass)
	}
	return errors.Join(errs...)
}
