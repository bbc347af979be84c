package telegram

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const pollTimeout = 30 // seconds, long polling

// Poller pulls updates from the Telegram API and feeds them to the handler.
type Poller struct {
	client  *Client
	handler *Handler
	offset  int64
}

func NewPoller(client *Client, handler *Handler) *Poller {
	return &Poller{client: client, handler: handler}
}

// Run polls until the context is cancelled. Transient API errors are logged
// and retried after a short backoff.
func (p *Poller) Run(ctx context.Context) {
	logrus.Info("Telegram poller started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Telegram poller stopped")
			return
		default:
		}

		updates, err := p.client.GetUpdates(p.offset, pollTimeout)
		if err != nil {
			logrus.WithError(err).Error("Failed to get updates")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= p.offset {
				p.offset = upd.UpdateID + 1
			}
			p.handler.Handle(ctx, upd)
		}
	}
}
