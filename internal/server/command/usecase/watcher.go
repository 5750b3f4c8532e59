package usecase

import (
	"context"
	"encoding/json"

	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"github.com/rainadr/service-fleet-commander/pkg/pubsub"
)

// fleetEvent is the wire shape of messages on the fleet channels.
type fleetEvent struct {
	Event         string `json:"event"`
	Bot           string `json:"bot"`
	CorrelationID string `json:"correlation_id"`
}

// WatchConfigUpdates consumes config-update events and refreshes the
// affected bot's in-memory configuration from the store. With several
// commander instances sharing one database, an update applied on one
// instance reaches the others through this path; on the instance that
// published the update the refresh re-applies the config it already
// holds. Blocks until ctx is cancelled or the subscription closes.
func (uc *UseCase) WatchConfigUpdates(ctx context.Context, sub pubsub.Subscriber) error {
	ch, err := sub.Subscribe(ctx, pubsub.ChannelConfigUpdates)
	if err != nil {
		return err
	}

	log := uc.Logger.Component("config-watcher")
	log.Info("watching for config updates")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			uc.applyConfigUpdate(ctx, log, m.Payload)
		}
	}
}

func (uc *UseCase) applyConfigUpdate(ctx context.Context, log *logger.CanonicalLogger, payload string) {
	var ev fleetEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.WithError(err).Warn("dropping malformed fleet event")
		return
	}

	w, ok := uc.Registry.Get(ev.Bot)
	if !ok {
		return
	}
	cfg, ok := uc.Store.Read(ctx, ev.Bot)
	if !ok {
		return
	}

	w.SetConfig(cfg)
	log.WithBot(w.Name()).Info("config refreshed from store",
		logger.String(logger.FieldCorrelationID, ev.CorrelationID))
}
