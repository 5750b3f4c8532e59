package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rainadr/service-fleet-commander/internal/models"
	"github.com/rainadr/service-fleet-commander/pkg/pubsub"
)

type testSubscriber struct {
	ch chan pubsub.Message
}

func (s *testSubscriber) Subscribe(ctx context.Context, channels ...string) (<-chan pubsub.Message, error) {
	return s.ch, nil
}

func (s *testSubscriber) Unsubscribe(ctx context.Context, channels ...string) error { return nil }

func (s *testSubscriber) Close() error { return nil }

func TestWatchConfigUpdates_RefreshesBotConfig(t *testing.T) {
	a := newTestWorker("A")
	uc, st := newTestUseCase(t, a)
	st.configs["A"] = &models.BotConfig{Nickname: "fresh"}

	sub := &testSubscriber{ch: make(chan pubsub.Message, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- uc.WatchConfigUpdates(ctx, sub)
	}()

	sub.ch <- pubsub.Message{
		Channel: pubsub.ChannelConfigUpdates,
		Payload: `{"event":"config_updated","bot":"A"}`,
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Config().Nickname != "fresh" {
		if time.Now().After(deadline) {
			t.Fatalf("config never refreshed, nickname %q", a.Config().Nickname)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWatchConfigUpdates_ClosedSubscriptionStopsWatcher(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"))

	sub := &testSubscriber{ch: make(chan pubsub.Message)}
	close(sub.ch)

	if err := uc.WatchConfigUpdates(context.Background(), sub); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestApplyConfigUpdate_IgnoresMalformedAndUnknownEvents(t *testing.T) {
	a := newTestWorker("A")
	a.cfg = &models.BotConfig{Nickname: "original"}
	uc, st := newTestUseCase(t, a)
	st.configs["A"] = &models.BotConfig{Nickname: "fresh"}

	log := uc.Logger.Component("config-watcher")

	uc.applyConfigUpdate(context.Background(), log, `{not json`)
	uc.applyConfigUpdate(context.Background(), log, `{"event":"config_updated","bot":"ghost"}`)

	if a.Config().Nickname != "original" {
		t.Fatalf("config changed by an event that should be ignored: %q", a.Config().Nickname)
	}
}

func TestApplyConfigUpdate_MissingStoreRowLeavesConfigAlone(t *testing.T) {
	a := newTestWorker("A")
	a.cfg = &models.BotConfig{Nickname: "original"}
	uc, _ := newTestUseCase(t, a)

	log := uc.Logger.Component("config-watcher")
	uc.applyConfigUpdate(context.Background(), log, `{"event":"config_updated","bot":"A"}`)

	if a.Config().Nickname != "original" {
		t.Fatal("config must not change when the store has no row")
	}
}
