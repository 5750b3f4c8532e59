package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rainadr/service-fleet-commander/internal/fleet"
	"github.com/rainadr/service-fleet-commander/internal/models"
	"github.com/rainadr/service-fleet-commander/internal/store"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"github.com/rainadr/service-fleet-commander/pkg/pubsub"
	"github.com/rainadr/service-fleet-commander/pkg/wrapper"
	"go.uber.org/zap"
)

// UseCase implements every fleet command: resolve the target set once,
// dispatch the operation concurrently, aggregate the per-bot results into
// one envelope. No error from one bot's operation ever prevents delivery
// of the other bots' results.
type UseCase struct {
	Registry *fleet.Registry
	Store    store.Store
	Pub      pubsub.Publisher
	Logger   *logger.CanonicalLogger
}

type UseCaseInterface interface {
	Start(ctx context.Context, targets string) wrapper.JSONResult
	Stop(ctx context.Context, targets string) wrapper.JSONResult
	Pause(ctx context.Context, targets string, permanent bool, resumeInSeconds *int) wrapper.JSONResult
	Resume(ctx context.Context, targets string) wrapper.JSONResult
	Reset(ctx context.Context, targets string) wrapper.JSONResult
	Keys(ctx context.Context, targets string) wrapper.JSONResult
	AddKeys(ctx context.Context, targets string, keys map[string]string) wrapper.JSONResult
	Input(ctx context.Context, targets string, kind string, value string) wrapper.JSONResult
	Redeem(ctx context.Context, targets string, keys []string) wrapper.JSONResult
	TwoFactorToken(ctx context.Context, targets string) wrapper.JSONResult
	TwoFactorConfirmations(ctx context.Context, targets string, accept bool) wrapper.JSONResult
	ListBots(ctx context.Context, targets string) wrapper.JSONResult
	UpdateConfig(ctx context.Context, targets string, rawConfig []byte) wrapper.JSONResult
	DeleteBots(ctx context.Context, targets string) wrapper.JSONResult
	RenameBot(ctx context.Context, oldName, newName string) wrapper.JSONResult
}

func NewUseCase(uc UseCase) *UseCase {
	return &uc
}

// resolveTargets turns the name specification into a target set, mapping
// the two resolution failure classes onto their response codes: empty
// input is a validation error, zero matches is not-found. Both mean
// nothing happened.
func (uc *UseCase) resolveTargets(ctx context.Context, spec string) ([]fleet.Worker, *wrapper.JSONResult) {
	targets, err := uc.Registry.Resolve(spec)
	if err != nil {
		logger.AddToContext(ctx, zap.Error(err))
		var res wrapper.JSONResult
		switch {
		case errors.Is(err, fleet.ErrNoInput):
			res = wrapper.ResponseFailed(http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, fleet.ErrNoneFound):
			res = wrapper.ResponseFailed(http.StatusNotFound, err.Error(), nil)
		default:
			res = wrapper.ResponseFailed(http.StatusInternalServerError, err.Error(), nil)
		}
		return nil, &res
	}

	names := make([]string, len(targets))
	for i, w := range targets {
		names[i] = w.Name()
	}
	logger.AddToContext(ctx,
		zap.Int(logger.FieldTargetCount, len(targets)),
		logger.Strings("resolved_bots", names),
	)
	return targets, nil
}

func (uc *UseCase) Start(ctx context.Context, targets string) wrapper.JSONResult {
	return uc.lifecycleCommand(ctx, targets, "start", func(w fleet.Worker) (bool, string) {
		return w.Start()
	})
}

func (uc *UseCase) Stop(ctx context.Context, targets string) wrapper.JSONResult {
	return uc.lifecycleCommand(ctx, targets, "stop", func(w fleet.Worker) (bool, string) {
		return w.Stop()
	})
}

func (uc *UseCase) Resume(ctx context.Context, targets string) wrapper.JSONResult {
	return uc.lifecycleCommand(ctx, targets, "resume", func(w fleet.Worker) (bool, string) {
		return w.Resume()
	})
}

func (uc *UseCase) Pause(ctx context.Context, targets string, permanent bool, resumeInSeconds *int) wrapper.JSONResult {
	var resumeIn time.Duration
	if resumeInSeconds != nil {
		resumeIn = time.Duration(*resumeInSeconds) * time.Second
	}
	return uc.lifecycleCommand(ctx, targets, "pause", func(w fleet.Worker) (bool, string) {
		return w.Pause(permanent, resumeIn)
	})
}

// lifecycleCommand is the shared shape of start/stop/pause/resume: a
// keyed map of per-bot results with the overall AND as envelope success.
func (uc *UseCase) lifecycleCommand(ctx context.Context, targets, command string, op func(fleet.Worker) (bool, string)) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, command))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) models.CommandResult {
		success, message := op(w)
		if success {
			uc.publishEvent(ctx, command, w.Name())
		}
		return models.CommandResult{Success: success, Message: message}
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	overall := fleet.CombineStatuses(results)
	return wrapper.ResponseAggregated(http.StatusOK, overall.Success, overall.Message, fleet.StatusByName(results))
}

func (uc *UseCase) Reset(ctx context.Context, targets string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "reset"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) bool {
		return w.DeleteAllFiles()
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	byName, overall := fleet.BoolByName(results)
	return wrapper.ResponseAggregated(http.StatusOK, overall, "", byName)
}

func (uc *UseCase) Keys(ctx context.Context, targets string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "keys"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) models.KeysResponse {
		used, unused := w.UsedAndUnusedKeys()
		return models.KeysResponse{UsedKeys: used, UnusedKeys: unused}
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	return wrapper.ResponseSuccess(http.StatusOK, fleet.ByName(results))
}

func (uc *UseCase) AddKeys(ctx context.Context, targets string, keys map[string]string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "add_keys"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) bool {
		w.AddBackgroundKeys(keys)
		return true
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	byName, overall := fleet.BoolByName(results)
	return wrapper.ResponseAggregated(http.StatusOK, overall, "", byName)
}

func (uc *UseCase) Input(ctx context.Context, targets string, kind string, value string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "input"))

	inputType := models.InputType(kind)
	if !models.ValidInputType(inputType) {
		return wrapper.ResponseFailed(http.StatusBadRequest, fmt.Sprintf("unknown input type %q", kind), nil)
	}

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) bool {
		return w.SetInput(inputType, value)
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	byName, overall := fleet.BoolByName(results)
	return wrapper.ResponseAggregated(http.StatusOK, overall, "", byName)
}

func (uc *UseCase) Redeem(ctx context.Context, targets string, keys []string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "redeem"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) map[string]*models.RedemptionResult {
		cells := make(map[string]*models.RedemptionResult, len(keys))
		for _, key := range keys {
			cells[key] = w.RedeemKey(ctx, key)
		}
		return cells
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	grid, overall := fleet.GridByName(results)
	return wrapper.ResponseAggregated(http.StatusOK, overall, "", grid)
}

func (uc *UseCase) TwoFactorToken(ctx context.Context, targets string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "two_factor_token"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) models.TwoFactorToken {
		success, token, message := w.GenerateTwoFactorToken()
		return models.TwoFactorToken{Success: success, Token: token, Message: message}
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	overall := true
	for _, r := range results {
		if !r.Value.Success {
			overall = false
		}
	}
	return wrapper.ResponseAggregated(http.StatusOK, overall, "", fleet.ByName(results))
}

func (uc *UseCase) TwoFactorConfirmations(ctx context.Context, targets string, accept bool) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "two_factor_confirmations"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) models.CommandResult {
		success, message := w.HandleTwoFactorConfirmations(ctx, accept)
		return models.CommandResult{Success: success, Message: message}
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	overall := fleet.CombineStatuses(results)
	return wrapper.ResponseAggregated(http.StatusOK, overall.Success, overall.Message, fleet.StatusByName(results))
}

func (uc *UseCase) ListBots(ctx context.Context, targets string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "list_bots"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) models.BotStatus {
		cfg := w.Config()
		cfg.SerializeHelperFields = true
		return models.BotStatus{State: w.State(), Config: cfg}
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	return wrapper.ResponseSuccess(http.StatusOK, fleet.ByName(results))
}

// UpdateConfig applies a bulk configuration update. A fresh copy of the
// incoming document is decoded per target so pointer-tracked presence and
// extension maps are never shared between targets, then merged against
// that target's existing configuration and persisted. A failed persist
// marks that target false and the rest continue.
func (uc *UseCase) UpdateConfig(ctx context.Context, targets string, rawConfig []byte) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "update_config"))

	var probe models.BotConfig
	if err := json.Unmarshal(rawConfig, &probe); err != nil {
		return wrapper.ResponseFailed(http.StatusBadRequest, err.Error(), nil)
	}

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	results, err := fleet.DispatchValue(ctx, set, func(ctx context.Context, w fleet.Worker) bool {
		incoming := new(models.BotConfig)
		if err := json.Unmarshal(rawConfig, incoming); err != nil {
			return false
		}

		merged := fleet.MergeConfigs(incoming, w.Config())
		if !uc.Store.Write(ctx, w.Name(), merged) {
			return false
		}
		w.SetConfig(merged)
		uc.publishConfigUpdate(ctx, w.Name())
		return true
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusRequestTimeout, err.Error(), nil)
	}

	byName, overall := fleet.BoolByName(results)
	return wrapper.ResponseAggregated(http.StatusOK, overall, "", byName)
}

// DeleteBots removes the addressed bots from the registry and their
// persisted configuration. Registry mutation must not overlap a dispatch
// cycle iterating it, so this runs sequentially over the upfront-resolved
// target set rather than through the dispatcher.
func (uc *UseCase) DeleteBots(ctx context.Context, targets string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "delete_bots"))

	set, fail := uc.resolveTargets(ctx, targets)
	if fail != nil {
		return *fail
	}

	byName := make(map[string]bool, len(set))
	overall := true
	for _, w := range set {
		name := w.Name()
		w.Stop()
		removed := uc.Registry.Remove(name)
		deleted := uc.Store.Delete(ctx, name)
		ok := removed && deleted
		byName[name] = ok
		if ok {
			uc.publishEvent(ctx, "deleted", name)
		} else {
			overall = false
		}
	}

	return wrapper.ResponseAggregated(http.StatusOK, overall, "", byName)
}

// RenameBot renames exactly one bot. Conflicts are rejected before any
// state mutation.
func (uc *UseCase) RenameBot(ctx context.Context, oldName, newName string) wrapper.JSONResult {
	logger.AddToContext(ctx, zap.String(logger.FieldCommand, "rename_bot"), zap.String(logger.FieldBotName, oldName))

	if _, ok := uc.Registry.Get(oldName); !ok {
		return wrapper.ResponseFailed(http.StatusNotFound, fmt.Sprintf("bot %q is not registered", oldName), nil)
	}

	err := uc.Registry.Rename(oldName, newName, func(from, to string) bool {
		return uc.Store.Rename(ctx, from, to)
	})
	if err != nil {
		return wrapper.ResponseFailed(http.StatusConflict, err.Error(), nil)
	}

	uc.publishEvent(ctx, "renamed", newName)
	return wrapper.ResponseSuccess(http.StatusOK, map[string]string{"name": newName})
}

// publishEvent emits a bot lifecycle event, best-effort. Publication
// failures never fail the command.
func (uc *UseCase) publishEvent(ctx context.Context, event, botName string) {
	uc.publish(ctx, pubsub.ChannelBotEvents, event, botName)
}

func (uc *UseCase) publishConfigUpdate(ctx context.Context, botName string) {
	uc.publish(ctx, pubsub.ChannelConfigUpdates, "config_updated", botName)
}

func (uc *UseCase) publish(ctx context.Context, channel, event, botName string) {
	if uc.Pub == nil {
		return
	}

	correlationID := uuid.Must(uuid.NewV7()).String()
	payload, err := json.Marshal(map[string]string{
		"event":          event,
		"bot":            botName,
		"correlation_id": correlationID,
	})
	if err != nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := uc.Pub.Publish(pubCtx, channel, string(payload)); err != nil {
		uc.Logger.WithBot(botName).WithError(err).Warn("failed to publish fleet event",
			logger.String("event", event),
			logger.String(logger.FieldCorrelationID, correlationID),
		)
	}
}
