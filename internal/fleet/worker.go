// Package fleet implements the dispatch core of the commander: the
// registry of named bots, target resolution, concurrent per-target
// dispatch with positional result correspondence, result aggregation, and
// the per-target configuration merge policy.
package fleet

import (
	"context"
	"time"

	"github.com/rainadr/service-fleet-commander/internal/models"
)

// Worker is the operation surface one bot exposes to the dispatch layer.
// The dispatcher drives these operations but never enforces the bot's
// state machine — that lives behind the implementation.
type Worker interface {
	Name() string
	State() string

	Config() *models.BotConfig
	SetConfig(cfg *models.BotConfig)

	Start() (bool, string)
	Stop() (bool, string)
	Pause(permanent bool, resumeIn time.Duration) (bool, string)
	Resume() (bool, string)

	DeleteAllFiles() bool
	UsedAndUnusedKeys() (used map[string]string, unused map[string]string)
	AddBackgroundKeys(keys map[string]string)
	RedeemKey(ctx context.Context, key string) *models.RedemptionResult

	SetInput(kind models.InputType, value string) bool
	GenerateTwoFactorToken() (success bool, token string, message string)
	HandleTwoFactorConfirmations(ctx context.Context, accept bool) (bool, string)

	Rename(newName string) bool
}
