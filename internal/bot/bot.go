// Package bot holds the reference worker implementation the commander
// dispatches against: a named instance owning private mutable state (its
// configuration, redemption-key ledger, pending inputs, and run-state).
// The dispatch layer never reaches into this state directly — it only
// drives the operation surface and the bot enforces its own state
// machine.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rainadr/service-fleet-commander/internal/models"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
	"github.com/rainadr/service-fleet-commander/pkg/retry"
)

// Run states. A temporary pause auto-resumes when its timer fires; a
// permanent pause waits for an explicit resume.
const (
	StateStopped         = "stopped"
	StateRunning         = "running"
	StatePausedTemporary = "paused_temporary"
	StatePausedPermanent = "paused_permanent"
)

// Redeemer submits a key to the external validation service on behalf of
// a bot. A nil result means the redemption was never attempted.
type Redeemer interface {
	Redeem(ctx context.Context, botName, key string) *models.RedemptionResult
}

// Dialer establishes a bot's backing session after start. The default
// dialer succeeds immediately; tests and alternative transports inject
// their own.
type Dialer func(ctx context.Context) error

// Bot is one independently managed worker instance.
type Bot struct {
	mu sync.Mutex

	name      string
	cfg       *models.BotConfig
	state     string
	connected bool

	usedKeys   map[string]string
	unusedKeys map[string]string
	inputs     map[models.InputType]string

	pendingConfirmations int

	resumeTimer *time.Timer

	redeemer Redeemer
	dialer   Dialer
	baseLog  *logger.CanonicalLogger
	log      *logger.CanonicalLogger
	nowFunc  func() time.Time
}

// Option configures a Bot at construction time.
type Option func(*Bot)

func WithRedeemer(r Redeemer) Option {
	return func(b *Bot) { b.redeemer = r }
}

func WithDialer(d Dialer) Option {
	return func(b *Bot) { b.dialer = d }
}

// WithNowFunc lets tests control token-generation time.
func WithNowFunc(now func() time.Time) Option {
	return func(b *Bot) { b.nowFunc = now }
}

func New(name string, cfg *models.BotConfig, log *logger.CanonicalLogger, opts ...Option) *Bot {
	if cfg == nil {
		cfg = &models.BotConfig{}
	}
	b := &Bot{
		name:       name,
		cfg:        cfg,
		state:      StateStopped,
		usedKeys:   make(map[string]string),
		unusedKeys: make(map[string]string),
		inputs:     make(map[models.InputType]string),
		dialer:     func(ctx context.Context) error { return nil },
		baseLog:    log,
		log:        log.WithBot(name),
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bot) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *Bot) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connected reports whether the bot has an established session.
func (b *Bot) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Bot) Config() *models.BotConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Clone()
}

func (b *Bot) SetConfig(cfg *models.BotConfig) {
	if cfg == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg.Clone()
}

// Start brings a stopped bot up and kicks off session establishment in
// the background. Session bring-up retries with backoff and never blocks
// the command.
func (b *Bot) Start() (bool, string) {
	b.mu.Lock()
	if b.state != StateStopped {
		state := b.state
		b.mu.Unlock()
		return false, fmt.Sprintf("Bot %s is already %s", b.name, state)
	}
	b.state = StateRunning
	dialer := b.dialer
	b.mu.Unlock()

	go b.establishSession(dialer)

	return true, fmt.Sprintf("Bot %s started", b.name)
}

func (b *Bot) establishSession(dial Dialer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := retry.Do(ctx, retry.Config{
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		OnRetry: func(attempt int, err error) {
			b.log.WithError(err).Warn("session attempt failed", logger.Int("attempt", attempt))
		},
	}, retry.Operation(dial))

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateStopped {
		// Stopped while dialing; stay disconnected.
		return
	}
	if err != nil {
		b.log.WithError(err).Error("session establishment failed")
		return
	}
	b.connected = true
	b.log.Info("session established")
}

func (b *Bot) Stop() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateStopped {
		return false, fmt.Sprintf("Bot %s is already stopped", b.name)
	}

	b.cancelResumeTimerLocked()
	b.state = StateStopped
	b.connected = false
	return true, fmt.Sprintf("Bot %s stopped", b.name)
}

// Pause suspends a running bot. With permanent false and resumeIn > 0 the
// bot resumes itself once the duration elapses; a permanent pause holds
// until an explicit Resume.
func (b *Bot) Pause(permanent bool, resumeIn time.Duration) (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StatePausedTemporary, StatePausedPermanent:
		return false, fmt.Sprintf("Bot %s is already paused", b.name)
	case StateStopped:
		return false, fmt.Sprintf("Bot %s is not running", b.name)
	}

	if permanent {
		b.state = StatePausedPermanent
		return true, fmt.Sprintf("Bot %s paused until resumed manually", b.name)
	}

	b.state = StatePausedTemporary
	if resumeIn > 0 {
		b.resumeTimer = time.AfterFunc(resumeIn, func() {
			b.Resume()
		})
		return true, fmt.Sprintf("Bot %s paused, resuming in %s", b.name, resumeIn)
	}
	return true, fmt.Sprintf("Bot %s paused", b.name)
}

func (b *Bot) Resume() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StatePausedTemporary && b.state != StatePausedPermanent {
		return false, fmt.Sprintf("Bot %s is not paused", b.name)
	}

	b.cancelResumeTimerLocked()
	b.state = StateRunning
	return true, fmt.Sprintf("Bot %s resumed", b.name)
}

func (b *Bot) cancelResumeTimerLocked() {
	if b.resumeTimer != nil {
		b.resumeTimer.Stop()
		b.resumeTimer = nil
	}
}

// DeleteAllFiles wipes the bot's private state: key ledger, pending
// inputs, and pending confirmations. Persisted configuration removal is
// the store's job, not the bot's.
func (b *Bot) DeleteAllFiles() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.usedKeys = make(map[string]string)
	b.unusedKeys = make(map[string]string)
	b.inputs = make(map[models.InputType]string)
	b.pendingConfirmations = 0
	return true
}

func (b *Bot) UsedAndUnusedKeys() (map[string]string, map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyKeys(b.usedKeys), copyKeys(b.unusedKeys)
}

// AddBackgroundKeys queues keys for later redemption. Keys already in the
// used ledger are not re-queued.
func (b *Bot) AddBackgroundKeys(keys map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, note := range keys {
		if _, used := b.usedKeys[key]; used {
			continue
		}
		b.unusedKeys[key] = note
	}
}

// RedeemKey submits one key to the redemption service. Returns nil — the
// never-attempted outcome — when the bot has no connected session or no
// redeemer is configured. Whether a nil result also covers timeouts is
// owned by the redemption service, not decided here.
func (b *Bot) RedeemKey(ctx context.Context, key string) *models.RedemptionResult {
	b.mu.Lock()
	if !b.connected || b.state != StateRunning || b.redeemer == nil {
		b.mu.Unlock()
		return nil
	}
	name := b.name
	redeemer := b.redeemer
	b.mu.Unlock()

	result := redeemer.Redeem(ctx, name, key)

	if result.Succeeded() {
		b.mu.Lock()
		note, queued := b.unusedKeys[key]
		if queued {
			delete(b.unusedKeys, key)
		}
		b.usedKeys[key] = note
		b.mu.Unlock()
	}
	return result
}

func (b *Bot) SetInput(kind models.InputType, value string) bool {
	if !models.ValidInputType(kind) || value == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs[kind] = value
	return true
}

// GenerateTwoFactorToken computes the current TOTP code from the bot's
// configured shared secret.
func (b *Bot) GenerateTwoFactorToken() (bool, string, string) {
	b.mu.Lock()
	secret := b.cfg.TOTPSecret
	now := b.nowFunc()
	b.mu.Unlock()

	if secret == "" {
		return false, "", fmt.Sprintf("Bot %s has no two-factor secret configured", b.Name())
	}

	token, err := totp.GenerateCode(secret, now)
	if err != nil {
		return false, "", fmt.Sprintf("token generation failed: %v", err)
	}
	return true, token, "Token generated"
}

// HandleTwoFactorConfirmations accepts or denies every pending
// confirmation.
func (b *Bot) HandleTwoFactorConfirmations(ctx context.Context, accept bool) (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return false, fmt.Sprintf("Bot %s is not connected", b.name)
	}

	handled := b.pendingConfirmations
	b.pendingConfirmations = 0

	verb := "Accepted"
	if !accept {
		verb = "Denied"
	}
	return true, fmt.Sprintf("%s %d confirmations", verb, handled)
}

// AddPendingConfirmation queues a confirmation awaiting operator review.
func (b *Bot) AddPendingConfirmation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingConfirmations++
}

// Rename changes the bot's own name. Registry-level uniqueness and
// persistence are the registry's responsibility; the bot only rejects
// empty names.
func (b *Bot) Rename(newName string) bool {
	if newName == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = newName
	b.log = b.baseLog.WithBot(newName)
	return true
}

func copyKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
