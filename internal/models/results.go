package models

// CommandResult is the success/message pair a single bot reports for a
// lifecycle command.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// TwoFactorToken is a bot's answer to a token generation request.
type TwoFactorToken struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

// KeysResponse lists a bot's redemption-key ledger, split into keys not
// yet attempted and keys already consumed.
type KeysResponse struct {
	UnusedKeys map[string]string `json:"unused_keys"`
	UsedKeys   map[string]string `json:"used_keys"`
}

// BotStatus is the per-bot entry of the bot listing endpoint. Config is
// serialized with helper fields enabled.
type BotStatus struct {
	State  string     `json:"state"`
	Config *BotConfig `json:"config"`
}

// RedemptionStatus is the outcome class reported by the external
// redemption service.
type RedemptionStatus string

const (
	RedemptionOK          RedemptionStatus = "ok"
	RedemptionDuplicate   RedemptionStatus = "duplicate"
	RedemptionInvalidKey  RedemptionStatus = "invalid_key"
	RedemptionRateLimited RedemptionStatus = "rate_limited"
	RedemptionTimeout     RedemptionStatus = "timeout"
)

// RedemptionResult is what the redemption service reported for one key.
// A nil *RedemptionResult means the redemption was never attempted (for
// example the bot had no connected session) — a distinct outcome from an
// attempted-and-failed redemption, and the distinction is preserved all
// the way through aggregation.
type RedemptionResult struct {
	Status RedemptionStatus  `json:"status"`
	Items  map[string]string `json:"items,omitempty"`
}

// Succeeded reports whether the redemption was attempted and accepted.
func (r *RedemptionResult) Succeeded() bool {
	return r != nil && r.Status == RedemptionOK
}

// InputType identifies which pending-input slot a value is destined for.
type InputType string

const (
	InputLogin     InputType = "login"
	InputPassword  InputType = "password"
	InputTwoFactor InputType = "two_factor"
	InputSMSCode   InputType = "sms_code"
	InputDeviceID  InputType = "device_id"
)

// ValidInputType reports whether kind names a known input slot.
func ValidInputType(kind InputType) bool {
	switch kind {
	case InputLogin, InputPassword, InputTwoFactor, InputSMSCode, InputDeviceID:
		return true
	}
	return false
}
