package dto

// PauseRequest suspends the addressed bots. ResumeInSeconds only applies
// to non-permanent pauses; nil means no auto-resume.
type PauseRequest struct {
	Permanent       bool `json:"permanent"`
	ResumeInSeconds *int `json:"resume_in_seconds,omitempty" validate:"omitempty,min=1"`
}

// RedeemRequest submits keys for immediate redemption on every addressed
// bot.
type RedeemRequest struct {
	Keys []string `json:"keys" validate:"required,min=1,dive,required"`
}

// AddKeysRequest queues keys (key → note) for background redemption.
type AddKeysRequest struct {
	Keys map[string]string `json:"keys" validate:"required,min=1"`
}

// InputRequest supplies a pending-input value (login, password,
// two-factor code, ...) to the addressed bots.
type InputRequest struct {
	Type  string `json:"type" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// ConfirmationsRequest accepts or denies every pending two-factor
// confirmation. Accept is a pointer so "field missing" fails validation
// instead of silently meaning deny.
type ConfirmationsRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}
