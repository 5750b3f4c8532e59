package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BotConfig is the per-bot configuration document. Secret fields are
// pointers so an incoming update can distinguish "not provided" (nil) from
// "explicitly set to empty" — the merge policy backfills only nil secrets
// from the existing configuration.
//
// Unknown JSON keys are captured into Extra on unmarshal and emitted again
// on marshal, so operator-defined extension fields survive the merge and
// persistence round trip.
type BotConfig struct {
	Enabled    bool   `json:"enabled"`
	Nickname   string `json:"nickname,omitempty"`
	TOTPSecret string `json:"totp_secret,omitempty"`

	Login       *string `json:"login,omitempty"`
	Password    *string `json:"password,omitempty"`
	ParentalPIN *string `json:"parental_pin,omitempty"`

	// Extra holds extension fields that are not part of the known schema.
	Extra map[string]json.RawMessage `json:"-"`

	// Serialization-control flags. SerializeHelperFields adds computed
	// helper fields ("s_"-prefixed) to the JSON output; SerializeAll also
	// emits unset secrets as explicit nulls. Both must be false before a
	// config is persisted so helper output never reaches storage.
	SerializeAll          bool `json:"-"`
	SerializeHelperFields bool `json:"-"`
}

// knownConfigKeys are the JSON keys owned by the schema above; everything
// else lands in Extra.
var knownConfigKeys = map[string]struct{}{
	"enabled":      {},
	"nickname":     {},
	"totp_secret":  {},
	"login":        {},
	"password":     {},
	"parental_pin": {},
}

// botConfigAlias drops the custom methods so the embedded known fields can
// be (un)marshalled with plain encoding/json.
type botConfigAlias BotConfig

func (c *BotConfig) UnmarshalJSON(data []byte) error {
	var alias botConfigAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("invalid bot config: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid bot config: %w", err)
	}
	// "s_"-prefixed keys are computed helper output; a document that was
	// serialized with helper fields and submitted back must not carry
	// them into the extension bag.
	for key := range raw {
		if _, known := knownConfigKeys[key]; known || strings.HasPrefix(key, "s_") {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}

	*c = BotConfig(alias)
	c.Extra = raw
	return nil
}

func (c BotConfig) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(botConfigAlias(c))
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}

	// Extension fields never shadow schema fields.
	for key, value := range c.Extra {
		if _, known := knownConfigKeys[key]; known {
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = value
		}
	}

	if c.SerializeAll {
		for _, key := range []string{"login", "password", "parental_pin"} {
			if _, exists := out[key]; !exists {
				out[key] = json.RawMessage("null")
			}
		}
	}

	if c.SerializeAll || c.SerializeHelperFields {
		hasCredentials, _ := json.Marshal(c.HasCredentials())
		out["s_has_credentials"] = hasCredentials
		parentalLocked, _ := json.Marshal(c.ParentalPIN != nil && *c.ParentalPIN != "")
		out["s_parental_locked"] = parentalLocked
	}

	return json.Marshal(out)
}

// HasCredentials reports whether both login and password are explicitly
// set and non-empty.
func (c *BotConfig) HasCredentials() bool {
	return c.Login != nil && *c.Login != "" && c.Password != nil && *c.Password != ""
}

// Clone returns a deep copy. Merged configurations are computed per bot
// and must never share pointers or maps with another bot's copy.
func (c *BotConfig) Clone() *BotConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Login = cloneString(c.Login)
	clone.Password = cloneString(c.Password)
	clone.ParentalPIN = cloneString(c.ParentalPIN)
	if c.Extra != nil {
		clone.Extra = make(map[string]json.RawMessage, len(c.Extra))
		for key, value := range c.Extra {
			copied := make(json.RawMessage, len(value))
			copy(copied, value)
			clone.Extra[key] = copied
		}
	}
	return &clone
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}
