package fleet

import (
	"encoding/json"

	"github.com/rainadr/service-fleet-commander/internal/models"
)

// MergeConfigs combines an incoming partial configuration update with a
// bot's existing configuration and returns a fresh merged object ready
// for persistence:
//
//   - secret fields the incoming update did not explicitly set (nil
//     pointer) are backfilled from the existing configuration;
//   - extension fields present in the existing configuration and absent
//     from the incoming one are copied over, incoming wins on conflict;
//   - the serialization-control flags are force-disabled so computed
//     helper fields never get persisted.
//
// The result never aliases incoming or existing. Callers apply the merge
// independently per bot with a fresh incoming copy each time so one bot's
// secrets cannot leak into another bot's merged result.
func MergeConfigs(incoming, existing *models.BotConfig) *models.BotConfig {
	merged := incoming.Clone()

	if existing != nil {
		if merged.Login == nil && existing.Login != nil {
			login := *existing.Login
			merged.Login = &login
		}
		if merged.Password == nil && existing.Password != nil {
			password := *existing.Password
			merged.Password = &password
		}
		if merged.ParentalPIN == nil && existing.ParentalPIN != nil {
			pin := *existing.ParentalPIN
			merged.ParentalPIN = &pin
		}

		for key, value := range existing.Extra {
			if merged.Extra == nil {
				merged.Extra = make(map[string]json.RawMessage, len(existing.Extra))
			}
			if _, exists := merged.Extra[key]; exists {
				continue
			}
			copied := make(json.RawMessage, len(value))
			copy(copied, value)
			merged.Extra[key] = copied
		}
	}

	merged.SerializeAll = false
	merged.SerializeHelperFields = false
	return merged
}
