package fleet

import (
	"strings"

	"github.com/rainadr/service-fleet-commander/internal/models"
)

// CombineStatuses folds per-target command results into one overall
// result: success is the logical AND of every target's success, and the
// message is the newline-joined concatenation of every non-empty
// per-target message in target order. Zero targets combine to a vacuous
// success with no message. An error slot counts as a failure and
// contributes the error text as that target's message.
func CombineStatuses(results []Result[models.CommandResult]) models.CommandResult {
	overall := models.CommandResult{Success: true}

	var messages []string
	for _, r := range results {
		value := normalizeStatus(r)
		if !value.Success {
			overall.Success = false
		}
		if value.Message != "" {
			messages = append(messages, value.Message)
		}
	}

	overall.Message = strings.Join(messages, "\n")
	return overall
}

// StatusByName maps each target's name to its own command result. Every
// resolved target gets exactly one entry.
func StatusByName(results []Result[models.CommandResult]) map[string]models.CommandResult {
	out := make(map[string]models.CommandResult, len(results))
	for _, r := range results {
		out[r.Worker.Name()] = normalizeStatus(r)
	}
	return out
}

// BoolByName maps each target's name to its boolean outcome and returns
// the AND across all targets (vacuously true for zero targets). Error
// slots count as false.
func BoolByName(results []Result[bool]) (map[string]bool, bool) {
	out := make(map[string]bool, len(results))
	overall := true
	for _, r := range results {
		value := r.Value && r.Err == nil
		out[r.Worker.Name()] = value
		if !value {
			overall = false
		}
	}
	return out, overall
}

// ByName maps each target's name to its payload value, shape-agnostic.
func ByName[T any](results []Result[T]) map[string]T {
	out := make(map[string]T, len(results))
	for _, r := range results {
		out[r.Worker.Name()] = r.Value
	}
	return out
}

// GridByName builds the name→key→redemption-result grid and computes
// overall success: true only if every cell was attempted (non-nil) and
// succeeded. A nil cell means "never attempted" and is preserved as such
// in the output — it fails the overall outcome without being conflated
// with an attempted-and-failed redemption. A target with zero keys
// contributes an empty map and counts as vacuously successful.
func GridByName(results []Result[map[string]*models.RedemptionResult]) (map[string]map[string]*models.RedemptionResult, bool) {
	out := make(map[string]map[string]*models.RedemptionResult, len(results))
	overall := true

	for _, r := range results {
		out[r.Worker.Name()] = r.Value
		if r.Err != nil {
			overall = false
			continue
		}
		for _, cell := range r.Value {
			if !cell.Succeeded() {
				overall = false
			}
		}
	}
	return out, overall
}

func normalizeStatus(r Result[models.CommandResult]) models.CommandResult {
	if r.Err != nil {
		return models.CommandResult{Success: false, Message: r.Err.Error()}
	}
	return r.Value
}
