package fleet

import (
	"errors"
	"strings"
)

// AllTargets is the name-specification token addressing every registered
// bot.
const AllTargets = "all"

var (
	// ErrNoInput means the name specification contained no usable
	// segment at all — the caller supplied nothing to resolve.
	ErrNoInput = errors.New("no bot name provided")

	// ErrNoneFound means the specification named targets but none of
	// them is registered. Distinct from ErrNoInput so callers can tell
	// "you typed nothing" from "you typed names but none exist".
	ErrNoneFound = errors.New("no matching bots found")
)

// Resolve parses a name specification into an ordered, deduplicated
// target set. The specification is either the AllTargets token or a
// comma-separated list of names; comparison is case-insensitive, empty
// segments are discarded, and the reserved control-name is skipped rather
// than treated as an error.
//
// Explicit lists preserve first-occurrence order; AllTargets yields the
// registry snapshot order.
func (r *Registry) Resolve(spec string) ([]Worker, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, ErrNoInput
	}

	if strings.EqualFold(trimmed, AllTargets) {
		targets := r.Snapshot()
		if len(targets) == 0 {
			return nil, ErrNoneFound
		}
		return targets, nil
	}

	var targets []Worker
	seen := make(map[string]struct{})
	sawSegment := false

	for _, segment := range strings.Split(trimmed, ",") {
		name := strings.TrimSpace(segment)
		if name == "" {
			continue
		}
		sawSegment = true

		key := strings.ToLower(name)
		if key == ReservedName {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}

		w, ok := r.Get(key)
		if !ok {
			continue
		}

		seen[key] = struct{}{}
		targets = append(targets, w)
	}

	if !sawSegment {
		return nil, ErrNoInput
	}
	if len(targets) == 0 {
		return nil, ErrNoneFound
	}
	return targets, nil
}
