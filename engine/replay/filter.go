package replay

import "github.com/spaghettifunk/relic/engine/renderer/metadata"

/**
 * @brief How the graphics and compute filter sets restrict replay.
 *
 * Exclusive keeps the behavior serialized tooling has always had: if either
 * filter is non-empty, a category replays only hashes present in its own
 * filter, so a category whose filter is empty replays nothing. Independent
 * applies each filter only when that filter itself is non-empty, leaving the
 * other category untouched.
 */
type FilterMode uint8

const (
	FilterModeExclusive FilterMode = iota
	FilterModeIndependent
)

func (r *Replayer) replayGraphics(hash metadata.Hash) bool {
	switch r.opts.FilterMode {
	case FilterModeIndependent:
		if len(r.filterGraphics) == 0 {
			return true
		}
	default:
		if len(r.filterGraphics) == 0 && len(r.filterCompute) == 0 {
			return true
		}
	}
	_, ok := r.filterGraphics[hash]
	return ok
}

func (r *Replayer) replayCompute(hash metadata.Hash) bool {
	switch r.opts.FilterMode {
	case FilterModeIndependent:
		if len(r.filterCompute) == 0 {
			return true
		}
	default:
		if len(r.filterCompute) == 0 && len(r.filterGraphics) == 0 {
			return true
		}
	}
	_, ok := r.filterCompute[hash]
	return ok
}
