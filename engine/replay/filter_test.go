package replay

import (
	"testing"

	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
)

func filterReplayer(mode FilterMode, graphics, compute []metadata.Hash) *Replayer {
	return &Replayer{
		opts:           Options{FilterMode: mode},
		filterGraphics: hashSet(graphics),
		filterCompute:  hashSet(compute),
	}
}

func TestFilterPredicates(t *testing.T) {
	for _, tc := range [...]struct {
		name         string
		mode         FilterMode
		graphics     []metadata.Hash
		compute      []metadata.Hash
		wantGraphics map[metadata.Hash]bool
		wantCompute  map[metadata.Hash]bool
	}{
		{
			name:         "no filters replay everything",
			mode:         FilterModeExclusive,
			wantGraphics: map[metadata.Hash]bool{0x1: true, 0x2: true},
			wantCompute:  map[metadata.Hash]bool{0x1: true},
		},
		{
			name:         "exclusive graphics filter restricts graphics",
			mode:         FilterModeExclusive,
			graphics:     []metadata.Hash{0x2},
			wantGraphics: map[metadata.Hash]bool{0x1: false, 0x2: true, 0x3: false},
			// The compute filter is empty, so under exclusive semantics no
			// compute pipeline replays at all.
			wantCompute: map[metadata.Hash]bool{0x1: false, 0x2: false},
		},
		{
			name:         "independent graphics filter leaves compute alone",
			mode:         FilterModeIndependent,
			graphics:     []metadata.Hash{0x2},
			wantGraphics: map[metadata.Hash]bool{0x1: false, 0x2: true},
			wantCompute:  map[metadata.Hash]bool{0x1: true, 0x2: true},
		},
		{
			name:         "exclusive with both filters set restricts each category to its own filter",
			mode:         FilterModeExclusive,
			graphics:     []metadata.Hash{0x1},
			compute:      []metadata.Hash{0x2},
			wantGraphics: map[metadata.Hash]bool{0x1: true, 0x2: false},
			wantCompute:  map[metadata.Hash]bool{0x1: false, 0x2: true},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := filterReplayer(tc.mode, tc.graphics, tc.compute)
			for hash, want := range tc.wantGraphics {
				assert.Equal(t, want, r.replayGraphics(hash), "graphics %s", hash)
			}
			for hash, want := range tc.wantCompute {
				assert.Equal(t, want, r.replayCompute(hash), "compute %s", hash)
			}
		})
	}
}
