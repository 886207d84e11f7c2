package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/spaghettifunk/relic/engine/core"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

/**
 * @brief The single-threaded phase driver. Walks the archive's categories in
 * playback order, feeding every record through the parser into the replayer's
 * facade. A barrier after the render-pass phase guarantees every shader module
 * referenced by a pipeline exists before pipeline creation begins; a final
 * barrier drains outstanding pipeline compiles.
 */
type Driver struct {
	replayer *Replayer
	source   Source
	parser   Parser
}

func NewDriver(replayer *Replayer, source Source, parser Parser) *Driver {
	return &Driver{
		replayer: replayer,
		source:   source,
		parser:   parser,
	}
}

// Run replays the whole archive once and returns the aggregate report.
func (d *Driver) Run() (*Report, error) {
	clock := core.NewClock()
	clock.Start()

	for _, kind := range metadata.PlaybackOrder {
		hashes, err := d.source.HashList(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to get list of %s hashes: %w", kind, err)
		}

		for _, hash := range hashes {
			blob, err := d.source.ReadEntry(kind, hash)
			if err != nil {
				return nil, fmt.Errorf("failed to load blob from archive: %w", err)
			}
			if err := d.parser.Parse(kind, hash, blob); err != nil {
				// Device creation is the one failure that cannot be skipped.
				if kind == metadata.ResourceTypeApplicationInfo {
					return nil, err
				}
				core.LogError("skipping %s %s: %s", kind, hash, err)
			}
		}

		// Before continuing with pipelines, make sure the threaded shader
		// modules have been created.
		if kind == metadata.ResourceTypeRenderPass {
			d.replayer.Sync()
		}
	}

	// Drain all outstanding pipeline compiles.
	d.replayer.Sync()

	clock.Update()
	report := d.replayer.Report()
	d.logReport(report, clock.Elapsed())
	return report, nil
}

func (d *Driver) logReport(report *Report, elapsed time.Duration) {
	core.LogInfo("Playing back %d shader modules took %.3f s (accumulated time)",
		report.ShaderModuleCount, report.ShaderModuleTime.Seconds())
	core.LogInfo("Playing back %d graphics pipelines took %.3f s (accumulated time)",
		report.GraphicsPipelineCount, report.GraphicsPipelineTime.Seconds())
	core.LogInfo("Playing back %d compute pipelines took %.3f s (accumulated time)",
		report.ComputePipelineCount, report.ComputePipelineTime.Seconds())

	core.LogInfo("Replayed %d objects in %d ms (run %s):", report.TotalObjects(), elapsed.Milliseconds(), report.RunID)
	core.LogInfo("  samplers:               %7d", report.Samplers)
	core.LogInfo("  descriptor set layouts: %7d", report.DescriptorSetLayouts)
	core.LogInfo("  pipeline layouts:       %7d", report.PipelineLayouts)
	core.LogInfo("  render passes:          %7d", report.RenderPasses)
	core.LogInfo("  shader modules:         %7d", report.ShaderModules)
	core.LogInfo("  graphics pipelines:     %7d", report.GraphicsPipelines)
	core.LogInfo("  compute pipelines:      %7d", report.ComputePipelines)
}

// Watch consumes records appended to the archive after the initial replay,
// replaying each batch in playback order with a barrier between new shader
// modules and new pipelines. Returns when ctx is done or events closes.
func (d *Driver) Watch(ctx context.Context, events <-chan metadata.RecordRef) error {
	const settle = 500 * time.Millisecond

	var pending []metadata.RecordRef
	timer := time.NewTimer(settle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return d.flush(pending)
		case ref, ok := <-events:
			if !ok {
				return d.flush(pending)
			}
			pending = append(pending, ref)
			timer.Reset(settle)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			if err := d.flush(pending); err != nil {
				return err
			}
			pending = nil
		}
	}
}

func (d *Driver) flush(pending []metadata.RecordRef) error {
	if len(pending) == 0 {
		return nil
	}

	slices.SortStableFunc(pending, func(a, b metadata.RecordRef) int {
		return a.Kind.PlaybackIndex() - b.Kind.PlaybackIndex()
	})

	core.LogInfo("replaying %d new records", len(pending))
	synced := false
	for _, ref := range pending {
		// New pipelines may depend on new shader modules in the same batch.
		// The sort put pipelines last; barrier once before the first of them.
		if !synced && ref.Kind.PlaybackIndex() > metadata.ResourceTypeRenderPass.PlaybackIndex() {
			d.replayer.Sync()
			synced = true
		}
		blob, err := d.source.ReadEntry(ref.Kind, ref.Hash)
		if err != nil {
			core.LogError("skipping new record %s %s: %s", ref.Kind, ref.Hash, err)
			continue
		}
		if err := d.parser.Parse(ref.Kind, ref.Hash, blob); err != nil {
			core.LogError("skipping new record %s %s: %s", ref.Kind, ref.Hash, err)
			continue
		}
	}
	d.replayer.Sync()
	return nil
}
