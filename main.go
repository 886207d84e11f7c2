/*
Replays a content-addressed archive of Vulkan resource-creation records
against a live device, warming the pipeline cache and measuring driver
compilation cost.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spaghettifunk/relic/engine/archive"
	"github.com/spaghettifunk/relic/engine/config"
	"github.com/spaghettifunk/relic/engine/core"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"github.com/spaghettifunk/relic/engine/renderer/vulkan"
	"github.com/spaghettifunk/relic/engine/replay"
	"github.com/spaghettifunk/relic/engine/state"
)

// hashListFlag collects repeatable --filter-graphics / --filter-compute
// values.
type hashListFlag []metadata.Hash

func (f *hashListFlag) String() string {
	parts := make([]string, len(*f))
	for i, h := range *f {
		parts[i] = h.String()
	}
	return strings.Join(parts, ",")
}

func (f *hashListFlag) Set(value string) error {
	h, err := metadata.ParseHash(value)
	if err != nil {
		return err
	}
	*f = append(*f, h)
	return nil
}

func main() {
	var (
		numThreads        = flag.Int("num-threads", 0, "worker thread count (0 = one per CPU)")
		loopCount         = flag.Int("loop", 1, "re-create every deferred object this many times")
		pipelineCache     = flag.Bool("pipeline-cache", false, "create a device pipeline cache")
		onDiskCache       = flag.String("on-disk-pipeline-cache", "", "load and persist the pipeline cache blob at this path (implies --pipeline-cache)")
		deviceIndex       = flag.Int("device-index", 0, "physical device to replay on")
		enableValidation  = flag.Bool("enable-validation", false, "enable the Khronos validation layer")
		filterIndependent = flag.Bool("filter-independent", false, "apply each filter only to its own category")
		watch             = flag.Bool("watch", false, "keep replaying records added to the archive")
		configPath        = flag.String("config", "", "TOML replay profile; flags take precedence")
		debug             = flag.Bool("debug", false, "debug logging")
	)
	var filterGraphics, filterCompute hashListFlag
	flag.Var(&filterGraphics, "filter-graphics", "replay only this graphics pipeline hash (repeatable)")
	flag.Var(&filterCompute, "filter-compute", "replay only this compute pipeline hash (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: relic [flags] <archive-path>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	archivePath := flag.Arg(0)

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			core.LogError(err.Error())
			os.Exit(1)
		}
		if archivePath == "" {
			archivePath = cfg.ArchivePath
		}
		if !setFlags["num-threads"] {
			*numThreads = cfg.NumThreads
		}
		if !setFlags["loop"] {
			*loopCount = cfg.LoopCount
		}
		if !setFlags["pipeline-cache"] {
			*pipelineCache = cfg.PipelineCache
		}
		if !setFlags["on-disk-pipeline-cache"] {
			*onDiskCache = cfg.OnDiskPipelineCachePath
		}
		if !setFlags["device-index"] {
			*deviceIndex = cfg.DeviceIndex
		}
		if !setFlags["enable-validation"] {
			*enableValidation = cfg.EnableValidation
		}
		if !setFlags["filter-independent"] {
			*filterIndependent = cfg.FilterIndependent
		}
		if !setFlags["watch"] {
			*watch = cfg.Watch
		}
		if !setFlags["debug"] {
			*debug = cfg.Debug
		}
		if !setFlags["filter-graphics"] {
			hashes, err := cfg.ParseFilter(cfg.FilterGraphics)
			if err != nil {
				core.LogError(err.Error())
				os.Exit(1)
			}
			filterGraphics = hashes
		}
		if !setFlags["filter-compute"] {
			hashes, err := cfg.ParseFilter(cfg.FilterCompute)
			if err != nil {
				core.LogError(err.Error())
				os.Exit(1)
			}
			filterCompute = hashes
		}
	}

	if archivePath == "" {
		core.LogError("no path to a replay archive provided")
		flag.Usage()
		os.Exit(1)
	}
	if *debug {
		core.SetDebugLogging()
	}

	clock := core.NewClock()
	clock.Start()
	arc, err := archive.Open(archivePath)
	if err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
	clock.Update()
	core.LogInfo("Opening archive took %d ms", clock.Elapsed().Milliseconds())

	clock.Start()
	if err := arc.Prepare(); err != nil {
		core.LogError("failed to prepare archive: %s", err)
		os.Exit(1)
	}
	clock.Update()
	core.LogInfo("Parsing archive took %d ms (%d records)", clock.Elapsed().Milliseconds(), arc.TotalRecords())

	filterMode := replay.FilterModeExclusive
	if *filterIndependent {
		filterMode = replay.FilterModeIndependent
	}

	backend := vulkan.New(vulkan.Options{
		DeviceIndex:             *deviceIndex,
		EnableValidation:        *enableValidation,
		PipelineCache:           *pipelineCache || *onDiskCache != "",
		OnDiskPipelineCachePath: *onDiskCache,
	})

	replayer := replay.New(backend, replay.Options{
		NumThreads:              *numThreads,
		LoopCount:               *loopCount,
		PipelineCache:           *pipelineCache,
		OnDiskPipelineCachePath: *onDiskCache,
		FilterMode:              filterMode,
	}, filterGraphics, filterCompute)

	driver := replay.NewDriver(replayer, arc, state.NewDeserializer(replayer))

	if _, err := driver.Run(); err != nil {
		core.LogError(err.Error())
		replayer.Close()
		os.Exit(1)
	}

	if *watch {
		watcher, err := archive.NewWatcher(arc)
		if err != nil {
			core.LogError(err.Error())
			replayer.Close()
			os.Exit(1)
		}

		// signal channel to capture system calls
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			// capture sigterm and other system call here
			<-sigCh
			cancel()
		}()

		core.LogInfo("watching %s for new records", arc.Root())
		if err := driver.Watch(ctx, watcher.Events()); err != nil {
			core.LogError(err.Error())
		}
		watcher.Close()
	}

	if err := replayer.Close(); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}
