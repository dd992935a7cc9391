package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/signalsfoundry/intercept-engine/core"
	"github.com/signalsfoundry/intercept-engine/internal/config"
	"github.com/signalsfoundry/intercept-engine/internal/feed"
	"github.com/signalsfoundry/intercept-engine/internal/logging"
	"github.com/signalsfoundry/intercept-engine/internal/runloop"
	"github.com/signalsfoundry/intercept-engine/timectrl"
)

func main() {
	configPath := flag.String("config", "", "scenario config file; empty uses the built-in mission")
	duration := flag.Duration("duration", 30*time.Second, "total simulated duration")
	tick := flag.Duration("tick", 50*time.Millisecond, "frame interval")
	accelerated := flag.Bool("accelerated", true, "run frames back to back instead of in real time")
	every := flag.Int("every", 20, "print a summary every N frames")
	removeAt := flag.Duration("remove-at", 0, "simulated time at which to remove -remove-body")
	removeBody := flag.String("remove-body", "", "body to remove at -remove-at")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Clock.Tick = *tick
	if *accelerated {
		cfg.Clock.Mode = timectrl.Accelerated.String()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := simOptions{
		duration:   *duration,
		every:      *every,
		removeAt:   removeAt.Seconds(),
		removeBody: *removeBody,
	}
	logCfg := cfg.LoggerConfig()
	logCfg.Output = os.Stderr
	last, err := simulate(ctx, cfg, opts, logging.New(logCfg), os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}
	if last != nil {
		fmt.Printf("Simulation complete: %d frames, %.2fs simulated.\n", last.Frame, last.Elapsed)
	}
}

type simOptions struct {
	duration   time.Duration
	every      int
	removeAt   float64
	removeBody string
}

// simulate runs the engine headless and prints a summary line every
// opts.every frames. It returns the last snapshot.
func simulate(ctx context.Context, cfg *config.Config, opts simOptions, log logging.Logger, w io.Writer) (*core.Snapshot, error) {
	engine, err := core.NewEngine(cfg.Scenario(), core.WithLogger(log))
	if err != nil {
		return nil, err
	}

	hub := feed.NewHub()
	tc := timectrl.NewTimeController(cfg.Clock.Tick, cfg.Mode())

	removed := opts.removeBody == ""
	runner := runloop.NewRunner(engine, hub, tc,
		runloop.WithLogger(log),
		runloop.OnFrame(func(snap *core.Snapshot) {
			if opts.every > 0 && snap.Frame%uint64(opts.every) == 0 {
				printSummary(w, snap)
			}
			// OnFrame runs on the loop goroutine, between ticks.
			if !removed && snap.Elapsed >= opts.removeAt {
				removed = true
				if err := engine.RemoveBody(ctx, opts.removeBody); err != nil {
					fmt.Fprintf(w, "remove %s: %v\n", opts.removeBody, err)
				} else {
					fmt.Fprintf(w, "[t=%7.2fs] removed %s\n", snap.Elapsed, opts.removeBody)
				}
			}
		}),
	)

	fmt.Fprintf(w, "Starting simulation: duration=%s, tick=%s, mode=%v, bodies=%d, stations=%d, interceptors=%d\n",
		opts.duration, tc.Tick, tc.Mode, len(cfg.Bodies), len(cfg.Stations), cfg.Swarm.Count)
	if err := runner.Run(ctx, opts.duration); err != nil {
		return nil, err
	}
	return hub.Latest(), nil
}

func printSummary(w io.Writer, snap *core.Snapshot) {
	counts := snap.CountByState()
	fmt.Fprintf(w, "[t=%7.2fs] frame %-6d bodies=%-3d in-contact=%d/%d pursuing=%d complete=%d inert=%d\n",
		snap.Elapsed, snap.Frame, len(snap.Bodies), snap.InContact(), len(snap.Contacts),
		counts[core.StatePursuing], counts[core.StateComplete], counts[core.StateInert])

	contacts := append([]core.StationContact(nil), snap.Contacts...)
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].AngularSeparationDeg < contacts[j].AngularSeparationDeg
	})
	for _, c := range contacts {
		if !c.InContact {
			continue
		}
		fmt.Fprintf(w, "  ↳ %-12s sep=%5.2f° intensity=%.2f elevation=%6.2f°\n",
			c.Name, c.AngularSeparationDeg, c.Intensity, c.ElevationDeg)
	}
}
