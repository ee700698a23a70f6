// Package orchestrator implements C7: the top-level driver that walks
// platforms, programs and trackers, decides which reports are in scope
// this round, and fans each (report, tracker) pair out to the report
// synchronizer (C6) with bounded per-tracker concurrency (spec §4.7,
// §5).
//
// The fan-out/join shape is grounded on the teacher's
// workflow.Engine.Run: a sync.WaitGroup tracks in-flight branches, a
// mutex protects the shared result/error accumulator, and a per-branch
// failure is logged and does not abort its siblings
// (_examples/rakunlabs-at/internal/service/workflow/engine.go's
// runFanOutBranch goroutines). Here the fan-out axis is (report,
// tracker) pairs instead of graph branches, and per-tracker
// concurrency is bounded by a buffered-channel semaphore rather than
// left unbounded, per spec §5 "SHOULD bound parallelism per tracker".
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rakunlabs/logi"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/events"
	"github.com/yeswehack/ywh2bt-go/internal/model"
	"github.com/yeswehack/ywh2bt-go/internal/platform"
	"github.com/yeswehack/ywh2bt-go/internal/reconcile"
	"github.com/yeswehack/ywh2bt-go/internal/render"
	"github.com/yeswehack/ywh2bt-go/internal/trackers"
)

// DefaultMaxConcurrencyPerTracker bounds how many (report, tracker)
// pairs for the same tracker run at once when the caller does not
// override it (spec §5 "SHOULD bound parallelism per tracker").
const DefaultMaxConcurrencyPerTracker = 4

// Options configures one orchestration run.
type Options struct {
	// MaxConcurrencyPerTracker bounds in-flight Synchronize calls that
	// share the same tracker adapter. Zero uses
	// DefaultMaxConcurrencyPerTracker.
	MaxConcurrencyPerTracker int
	Listener                 *events.Listener
}

func (o Options) concurrencyLimit() int {
	if o.MaxConcurrencyPerTracker <= 0 {
		return DefaultMaxConcurrencyPerTracker
	}
	return o.MaxConcurrencyPerTracker
}

// Run drives one full synchronization pass over cfg: every platform,
// every one of its programs, every report the program's synchronize
// options put in scope, against every bugtracker the program names
// (spec §4.7).
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	adapters, err := buildAdapters(cfg.Trackers, opts.concurrencyLimit())
	if err != nil {
		return err
	}

	for platformName, platformCfg := range cfg.Platforms {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runPlatform(ctx, platformName, platformCfg, adapters, opts); err != nil {
			return err
		}
	}
	return nil
}

// trackerHandle bundles one tracker's adapter with its formatter
// (dialect follows the tracker type, spec §4.5 "Jira uses wiki
// dialect") and a semaphore bounding concurrent use of that adapter.
type trackerHandle struct {
	adapter   trackers.Adapter
	formatter *render.Formatter
	sem       chan struct{}
}

func buildAdapters(trackerCfgs map[string]config.TrackerConfig, concurrencyLimit int) (map[string]*trackerHandle, error) {
	out := make(map[string]*trackerHandle, len(trackerCfgs))
	for name, cfg := range trackerCfgs {
		adapter, err := trackers.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: tracker %q: %w", name, err)
		}
		out[name] = &trackerHandle{
			adapter:   adapter,
			formatter: render.NewFormatter(dialectFor(cfg)),
			sem:       make(chan struct{}, concurrencyLimit),
		}
	}
	return out, nil
}

// dialectFor resolves the message-rendering dialect for a tracker
// configuration variant (spec §4.5: "Jira uses wiki dialect via C1").
func dialectFor(cfg config.TrackerConfig) render.Dialect {
	if cfg.Type() == "jira" {
		return render.DialectWiki
	}
	return render.DialectMarkdown
}

func runPlatform(ctx context.Context, platformName string, platformCfg config.PlatformConfig, adapters map[string]*trackerHandle, opts Options) error {
	start := time.Now()
	opts.Listener.EmitStart(events.Start{Phase: events.PhasePlatform, Platform: platformName, StartedAt: start})

	client, err := platform.New(platformCfg)
	if err != nil {
		opts.Listener.EmitEnd(events.Result{Phase: events.PhasePlatform, Platform: platformName, Err: err})
		return fmt.Errorf("orchestrator: platform %q: %w", platformName, err)
	}

	creds := platform.Credentials{
		Login:    platformCfg.Login,
		Password: platformCfg.Password,
		Totp:     platformCfg.Totp,
		PAT:      platformCfg.PAT,
	}
	if err := client.Authenticate(ctx, creds); err != nil {
		opts.Listener.EmitEnd(events.Result{Phase: events.PhasePlatform, Platform: platformName, Err: err})
		return fmt.Errorf("orchestrator: platform %q: authenticate: %w", platformName, err)
	}

	host := platformHost(platformCfg.APIURL)
	log := logi.Ctx(ctx).With("platform", platformName)

	for _, program := range platformCfg.Programs {
		if err := ctx.Err(); err != nil {
			opts.Listener.EmitEnd(events.Result{Phase: events.PhasePlatform, Platform: platformName, Err: err})
			return err
		}
		if err := runProgram(ctx, client, platformName, host, program, adapters, opts); err != nil {
			// A per-program failure (e.g. one bad tracker name, one
			// listing error) does not abort the platform's remaining
			// programs — only configuration/platform-auth failures
			// above do (spec §7 propagation policy).
			log.Warn("program synchronization failed", "program", program.Slug, "error", err)
		}
	}

	opts.Listener.EmitEnd(events.Result{Phase: events.PhasePlatform, Platform: platformName})
	return nil
}

func runProgram(ctx context.Context, client *platform.Client, platformName, host string, program config.ProgramConfig, adapters map[string]*trackerHandle, opts Options) error {
	opts.Listener.EmitStart(events.Start{Phase: events.PhaseProgram, Platform: platformName, Program: program.Slug, StartedAt: time.Now()})

	reports, err := client.ListReports(ctx, program.Slug, reportFilters(program.SynchronizeOptions))
	if err != nil {
		opts.Listener.EmitEnd(events.Result{Phase: events.PhaseProgram, Platform: platformName, Program: program.Slug, Err: err})
		return fmt.Errorf("list reports: %w", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, report := range reports {
		for _, trackerName := range program.BugTrackersName {
			handle, ok := adapters[trackerName]
			if !ok {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("program %q: no tracker configured named %q", program.Slug, trackerName)
				}
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(report model.Report, trackerName string, handle *trackerHandle) {
				defer wg.Done()

				select {
				case handle.sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-handle.sem }()

				deps := reconcile.Dependencies{
					Platform:     client,
					Adapter:      handle.adapter,
					Formatter:    handle.formatter,
					TrackerName:  trackerName,
					PlatformHost: host,
					YWHDomain:    host,
					Options:      program.SynchronizeOptions,
					Feedback:     program.FeedbackOptions,
					Listener:     opts.Listener,
				}

				if err := reconcile.Synchronize(ctx, deps, report); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("report %d / tracker %q: %w", report.ID, trackerName, err)
					}
					mu.Unlock()
				}
			}(report, trackerName, handle)
		}
	}

	wg.Wait()

	opts.Listener.EmitEnd(events.Result{Phase: events.PhaseProgram, Platform: platformName, Program: program.Slug, Err: firstErr})
	return firstErr
}

// reportFilters builds the listing filter for a program's reports
// (spec §4.7 "fetches reports filtered to trackingStatus ∈ {AFI}, plus
// {T} if any SynchronizeOptions flag enabling continuous mirroring is
// set").
func reportFilters(opts config.SynchronizeOptions) map[string]string {
	status := string(model.TrackingStatusAwaitingImplementation)
	if opts.ContinuousMirroring() {
		status += "," + string(model.TrackingStatusTracked)
	}
	return map[string]string{"tracking_status": status}
}

// platformHost extracts the bare host from a platform's API URL, used
// both as the attachment-URL scrub boundary and the redirect-unwrap
// domain (spec §4.1): both checks are against the platform's own
// origin, so one derived value serves both.
func platformHost(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return apiURL
	}
	return u.Host
}
