// Package tester implements C8: a dry connectivity check across every
// configured platform and tracker. It never creates or modifies
// anything remote — only `Authenticate` (platform) and `Test` (tracker)
// are called, both read-only probes by contract (spec §4.8).
//
// The one-result-per-endpoint shape, continuing past a failed endpoint
// to still probe the rest, is grounded on the teacher's admin-API
// handlers in internal/server/admin.go: each handler reports its own
// success/failure independently rather than treating one failing
// downstream dependency as fatal to the whole request.
package tester

import (
	"context"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/platform"
	"github.com/yeswehack/ywh2bt-go/internal/trackers"
)

// Kind distinguishes which half of the configuration an endpoint came
// from.
type Kind string

const (
	KindPlatform Kind = "platform"
	KindTracker  Kind = "tracker"
)

// Result is one endpoint's connectivity outcome. Err is nil iff the
// probe succeeded.
type Result struct {
	Kind Kind
	Name string
	Err  error
}

// Run probes every platform and every tracker in cfg and returns one
// Result per endpoint, in no particular cross-kind order (spec §4.8
// "reports success/failure per endpoint"). Run itself never returns an
// error for a probe failure — failures are carried in the Result
// slice; Run's own error return is reserved for failing to even
// construct an adapter (a configuration-shape problem, not a
// connectivity one).
func Run(ctx context.Context, cfg config.Config) ([]Result, error) {
	results := make([]Result, 0, len(cfg.Platforms)+len(cfg.Trackers))

	for name, platformCfg := range cfg.Platforms {
		results = append(results, probePlatform(ctx, name, platformCfg))
	}

	for name, trackerCfg := range cfg.Trackers {
		result, err := probeTracker(ctx, name, trackerCfg)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

func probePlatform(ctx context.Context, name string, cfg config.PlatformConfig) Result {
	client, err := platform.New(cfg)
	if err != nil {
		return Result{Kind: KindPlatform, Name: name, Err: err}
	}

	creds := platform.Credentials{
		Login:    cfg.Login,
		Password: cfg.Password,
		Totp:     cfg.Totp,
		PAT:      cfg.PAT,
	}
	err = client.Authenticate(ctx, creds)
	return Result{Kind: KindPlatform, Name: name, Err: err}
}

func probeTracker(ctx context.Context, name string, cfg config.TrackerConfig) (Result, error) {
	adapter, err := trackers.New(cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindTracker, Name: name, Err: adapter.Test(ctx)}, nil
}

// Success reports whether every probed endpoint succeeded.
func Success(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return false
		}
	}
	return true
}
