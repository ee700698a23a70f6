package config

import "fmt"

// Validate walks cfg and checks the configuration invariants from spec §3.
// This is an explicit walker, not a descriptor/metadata framework (Design
// Notes §9 "attribute container with descriptors" is re-architected as
// plain structs plus this function).
func Validate(cfg Config) error {
	var errs []string

	for platformName, platform := range cfg.Platforms {
		if platform.APIURL == "" {
			errs = append(errs, fmt.Sprintf("platform %q: api_url is required", platformName))
		}
		if header := platform.AppsHeaders["X-YesWeHack-Apps"]; header == "" {
			errs = append(errs, fmt.Sprintf("platform %q: apps_headers[\"X-YesWeHack-Apps\"] must be non-blank", platformName))
		}
		if !platform.UsesPAT() && (platform.Login == "" || platform.Password == "") {
			errs = append(errs, fmt.Sprintf("platform %q: either pat or login+password must be set", platformName))
		}

		for _, program := range platform.Programs {
			if program.Slug == "" {
				errs = append(errs, fmt.Sprintf("platform %q: program with empty slug", platformName))
			}
			for _, trackerName := range program.BugTrackersName {
				// §3.a: every tracker name referenced by a program must
				// exist in the trackers map.
				if _, ok := cfg.Trackers[trackerName]; !ok {
					errs = append(errs, fmt.Sprintf(
						"platform %q, program %q: references unknown tracker %q",
						platformName, program.Slug, trackerName,
					))
				}
			}
		}
	}

	for trackerName, tracker := range cfg.Trackers {
		if GetTrackerConfigFactory(tracker.Type()) == nil {
			errs = append(errs, fmt.Sprintf("tracker %q: type %q is not registered", trackerName, tracker.Type()))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}

// ValidationError aggregates every invariant violation found in one
// Validate call, so `validate --config-file` (spec §6) can report them
// all at once rather than stopping at the first.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	msg := fmt.Sprintf("%d configuration errors:", len(e.Errors))
	for _, s := range e.Errors {
		msg += "\n  - " + s
	}
	return msg
}
