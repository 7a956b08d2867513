package subscription

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xraph/courier/catalog"
)

// FieldError describes one invalid field on a registry mutation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return "subscription validation: " + e.Field + ": " + e.Message
}

// ValidationErrors collects every invalid field so callers can surface
// structured per-field errors rather than failing one field at a time.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "subscription validation: " + strings.Join(msgs, "; ")
}

// errsOrNil returns nil when no field errors were collected, so that
// `if err != nil` behaves as expected on the caller side.
func errsOrNil(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validate checks every subscription invariant and returns the full set of
// violations. Called after defaults and merges have been applied.
func validate(sub *Subscription) error {
	var errs ValidationErrors

	if sub.Name == "" {
		errs = append(errs, FieldError{"name", "required"})
	}

	if sub.URL == "" {
		errs = append(errs, FieldError{"url", "required"})
	} else if err := validateURL(sub.URL); err != nil {
		errs = append(errs, FieldError{"url", err.Error()})
	}

	if len(sub.Events) == 0 {
		errs = append(errs, FieldError{"events", "at least one event required"})
	}
	for _, e := range sub.Events {
		if !catalog.Known(e) {
			errs = append(errs, FieldError{"events", fmt.Sprintf("unknown event %q", e)})
		}
	}

	p := sub.RetryPolicy
	if p.MaxRetries < 0 || p.MaxRetries > MaxRetriesCeiling {
		errs = append(errs, FieldError{"retry_config.max_retries",
			fmt.Sprintf("must be between 0 and %d", MaxRetriesCeiling)})
	}
	if p.BaseDelaySeconds < MinBaseDelaySeconds || p.BaseDelaySeconds > MaxBaseDelaySeconds {
		errs = append(errs, FieldError{"retry_config.retry_delay",
			fmt.Sprintf("must be between %d and %d seconds", MinBaseDelaySeconds, MaxBaseDelaySeconds)})
	}
	if p.BackoffMultiplier < MinBackoffMultiplier || p.BackoffMultiplier > MaxBackoffMultiplier {
		errs = append(errs, FieldError{"retry_config.backoff_multiplier",
			fmt.Sprintf("must be between %d and %d", MinBackoffMultiplier, MaxBackoffMultiplier)})
	}

	if sub.TimeoutSeconds < MinTimeoutSeconds || sub.TimeoutSeconds > MaxTimeoutSeconds {
		errs = append(errs, FieldError{"timeout",
			fmt.Sprintf("must be between %d and %d seconds", MinTimeoutSeconds, MaxTimeoutSeconds)})
	}

	if sub.RateLimit < 0 {
		errs = append(errs, FieldError{"rate_limit", "must not be negative"})
	}

	return errsOrNil(errs)
}

// validateURL requires an absolute http(s) URL with a host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}
