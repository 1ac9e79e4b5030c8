package provider

import (
	"golang.org/x/time/rate"

	"basegraph.app/codesight/core/config"
)

// OptionsFromConfig builds factory options with one limiter shared by every client.
func OptionsFromConfig(cfg config.ProviderConfig, webhookSecret string, recorder Recorder) Options {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return Options{
		BaseURL:       cfg.BaseURL,
		WebURL:        cfg.WebURL,
		WebhookSecret: webhookSecret,
		MaxRetries:    cfg.MaxRetries,
		Limiter:       rate.NewLimiter(limit, burst),
		Recorder:      recorder,
	}
}
