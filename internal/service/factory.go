package service

import (
	"basegraph.app/codesight/internal/metrics"
	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/queue"
	"basegraph.app/codesight/internal/store"
)

type ServicesConfig struct {
	CallbackURL              string
	DisconnectAllConcurrency int
	DefaultPageSize          int
}

type Services struct {
	stores    *store.Stores
	providers provider.Factory
	producer  queue.Producer
	metrics   *metrics.Metrics
	cfg       ServicesConfig
}

func NewServices(stores *store.Stores, providers provider.Factory, producer queue.Producer, m *metrics.Metrics, cfg ServicesConfig) *Services {
	return &Services{
		stores:    stores,
		providers: providers,
		producer:  producer,
		metrics:   m,
		cfg:       cfg,
	}
}

func (s *Services) Auth() AuthService {
	return NewAuthService(s.stores.Sessions())
}

func (s *Services) Tokens() TokenResolver {
	return NewAccountTokenResolver(s.stores.Accounts(), s.providers.Name())
}

func (s *Services) Connections() ConnectionService {
	var recorder ReconcileRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	return NewConnectionService(s.stores.Connections(), s.Tokens(), s.providers, ConnectionServiceConfig{
		Recorder:    recorder,
		CallbackURL: s.cfg.CallbackURL,
		Concurrency: s.cfg.DisconnectAllConcurrency,
	})
}

func (s *Services) Listing() ListingService {
	return NewListingService(s.stores.Connections(), s.Tokens(), s.providers, s.cfg.DefaultPageSize)
}

func (s *Services) WebhookEvents() WebhookEventService {
	var recorder WebhookRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	return NewWebhookEventService(s.stores.Connections(), s.producer, recorder)
}

// ProviderName is the provider every client of this deployment talks to.
func (s *Services) ProviderName() string {
	return s.providers.Name()
}
