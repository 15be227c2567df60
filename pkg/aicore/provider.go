package aicore

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/anhofmann/aicore-go/internal/config"
	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/fm"
	"github.com/anhofmann/aicore-go/internal/orchestration"
	"github.com/anhofmann/aicore-go/internal/recorder"
	"github.com/anhofmann/aicore-go/internal/registry"
	"github.com/anhofmann/aicore-go/internal/tokens"
	"github.com/anhofmann/aicore-go/internal/transport"
)

// Provider owns the transport, the strategy registry, and the optional
// call recorder. One Provider serves any number of model handles
// concurrently.
type Provider struct {
	caller    *transport.Caller
	registry  *registry.Registry
	resolver  DeploymentResolver
	recorder  *recorder.Store
	estimator *tokens.Estimator
	logger    *slog.Logger

	apiVersion string
	httpClient *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger passed down to strategies and clients.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithHTTPClient replaces the default otel-instrumented HTTP client
// (tests, VCR cassettes, custom proxies).
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// WithResolver replaces the catalog-backed deployment resolver.
func WithResolver(resolver DeploymentResolver) Option {
	return func(p *Provider) { p.resolver = resolver }
}

// New creates a Provider for the configured destination. The recorder is
// opened when cfg.RecorderPath is set.
func New(cfg *Config, opts ...Option) (*Provider, error) {
	if cfg == nil || cfg.Destination.BaseURL == "" {
		return nil, &domain.ValidationError{
			Field:   "destination.base_url",
			Message: "no AI Core base URL configured",
		}
	}

	p := &Provider{
		estimator:  tokens.NewEstimator(),
		logger:     slog.Default(),
		apiVersion: cfg.Destination.APIVersion,
	}
	for _, opt := range opts {
		opt(p)
	}

	callerOpts := []transport.CallerOption{}
	if cfg.Destination.ResourceGroup != "" {
		callerOpts = append(callerOpts, transport.WithResourceGroup(cfg.Destination.ResourceGroup))
	}
	if p.httpClient != nil {
		callerOpts = append(callerOpts, transport.WithHTTPClient(p.httpClient))
	}
	p.caller = transport.NewCaller(cfg.Destination.BaseURL, transport.StaticToken(cfg.Destination.Token), callerOpts...)

	if p.resolver == nil {
		p.resolver = config.NewAPIResolver(p.caller, p.logger)
	}

	if cfg.RecorderPath != "" {
		store, err := recorder.Open(cfg.RecorderPath)
		if err != nil {
			return nil, err
		}
		p.recorder = store
	}

	p.registry = registry.New(p.newLanguageStrategy, p.newEmbeddingStrategy)
	return p, nil
}

func (p *Provider) newLanguageStrategy(backend domain.Backend) (domain.LanguageStrategy, error) {
	switch backend {
	case domain.BackendOrchestration:
		return orchestration.NewStrategy(orchestration.NewClient(p.caller), p.logger), nil
	case domain.BackendFoundationModels:
		return fm.NewStrategy(fm.NewClient(p.caller, p.apiVersion), p.logger), nil
	default:
		return nil, &domain.ValidationError{Field: "backend", Message: "unknown backend"}
	}
}

func (p *Provider) newEmbeddingStrategy(backend domain.Backend) (domain.EmbeddingStrategy, error) {
	switch backend {
	case domain.BackendOrchestration:
		return orchestration.NewEmbedder(orchestration.NewClient(p.caller), p.logger), nil
	case domain.BackendFoundationModels:
		return fm.NewEmbedder(fm.NewClient(p.caller, p.apiVersion), p.logger), nil
	default:
		return nil, &domain.ValidationError{Field: "backend", Message: "unknown backend"}
	}
}

// record persists a call record when a recorder is configured. Recording
// failures are logged, never surfaced to the caller.
func (p *Provider) record(record *recorder.Record) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Save(context.Background(), record); err != nil {
		p.logger.Warn("failed to record call", slog.String("error", err.Error()))
	}
}

// Close releases resources held by the provider, currently the recorder
// database.
func (p *Provider) Close() error {
	if p.recorder == nil {
		return nil
	}
	return p.recorder.Close()
}

// Reset drops the cached strategy instances. Existing model handles keep
// working and pick up fresh instances on their next call.
func (p *Provider) Reset() {
	p.registry.Clear()
}

// validateHandle runs the eager checks shared by both handle kinds.
func validateHandle(backend domain.Backend, cfg domain.StrategyConfig, settings domain.Settings) error {
	if err := config.ValidateStrategyConfig(cfg); err != nil {
		return err
	}
	if err := config.ValidateSettings(settings); err != nil {
		return err
	}
	if settings != nil && settings.API() != backend {
		return &domain.CapabilityError{
			Feature:         "settings",
			ActiveBackend:   backend,
			RequiredBackend: settings.API(),
		}
	}
	return nil
}

// LanguageModel creates a chat-completion handle on the given backend.
// Settings and model configuration are validated eagerly; deployment
// resolution is deferred to the first call and memoized on the handle.
func (p *Provider) LanguageModel(backend Backend, cfg ModelConfig, settings Settings) (*LanguageModel, error) {
	if err := validateHandle(backend, cfg, settings); err != nil {
		return nil, err
	}
	return &LanguageModel{provider: p, backend: backend, cfg: cfg, settings: settings}, nil
}

// EmbeddingModel creates an embedding handle on the given backend.
func (p *Provider) EmbeddingModel(backend Backend, cfg ModelConfig, settings Settings) (*EmbeddingModel, error) {
	if err := validateHandle(backend, cfg, settings); err != nil {
		return nil, err
	}
	return &EmbeddingModel{provider: p, backend: backend, cfg: cfg, settings: settings}, nil
}
