package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"galleryvault/internal/catalog"
	"galleryvault/internal/config"
	"galleryvault/internal/crawler"
	"galleryvault/internal/download"
	"galleryvault/internal/logging"
	"galleryvault/internal/matcher"
	"galleryvault/internal/metrics"
	"galleryvault/internal/notifications"
	"galleryvault/internal/provider"
	"galleryvault/internal/providers"
	"galleryvault/internal/reconcile"
	"galleryvault/internal/registry"
	"galleryvault/internal/transport"
	"galleryvault/internal/transport/transmission"
)

// Services holds every long-lived component of one galleryvault runtime.
type Services struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *catalog.Store
	Metrics   *metrics.Metrics
	HTTP      *transport.Client
	Transfers map[string]transport.Transfer
	Registry  *registry.Registry
	Notifier  notifications.Service

	Matcher     *matcher.Service
	Pipeline    *download.Pipeline
	Crawler     *crawler.Dispatcher
	Folder      *crawler.Folder
	Verifier    *reconcile.Verifier
	Tracker     *reconcile.Tracker
	Redownloads *reconcile.Redownloads
}

// Option customizes New.
type Option func(*options)

type options struct {
	httpClient *http.Client
	transfers  map[string]transport.Transfer
	metrics    *metrics.Metrics
	notifier   notifications.Service
	extra      []provider.Registration
}

// WithHTTPClient replaces the net/http client used by providers and transports.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTransfers replaces the configured asynchronous transports.
func WithTransfers(transfers map[string]transport.Transfer) Option {
	return func(o *options) { o.transfers = transfers }
}

// WithMetrics supplies the metrics sink instead of building one from config.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithNotifier replaces the configured notification publisher.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) { o.notifier = n }
}

// WithProviders registers additional providers after the built-in ones.
func WithProviders(regs ...provider.Registration) Option {
	return func(o *options) { o.extra = append(o.extra, regs...) }
}

// New builds the runtime. The caller owns the result and must Close it.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("services: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	m := o.metrics
	if m == nil && cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	client := transport.NewClient(transport.Options{
		Retries:    cfg.Workflow.HTTPRetries,
		Timeout:    cfg.HTTPTimeout(),
		UserAgent:  cfg.Workflow.UserAgent,
		HTTPClient: o.httpClient,
		Logger:     logger,
	})

	transfers := o.transfers
	if transfers == nil {
		transfers = configuredTransfers(cfg, o.httpClient, logger)
	}

	reg := registry.New(cfg, provider.Context{
		Config:    cfg,
		HTTP:      client,
		Transfers: transfers,
		Logger:    logger,
	})
	regErr := providers.RegisterAll(reg)
	for _, extra := range o.extra {
		regErr = errors.Join(regErr, reg.Register(extra))
	}
	if regErr != nil {
		_ = store.Close()
		return nil, fmt.Errorf("register providers: %w", regErr)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	s := &Services{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Metrics:   m,
		HTTP:      client,
		Transfers: transfers,
		Registry:  reg,
		Notifier:  notifier,
	}

	engine := matcher.NewEngine(cfg, m, logger)
	s.Matcher = matcher.NewService(reg, engine, logger)
	s.Pipeline = download.New(cfg, store, reg, m, logger)
	s.Verifier = reconcile.NewVerifier(cfg, store, reg, m, logger)
	s.Pipeline.SetVerifier(func(ctx context.Context, archiveID int64) error {
		_, err := s.Verifier.VerifyArchive(ctx, archiveID)
		return err
	})
	s.Crawler = crawler.New(cfg, store, reg, s.Pipeline, m, logger)
	s.Folder = crawler.NewFolder(store, s.Matcher, logger)
	s.Tracker = reconcile.NewTracker(cfg, store, transfers, s.Verifier, m, logger)
	s.Redownloads = reconcile.NewRedownloads(store, s.Pipeline, logger)
	return s, nil
}

func configuredTransfers(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) map[string]transport.Transfer {
	transfers := map[string]transport.Transfer{}
	if cfg.Transmission.Enabled {
		client := transmission.New(transmission.Options{
			URL:        cfg.Transmission.URL,
			Username:   cfg.Transmission.Username,
			Password:   cfg.Transmission.Password,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		transfers[client.Name()] = client
	}
	return transfers
}

// TransferList returns the configured transports in name order.
func (s *Services) TransferList() []transport.Transfer {
	out := make([]transport.Transfer, 0, len(s.Transfers))
	for _, name := range sortedKeys(s.Transfers) {
		out = append(out, s.Transfers[name])
	}
	return out
}

// Crawl runs one crawl with the stored wanted filters.
func (s *Services) Crawl(ctx context.Context, urls []string, opts crawler.Options) (crawler.Summary, error) {
	filters, err := s.Store.ListWanted(ctx)
	if err != nil {
		return crawler.Summary{}, fmt.Errorf("load wanted filters: %w", err)
	}
	return s.Crawler.Crawl(ctx, urls, filters, opts)
}

// Close releases the catalog.
func (s *Services) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
