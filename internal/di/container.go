package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/auth"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/gmail"
	"github.com/mikey/phishing-detector/internal/heuristics"
	"github.com/mikey/phishing-detector/internal/logging"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSurfaceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register sender analyzer
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.SenderAnalyzer {
		h := cfg.GetHeuristics()
		logger.Info("Loaded sender heuristics",
			zap.Strings("whitelisted_domains", h.WhitelistedDomains),
			zap.Strings("suspicious_tlds", h.SuspiciousTLDs))
		return heuristics.NewAnalyzer(
			h.TyposquatPatterns,
			h.SuspiciousTLDs,
			h.MaxSubdomainDots,
			h.WhitelistedDomains,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register OAuth token store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *auth.TokenStore {
		g := cfg.GetGmail()
		return auth.NewTokenStore(g.CredentialsPath, g.TokenPath, g.RedirectPort, gmail.Scopes, logger)
	}); err != nil {
		return nil, err
	}

	// Register mail client
	if err := container.Provide(func(store *auth.TokenStore, logger *zap.Logger) core.MailClient {
		return gmail.NewClient(store, logger)
	}); err != nil {
		return nil, err
	}

	// Register detector service
	if err := container.Provide(func(
		classifier core.Classifier,
		mail core.MailClient,
		analyzer core.SenderAnalyzer,
		cacheRepo core.CacheRepository,
		cacheFactory *factory.CacheFactory,
		cfg *config.Config,
		logger *zap.Logger,
	) (*core.DetectorService, error) {
		cacheTTL, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		return core.NewDetectorService(
			classifier,
			mail,
			analyzer,
			cacheRepo,
			logger,
			cacheFactory.IsCacheEnabled(),
			cacheTTL,
			cfg.GetGmail().MarkAsRead,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register serving surface
	if err := container.Provide(func(f *factory.SurfaceFactory) (ports.Surface, error) {
		return f.CreateSurface()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
