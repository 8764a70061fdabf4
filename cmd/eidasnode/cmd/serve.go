package cmd

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driven/cache"
	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driven/consent"
	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driven/correlation"
	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driven/engine"
	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driven/metadata"
	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driven/metrics"
	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driven/national"
	"github.com/willp-bl/eidas-mirror-sub003/internal/adapters/driving/httpserver"
	"github.com/willp-bl/eidas-mirror-sub003/internal/config"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/orchestrator"
)

const cacheCleanupInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	key, err := engine.LoadPrivateKey(cfg.Keys.SigningKey)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	cert, err := engine.LoadCertificate(cfg.Keys.SigningCertificate)
	if err != nil {
		return fmt.Errorf("load signing certificate: %w", err)
	}
	var anchors []*x509.Certificate
	for _, path := range cfg.Trust.Anchors {
		anchor, err := engine.LoadCertificate(path)
		if err != nil {
			return fmt.Errorf("load trust anchor %s: %w", path, err)
		}
		anchors = append(anchors, anchor)
	}
	eng := engine.NewXMLDsigEngine(key, cert, anchors, logger)

	consentKey, err := engine.LoadPrivateKey(cfg.Keys.ConsentKey)
	if err != nil {
		return fmt.Errorf("load consent key: %w", err)
	}

	recorder := metrics.NewPrometheusMetricsRecorder()

	kv := cache.NewWithCleanup(cacheCleanupInterval)
	defer func() { _ = kv.Close() }()

	trust := metadata.NewTrustStore(kv,
		metadata.WithLogger(logger),
		metadata.WithMetricsRecorder(recorder),
		metadata.WithCacheTTL(cfg.Trust.CacheTTL.Std()),
		metadata.WithHTTPSOnly(cfg.TrustHTTPSOnly()),
		metadata.WithFetchEnabled(cfg.TrustFetchEnabled()),
		metadata.WithSignatureCheck(cfg.TrustSignatureCheck()),
		metadata.WithSignatureValidator(eng.VerifyDescriptor),
		metadata.WithTrustedExceptions(cfg.Trust.TrustedExceptions...),
	)
	if cfg.Trust.MetadataDir != "" {
		loader := metadata.NewFileLoader(cfg.Trust.MetadataDir, trust, logger)
		if err := loader.Load(); err != nil {
			return fmt.Errorf("load static metadata: %w", err)
		}
	}

	correlations := correlation.New(kv, cfg.Policy.RequestTTL.Std(), logger)

	catalog := domain.NewAttributeCatalog(
		domain.WithNationalMapping(domain.DefaultNationalMapping()),
		domain.WithDerivations(domain.DefaultDerivations()),
		domain.WithMandatorySets(domain.DefaultMandatorySets()),
	)

	policy := cfg.OrchestratorPolicy()
	consentTokens := consent.NewJWTTokenService(consentKey, cfg.Node.Issuer, cfg.Consent.TokenTTL.Std())

	roleOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(recorder),
		orchestrator.WithConsentTokens(consentTokens),
	}

	binding := func(role orchestrator.Role, extra ...orchestrator.Option) *httpserver.RoleBinding {
		opts := append(append([]orchestrator.Option{}, roleOpts...), extra...)
		svc := orchestrator.New(role, cfg.Node.Issuer, eng, trust, correlations, catalog, policy, opts...)
		return &httpserver.RoleBinding{
			Service:    svc,
			Translator: orchestrator.NewTranslator(cfg.Node.Issuer, eng, correlations, recorder, logger),
		}
	}

	serverOpts := []httpserver.Option{httpserver.WithLogger(logger)}
	if cfg.Roles.Connector {
		serverOpts = append(serverOpts, httpserver.WithConnector(binding(orchestrator.RoleConnector)))
	}
	if cfg.Roles.ProxyService {
		handler := national.NewRedirectHandler(cfg.Node.Country, cfg.Proxy.IDPURL)
		serverOpts = append(serverOpts, httpserver.WithProxyService(
			binding(orchestrator.RoleProxyService, orchestrator.WithNationalHandlers(handler))))
	}
	if cfg.Node.MetadataFile != "" {
		doc, err := os.ReadFile(cfg.Node.MetadataFile)
		if err != nil {
			return fmt.Errorf("read node metadata file: %w", err)
		}
		serverOpts = append(serverOpts, httpserver.WithMetadataDocument(doc))
	}

	edge, err := httpserver.New(httpserver.Routes{
		CounterpartMetadataURLs:     cfg.Routes.Counterparts,
		ServiceProviderMetadataURLs: cfg.ServiceProviderMetadataURLs(),
	}, serverOpts...)
	if err != nil {
		return err
	}

	srv := edge.Listen(cfg.Node.Listen)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("node listening",
			zap.String("addr", cfg.Node.Listen),
			zap.String("country", cfg.Node.Country),
			zap.Bool("connector", cfg.Roles.Connector),
			zap.Bool("proxy_service", cfg.Roles.ProxyService),
		)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
