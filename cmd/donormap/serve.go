package main

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/donormap/internal/config"
	"github.com/vbonduro/donormap/internal/directory"
	"github.com/vbonduro/donormap/internal/geo"
	"github.com/vbonduro/donormap/internal/logging"
	"github.com/vbonduro/donormap/internal/metrics"
	"github.com/vbonduro/donormap/internal/service"
	"github.com/vbonduro/donormap/internal/web"
	"github.com/vbonduro/donormap/internal/web/templates"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the donor map web server",
	RunE:  runServe,
}

var serveArgs struct {
	secureCookies bool
}

func init() {
	serveCmd.Flags().BoolVar(&serveArgs.secureCookies, "secure-cookies", false, "mark session cookies Secure (serve behind TLS)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	donors, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open donor store", "error", err)
		return err
	}
	defer closeStore()

	m := metrics.NewManager()

	views := directory.NewRegistry(directory.ViewConfig{
		Directory: donors,
		Center:    cfg.DefaultCenter(),
		Logger:    logger,
		Metrics:   m,
	}, cfg.ViewIdleTimeout)
	defer views.Close()
	if cfg.ViewIdleTimeout > 0 {
		go views.Run(ctx, sweepInterval(cfg.ViewIdleTimeout))
	}

	var ipLookup *geo.IPLookup
	if cfg.GeoLookupURL != "" {
		ipLookup = geo.NewIPLookup(cfg.GeoLookupURL, cfg.GeoTimeout)
		logger.Info("ip geolocation enabled", "url", cfg.GeoLookupURL)
	}

	server := web.NewServer(web.Options{
		Views:               views,
		Donors:              service.NewDonorService(donors, m, logger),
		Templates:           templates.FS,
		IPLookup:            ipLookup,
		Sessions:            web.NewSessionStore([]byte(cfg.SessionKey), serveArgs.secureCookies),
		Metrics:             m,
		Logger:              logger,
		IdentityUserHeader:  cfg.IdentityUserHeader,
		IdentityEmailHeader: cfg.IdentityEmailHeader,
	})

	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// sweepInterval checks for idle views a few times per timeout period.
func sweepInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
