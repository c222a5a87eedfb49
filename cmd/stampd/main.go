// Command stampd serves the stamping API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/wudi/pdfstamp/adsource"
	"github.com/wudi/pdfstamp/compliance"
	"github.com/wudi/pdfstamp/compose"
	"github.com/wudi/pdfstamp/config"
	"github.com/wudi/pdfstamp/layout"
	"github.com/wudi/pdfstamp/ledger"
	"github.com/wudi/pdfstamp/observability"
	"github.com/wudi/pdfstamp/server"
	"github.com/wudi/pdfstamp/stamp"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file (PDFSTAMP_* variables override it)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stampd: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "stampd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := observability.NewLogrusFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rec, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return err
	}

	var cleanups []func()
	cleanups = append(cleanups, func() {
		if err := rec.Close(); err != nil {
			logger.Warn("ledger close failed", observability.Error("error", err))
		}
	})

	ads, closeAds, err := newAdSource(cfg, logger)
	if err != nil {
		return err
	}
	if closeAds != nil {
		cleanups = append(cleanups, closeAds)
	}

	lopts := layoutOptions(cfg.Layout)
	dopts := []stamp.DispatcherOption{
		stamp.WithLogger(logger),
		stamp.WithTracer(observability.NewLogTracer(logger)),
		stamp.WithLayoutOptions(lopts...),
	}
	if cfg.ValidateOutput {
		dopts = append(dopts, stamp.WithValidator(compliance.NewValidator()))
	}
	dispatcher := stamp.NewDispatcher(dopts...)
	pipeline := compose.NewPipeline(
		compose.WithLogger(logger),
		compose.WithAdBaseURL(cfg.Ads.BaseURL),
		compose.WithLayoutOptions(lopts...),
	)

	sopts := []server.Option{
		server.WithLogger(logger),
		server.WithLedger(rec),
		server.WithAds(ads, cfg.Ads.URL),
		server.WithStorageRoot(cfg.Storage.Root),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if cfg.Auth.Enabled {
		key, err := server.LoadPublicKey(cfg.Auth.PublicKeyPath)
		if err != nil {
			return err
		}
		sopts = append(sopts, server.WithAuthenticator(server.NewAuthenticator(key, cfg.Auth.Audience, cfg.Auth.Issuer)))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(dispatcher, pipeline, sopts...).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}
	return runWithGracefulShutdown(srv, logger, func() {
		for _, c := range cleanups {
			c()
		}
	}, cfg.Server.ShutdownGrace.Std())
}

func layoutOptions(cfg config.Layout) []layout.Option {
	var opts []layout.Option
	if cfg.FontSize > 0 {
		opts = append(opts, layout.WithDefaultFontSize(cfg.FontSize))
	}
	if cfg.LineHeight > 0 {
		opts = append(opts, layout.WithLineHeight(cfg.LineHeight))
	}
	return opts
}

// newAdSource chains the HTTP fetcher with the optional eligibility script
// and Redis cache. The cache sits outermost so filtered results are cached.
func newAdSource(cfg config.Config, logger observability.Logger) (adsource.Source, func(), error) {
	var src adsource.Source = adsource.NewFetcher(
		adsource.WithTimeout(cfg.Ads.Timeout.Std()),
		adsource.WithLogger(logger),
	)
	if cfg.Ads.Script != "" {
		filter, err := adsource.NewScriptFilter(src, cfg.Ads.Script)
		if err != nil {
			return nil, nil, fmt.Errorf("ads script: %w", err)
		}
		src = filter
	}
	if cfg.Cache.Host == "" {
		return src, nil, nil
	}
	client := adsource.NewRedisClient(cfg.Cache.Addr(), cfg.Cache.PW, cfg.Cache.DB)
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close failed", observability.Error("error", err))
		}
	}
	return adsource.NewRedisCache(src, client, cfg.Cache.TTL.Std(), logger), closeFn, nil
}
