package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amanabot/amana/config"
	"github.com/amanabot/amana/internal"
	"github.com/amanabot/amana/internal/clients"
	"github.com/amanabot/amana/internal/screener"
	"github.com/amanabot/amana/internal/storage/compliance"
)

func newRootCmd(logger *zap.Logger) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "amana",
		Short:         "Halal LLM trading agent for equities and crypto",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to yaml config")

	rootCmd.AddCommand(newRunCmd(logger, &configPath))
	rootCmd.AddCommand(newRunOnceCmd(logger, &configPath))
	rootCmd.AddCommand(newStatusCmd(&configPath))
	rootCmd.AddCommand(newScreenCmd(logger, &configPath))

	return rootCmd
}

func domainsFor(cfg config.Config, domainFlag string) (equity, crypto bool, err error) {
	switch domainFlag {
	case "both":
		return cfg.Equity.Enabled, cfg.Crypto.Enabled, nil
	case "equity":
		if !cfg.Equity.Enabled {
			return false, false, errors.New("equity domain is disabled in config")
		}
		return true, false, nil
	case "crypto":
		if !cfg.Crypto.Enabled {
			return false, false, errors.New("crypto domain is disabled in config")
		}
		return false, true, nil
	default:
		return false, false, errors.Errorf("unknown domain %q, expected equity, crypto or both", domainFlag)
	}
}

func newRunCmd(logger *zap.Logger, configPath *string) *cobra.Command {
	var domainFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading bots until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			runEquity, runCrypto, err := domainsFor(cfg, domainFlag)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			if runEquity {
				bot, err := internal.NewEquityBot(cfg, logger.Named("equity"))
				if err != nil {
					return errors.Wrap(err, "build equity bot")
				}
				defer bot.Close()
				g.Go(func() error { return bot.Run(ctx) })
			}
			if runCrypto {
				bot, err := internal.NewCryptoBot(cfg, logger.Named("crypto"))
				if err != nil {
					return errors.Wrap(err, "build crypto bot")
				}
				defer bot.Close()
				g.Go(func() error { return bot.Run(ctx) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domainFlag, "domain", "both", "which bots to run: equity, crypto or both")
	return cmd
}

func newRunOnceCmd(logger *zap.Logger, configPath *string) *cobra.Command {
	var domainFlag string

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Execute a single trading cycle per domain and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			runEquity, runCrypto, err := domainsFor(cfg, domainFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if runEquity {
				bot, err := internal.NewEquityBot(cfg, logger.Named("equity"))
				if err != nil {
					return errors.Wrap(err, "build equity bot")
				}
				err = bot.RunOnce(ctx)
				bot.Close()
				if err != nil {
					return err
				}
			}
			if runCrypto {
				bot, err := internal.NewCryptoBot(cfg, logger.Named("crypto"))
				if err != nil {
					return errors.Wrap(err, "build crypto bot")
				}
				err = bot.RunOnce(ctx)
				bot.Close()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domainFlag, "domain", "both", "which domains to cycle: equity, crypto or both")
	return cmd
}

func newScreenCmd(logger *zap.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "screen",
		Short: "Refresh halal screening caches and print the compliant universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if cfg.Equity.Enabled {
				symbols, err := screenEquities(ctx, cfg, logger)
				if err != nil {
					return err
				}
				fmt.Println(renderSymbolList("Halal equities", symbols))
			}
			if cfg.Crypto.Enabled {
				assets, err := screenCrypto(ctx, cfg, logger)
				if err != nil {
					return err
				}
				fmt.Println(renderSymbolList("Halal crypto assets", assets))
			}
			return nil
		},
	}
}

func screenEquities(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]string, error) {
	store, err := compliance.NewWALStore(equityStoreDir(cfg, "compliance"))
	if err != nil {
		return nil, errors.Wrap(err, "open equity compliance store")
	}
	defer store.Close()

	var provider screener.EquityProvider
	if cfg.Screening.ZoyaAPIKey != "" {
		provider = clients.NewZoyaClient(cfg.Screening.ZoyaAPIKey, cfg.Screening.ZoyaSandbox, logger)
	}
	screen := screener.NewEquityScreener(store, provider, cfg.Screening.CacheMaxAge, logger)

	if err := screen.EnsureCache(ctx, cfg.Equity.Watchlist); err != nil {
		return nil, err
	}
	return screen.HalalSymbols(), nil
}

func screenCrypto(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]string, error) {
	store, err := compliance.NewWALStore(cryptoStoreDir(cfg, "compliance"))
	if err != nil {
		return nil, errors.Wrap(err, "open crypto compliance store")
	}
	defer store.Close()

	metadata := clients.NewCoinGeckoClient(cfg.Screening.CoinGeckoAPIKey, logger)
	screen := screener.NewCryptoScreener(store, metadata, 0, nil, nil, cfg.Screening.CacheMaxAge, logger)

	if err := screen.RefreshScreening(ctx); err != nil {
		return nil, err
	}
	return screen.HalalAssets(), nil
}
