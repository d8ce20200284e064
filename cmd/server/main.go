package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/urfave/cli/v3"

	"stockverse/internal/api"
	"stockverse/internal/chat"
	"stockverse/internal/config"
	"stockverse/internal/dataset"
	"stockverse/internal/logger"
	"stockverse/internal/quote"
	"stockverse/internal/replay"
)

func main() {
	cmd := &cli.Command{
		Name:  "stockverse",
		Usage: "Replay historical OHLCV data as a live feed and proxy quote lookups",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   "configs/app.yaml",
			},
			&cli.StringFlag{
				Name:    "dataset",
				Aliases: []string{"d"},
				Usage:   "dataset source (csv file or sqlite database), overrides dataset.source",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if ds := cmd.String("dataset"); ds != "" {
		cfg.Dataset.Source = ds
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	mainLog := logger.Component(lg, "main")

	data, err := dataset.Load(ctx, dataset.Source{
		Path:   cfg.Dataset.Source,
		Format: cfg.Dataset.Format,
		Table:  cfg.Dataset.Table,
	})
	if err != nil {
		mainLog.WithError(err).Error("dataset load failed, refusing to serve")
		return err
	}
	mainLog.WithField("source", cfg.Dataset.Source).WithField("data_points", data.Len()).Info("dataset loaded")

	proxy, err := quote.NewProxy(quote.Config{
		BaseURL:         cfg.Proxy.BaseURL,
		Timeout:         time.Duration(cfg.Proxy.TimeoutMs) * time.Millisecond,
		UserAgent:       cfg.Proxy.UserAgent,
		DefaultInterval: cfg.Proxy.DefaultInterval,
		DefaultRange:    cfg.Proxy.DefaultRange,
		Aliases:         cfg.Proxy.Aliases,
	}, lg)
	if err != nil {
		return fmt.Errorf("quote proxy error: %w", err)
	}

	bot := chat.New(chat.Config{
		Enabled:    cfg.Chat.Enabled,
		Model:      cfg.Chat.Model,
		APIKey:     cfg.Chat.APIKey,
		BaseURL:    cfg.Chat.BaseURL,
		ByAzure:    cfg.Chat.ByAzure,
		APIVersion: cfg.Chat.APIVersion,
		TimeoutMs:  cfg.Chat.TimeoutMs,
	}, lg)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	api.RegisterRoutes(h.Engine, api.Deps{
		Replay: replay.NewService(data, lg),
		Proxy:  proxy,
		Bot:    bot,
		Feed:   cfg.Feed,
		CORS:   cfg.CORS,
		Log:    lg,
	})

	mainLog.WithField("addr", addr).WithField("chat", bot.Enabled()).Info("server starting")
	h.Spin()
	return nil
}
