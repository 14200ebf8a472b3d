package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"photo-styler/internal/app"
	"photo-styler/internal/config"
	"photo-styler/internal/handlers"
	"photo-styler/internal/httpclient"
	"photo-styler/internal/mediagroup"
	"photo-styler/internal/telegram"
)

// updates handled at once; each may be downloading a photo
const updateWorkers = 4

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.RequireTelegram()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init failed", "err", err)
		os.Exit(1)
	}

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpclient.New(app.HTTPOptions(cfg, logger)),
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	handler, err := handlers.New(handlers.Options{
		Telegram:   tg,
		Controller: core.Controller,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("handler init failed", "err", err)
		os.Exit(1)
	}

	workers := new(errgroup.Group)
	workers.SetLimit(updateWorkers)

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush: func(group mediagroup.Group) {
			workers.Go(func() error {
				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				handler.HandleMediaGroup(reqCtx, group)
				return nil
			})
		},
	})
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username())

	g, gctx := errgroup.WithContext(ctx)
	updates := tg.Updates(gctx, 30*time.Second)

	g.Go(func() error {
		return handler.Run(gctx)
	})
	g.Go(func() error {
		defer aggregator.Stop()

		for {
			select {
			case <-gctx.Done():
				logger.Info("shutting down", "pending_albums", aggregator.Pending())
				return nil
			case update, ok := <-updates:
				if !ok {
					return errors.New("updates channel closed")
				}

				workers.Go(func() error {
					reqCtx, cancel := context.WithTimeout(gctx, cfg.RequestTimeout)
					defer cancel()

					if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("handle update failed", "err", err)
					}
					return nil
				})
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("bot stopped", "err", err)
	}
	_ = workers.Wait()
}
