package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/one-of-fifteen/backend/internal/config"
	"github.com/one-of-fifteen/backend/internal/httpapi"
	"github.com/one-of-fifteen/backend/internal/questions"
	"github.com/one-of-fifteen/backend/internal/registry"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	newSource := func() questions.Source {
		if cfg.QuestionAPIURL != "" {
			return questions.NewGenerator(cfg.QuestionAPIURL, cfg.QuestionAPIKey)
		}
		return questions.NewBank(nil)
	}

	reg := registry.New(ctx, newSource, cfg.AnswerTimeout, log)
	// The shared game every client of this deployment connects to.
	reg.Ensure(cfg.GameID)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.SetupRoutes(reg, cfg.GameID, log),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("game", cfg.GameID))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("shut down cleanly")
}
