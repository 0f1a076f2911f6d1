package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	buspkg "github.com/sat8bit/machi/bus"
	"github.com/sat8bit/machi/buslog"
	"github.com/sat8bit/machi/character"
	"github.com/sat8bit/machi/config"
	"github.com/sat8bit/machi/configs"
	"github.com/sat8bit/machi/fetcher"
	"github.com/sat8bit/machi/history"
	"github.com/sat8bit/machi/llm"
	"github.com/sat8bit/machi/server"
	"github.com/sat8bit/machi/sim"
	"github.com/sat8bit/machi/tick"
	"github.com/sat8bit/machi/topic"
	"github.com/sat8bit/machi/world"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C シグナルで cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	bus := buspkg.NewMemoryBus()
	defer bus.Close()

	// ログはstderrとバスの両方へ。バス側はWebSocket購読者がそのまま観測できる。
	slog.SetDefault(slog.New(buslog.NewBusHandler(bus, slog.NewTextHandler(os.Stderr, nil))))

	gemini := llm.NewGemini(ctx, cfg.ProjectID, cfg.Location, cfg.Model)

	store := character.NewFileStore(filepath.Join(cfg.DataDir, "characters"), gemini, bus)

	// --- World をロードするか、無ければ今日の日付で立ち上げる ---
	worldPath := filepath.Join(cfg.DataDir, "world.json")
	w, err := world.LoadFromFile(worldPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load world: %v", err)
		}
		w = &world.World{
			Date:     time.Now().Format(world.DateLayout),
			Events:   []world.Event{},
			Weathers: []world.Weather{},
		}
		if err := w.Save(worldPath); err != nil {
			log.Fatalf("failed to bootstrap world: %v", err)
		}
		slog.Info("bootstrapped new world", "date", w.Date)
	}

	// --- 住人がひとりもいなければ、埋め込みのシードから生成する ---
	if all, err := store.GetAll(ctx); err != nil {
		log.Fatalf("failed to load characters: %v", err)
	} else if len(all) == 0 {
		notes, err := configs.SeedNotes()
		if err != nil {
			log.Fatalf("failed to load seed notes: %v", err)
		}
		for _, note := range notes {
			c, err := store.CreateNew(ctx, note)
			if err != nil {
				slog.Error("failed to seed character", "error", err)
				continue
			}
			slog.Info("seeded character", "id", c.ID(), "name", c.Name())
		}
	}

	var topics topic.Fetcher
	if cfg.FeedURL != "" {
		topics = fetcher.NewRSSFetcher(cfg.FeedURL, cfg.FeedLimit)
	}

	simulator := sim.NewSimulator(w, worldPath, store, gemini, bus, tick.NewMutexManager(), sim.Options{
		Topics:           topics,
		GeneratorTimeout: cfg.GeneratorTimeout,
		FailureMode:      sim.FailureMode(cfg.EventFailureMode),
		LogDir:           filepath.Join(cfg.DataDir, "logs"),
	})

	hist, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		log.Fatalf("failed to open history: %v", err)
	}
	defer hist.Close()
	runner := history.NewRunner(store, gemini, hist, tick.NewMutexManager(), cfg.InteractionRounds)

	srv := server.New(simulator, store, hist, runner, bus, cfg.KeepAliveInterval)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", "error", err)
		}
	}()

	if cfg.DailyAtMidnight {
		go midnightLoop(ctx, simulator)
	}

	slog.Info("machi listening", "addr", cfg.Addr, "dataDir", cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed: %v", err)
	}
}

// midnightLoop は、毎日0時に日次ティックを実行します。
// スケジューリングは本来外部の責務であり、これは単体運用向けの便利機能です。
func midnightLoop(ctx context.Context, s *sim.Simulator) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		slog.Info("running scheduled daily tick")
		if _, err := s.SimOneDay(ctx); err != nil {
			slog.Error("scheduled tick failed", "error", err)
		}
	}
}
