// Package server は、コアを呼び出す薄いHTTPアダプタ群です。
// ルートはティックの起動・住人の取得・交流バッチの起動・履歴の取得と、
// リアルタイム購読のためのWebSocketエンドポイントを提供します。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sat8bit/machi/bus"
	"github.com/sat8bit/machi/character"
	"github.com/sat8bit/machi/history"
	"github.com/sat8bit/machi/sim"
)

// defaultIntroduceNote は、note クエリが無いときの案内メモです。
const defaultIntroduceNote = "A Chinese international senior student at UC Davis, living in " +
	"Davis, California, who loves to drink but gets drunk after even one beer."

// Server は、コアコンポーネントへの参照を束ねるHTTPアダプタです。
type Server struct {
	sim       *sim.Simulator
	store     character.Store
	history   *history.Store
	runner    *history.Runner
	bus       bus.Bus
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

// New は新しい Server を生成します。
func New(s *sim.Simulator, store character.Store, hist *history.Store, runner *history.Runner, b bus.Bus, keepAlive time.Duration) *Server {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &Server{
		sim:       s,
		store:     store,
		history:   hist,
		runner:    runner,
		bus:       b,
		keepAlive: keepAlive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes は、すべてのルートを登録した ServeMux を返します。
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleWorld)
	mux.HandleFunc("GET /sim", s.handleSim)
	mux.HandleFunc("GET /char/{id}", s.handleCharacter)
	mux.HandleFunc("GET /introduce_new_character", s.handleIntroduce)
	mux.HandleFunc("GET /daily-interactions", s.handleDailyInteractions)
	mux.HandleFunc("GET /interaction-history", s.handleInteractionHistory)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.World())
}

// handleSim は、日次ティックを1回実行します。ティック全体が長時間の
// 操作であることを呼び出し側が受け入れる前提の同期エンドポイントです。
func (s *Server) handleSim(w http.ResponseWriter, r *http.Request) {
	result, err := s.sim.SimOneDay(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, sim.ErrTickInProgress):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, sim.ErrGenerationParse), errors.Is(err, sim.ErrGeneratorTimeout):
			writeError(w, http.StatusBadGateway, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid character id"))
		return
	}
	c, err := s.store.LoadOne(r.Context(), id)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("character with id %d not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleIntroduce(w http.ResponseWriter, r *http.Request) {
	note := r.URL.Query().Get("note")
	if note == "" {
		note = defaultIntroduceNote
	}
	c, err := s.store.CreateNew(r.Context(), note)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDailyInteractions は、交流バッチの生成をバックグラウンドで起動します。
func (s *Server) handleDailyInteractions(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.runner.RunDaily(context.Background()); err != nil {
			slog.Error("daily interactions failed", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Daily interactions triggered"})
}

func (s *Server) handleInteractionHistory(w http.ResponseWriter, r *http.Request) {
	batches, err := s.history.All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if batches == nil {
		batches = []history.Batch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": batches})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
