package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sat8bit/machi/notify"
)

// 1回の書き込みに許す時間
const writeWait = 10 * time.Second

// handleWS は、接続をWebSocketへアップグレードし、バスの購読チャネルを
// そのままクライアントへ流し込みます。書き込みに失敗した購読者は
// レジストリから取り除かれ、他の購読者への配送には影響しません。
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	ch := s.bus.Subscribe()
	go s.writePump(conn, ch)
	go s.readPump(conn, ch)
}

// writePump は、購読チャネルからの通知と定期的なキープアライブを
// 1本のゴルーチンで直列に書き込みます。同一購読者への配送順序は
// これにより保たれます（FIFO）。
func (s *Server) writePump(conn *websocket.Conn, ch <-chan *notify.Notification) {
	ticker := time.NewTicker(s.keepAlive)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				// 購読解除またはバスのクローズ
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				slog.Info("dropping dead websocket subscriber", "error", err)
				s.bus.Unsubscribe(ch)
				return
			}
		case <-ticker.C:
			// 死んだ接続を刈り取るためのキープアライブ
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(notify.KeepAlive()); err != nil {
				s.bus.Unsubscribe(ch)
				return
			}
		}
	}
}

// readPump は、クライアントからの読み取りを消費し続け、
// 切断を検知したら購読を解除します。
func (s *Server) readPump(conn *websocket.Conn, ch <-chan *notify.Notification) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.bus.Unsubscribe(ch)
			conn.Close()
			return
		}
	}
}
