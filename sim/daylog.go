package sim

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// dayLog は、その日の生成器の生応答を日付ごとのファイルへ追記します。
// ベストエフォートであり、開けなくてもティックは止めません。
type dayLog struct {
	f *os.File
}

func (s *Simulator) openDayLog(date string) *dayLog {
	if s.opts.LogDir == "" {
		return &dayLog{}
	}
	if err := os.MkdirAll(s.opts.LogDir, 0755); err != nil {
		slog.Warn("failed to create log directory", "dir", s.opts.LogDir, "error", err)
		return &dayLog{}
	}
	path := filepath.Join(s.opts.LogDir, date+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Warn("failed to open day log", "path", path, "error", err)
		return &dayLog{}
	}
	return &dayLog{f: f}
}

func (l *dayLog) Printf(format string, args ...any) {
	if l.f == nil {
		return
	}
	fmt.Fprintf(l.f, format, args...)
}

func (l *dayLog) Close() {
	if l.f != nil {
		l.f.Close()
	}
}
