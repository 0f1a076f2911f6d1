// Package history は、住人同士の日次交流バッチの生成と、
// 追記専用の履歴ストアを提供します。
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Interaction は、2人の住人の1往復の交流です。
type Interaction struct {
	Character1 string `json:"character1"`
	Character2 string `json:"character2"`
	Message    string `json:"message"`
	Response   string `json:"response"`
}

// Batch は、ある日付の交流バッチです。
type Batch struct {
	Date         string        `json:"date"`
	Interactions []Interaction `json:"interactions"`
}

// Store は、交流履歴の追記専用ストアです。バッチ単位でしか書き込めず、
// 既存のバッチを書き換える操作は提供しません。
type Store struct {
	db *sql.DB
}

// Open は、指定パスのデータベースを開き、必要ならスキーマを初期化します。
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history.Open: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("history.Open: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history.Open: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS interaction_batches (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	date         TEXT NOT NULL,
	interactions TEXT NOT NULL
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history.Open: init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append は、1日分の交流バッチを履歴の末尾に追記します。
func (s *Store) Append(date string, interactions []Interaction) error {
	payload, err := json.Marshal(interactions)
	if err != nil {
		return fmt.Errorf("history.Append: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO interaction_batches (date, interactions) VALUES (?, ?)`,
		date, string(payload),
	); err != nil {
		return fmt.Errorf("history.Append: %w", err)
	}
	return nil
}

// All は、すべてのバッチを古い順に返します。
func (s *Store) All() ([]Batch, error) {
	rows, err := s.db.Query(`SELECT date, interactions FROM interaction_batches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("history.All: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var payload string
		if err := rows.Scan(&b.Date, &payload); err != nil {
			return nil, fmt.Errorf("history.All: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &b.Interactions); err != nil {
			return nil, fmt.Errorf("history.All: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history.All: %w", err)
	}
	return batches, nil
}

// Close は、データベースを閉じます。
func (s *Store) Close() error {
	return s.db.Close()
}
