// Package world は、シミュレーション世界の状態（日付・今日のイベント・天気）と
// その永続化を担います。World はプロセスにつき1つだけ生きており、
// 単一ファイルとして保存され、まるごと観測者へブロードキャストされます。
package world

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DateLayout は、世界の日付の表現形式です。
const DateLayout = "2006-01-02"

// Weather は、ある都市のその日の天気です。
type Weather struct {
	CityName string `json:"city_name"`
	Weather  string `json:"weather"`
}

// Event は、その日に起きた1件の出来事です。
// 精緻化（elaboration）の後は description だけが置き換わり、
// 他のフィールドは不変として扱います。
type Event struct {
	IDOfCharacterInvolved []int  `json:"id_of_character_involved"`
	Location              string `json:"location,omitempty"`
	Date                  string `json:"date"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time,omitempty"`
	Description           string `json:"description"`
}

// World は、現在のシミュレーション日付と、その日のイベント・天気のリストです。
type World struct {
	Date     string    `json:"date"`
	Events   []Event   `json:"events"`
	Weathers []Weather `json:"weathers"`
}

// LoadFromFile は、永続化された World を読み込みます。
// ファイルが存在しない場合は os.ErrNotExist を含むエラーを返します。
func LoadFromFile(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("world.LoadFromFile: %w", err)
	}
	return FromJSON(string(data))
}

// FromJSON は、JSON文字列をスキーマ検証してから World に変換します。
func FromJSON(jsonStr string) (*World, error) {
	if err := Validate([]byte(jsonStr)); err != nil {
		return nil, fmt.Errorf("world.FromJSON: %w", err)
	}
	var w World
	if err := json.Unmarshal([]byte(jsonStr), &w); err != nil {
		return nil, fmt.Errorf("world.FromJSON: %w", err)
	}
	return &w, nil
}

// Save は、World を単一ファイルとして書き出します。
// 一時ファイルに書いてからリネームするため、途中状態が観測されることはありません。
func (w *World) Save(path string) error {
	// nil のリストは null として書かれ、次回ロードの検証に落ちる
	if w.Events == nil {
		w.Events = []Event{}
	}
	if w.Weathers == nil {
		w.Weathers = []Weather{}
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("world.Save: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("world.Save: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".world-*.json")
	if err != nil {
		return fmt.Errorf("world.Save: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("world.Save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("world.Save: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("world.Save: %w", err)
	}
	return nil
}

// CurrentDate は、世界の現在日付を返します。
func (w *World) CurrentDate() string {
	return w.Date
}

// NextDate は、現在日付のちょうど1日後を返します。World は変更しません。
func (w *World) NextDate() (string, error) {
	t, err := time.Parse(DateLayout, w.Date)
	if err != nil {
		return "", fmt.Errorf("world.NextDate: invalid date %q: %w", w.Date, err)
	}
	return t.AddDate(0, 0, 1).Format(DateLayout), nil
}

// AdvanceDate は、日付をちょうど1日進めます。副作用は日付の更新のみです。
func (w *World) AdvanceDate() error {
	next, err := w.NextDate()
	if err != nil {
		return err
	}
	w.Date = next
	return nil
}
