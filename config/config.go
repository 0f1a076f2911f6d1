// Package config は、環境変数からのアプリケーション設定を提供します。
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config は、machi の実行時設定です。すべて環境変数から読み込まれます。
type Config struct {
	// Addr は、HTTPサーバーの待ち受けアドレスです。
	Addr string `env:"MACHI_ADDR" envDefault:":8000"`

	// DataDir は、住人ファイル・世界ファイル・ログ・履歴DBの置き場所です。
	DataDir string `env:"MACHI_DATA_DIR" envDefault:"./data"`

	// 生成器（Vertex AI）の設定。
	ProjectID string `env:"PROJECT_ID,required"`
	Location  string `env:"LOCATION,required"`
	Model     string `env:"MODEL" envDefault:"gemini-2.5-flash-lite"`

	// GeneratorTimeout は、生成器1呼び出しあたりの期限です。
	GeneratorTimeout time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"120s"`

	// EventFailureMode は、イベント単位の失敗方針です（skip / abort）。
	EventFailureMode string `env:"EVENT_FAILURE_MODE" envDefault:"skip"`

	// KeepAliveInterval は、WebSocket購読者への死活監視の間隔です。
	KeepAliveInterval time.Duration `env:"KEEP_ALIVE_INTERVAL" envDefault:"30s"`

	// FeedURL が設定されていると、その日のプランにRSSの見出しを注入します。
	FeedURL   string `env:"FEED_URL"`
	FeedLimit int    `env:"FEED_LIMIT" envDefault:"3"`

	// InteractionRounds は、交流バッチ1回あたりの往復数です。
	InteractionRounds int `env:"INTERACTION_ROUNDS" envDefault:"3"`

	// DailyAtMidnight を有効にすると、プロセス内で毎日0時にティックを実行します。
	// 既定は無効で、スケジューリングは外部（cron等）に任せます。
	DailyAtMidnight bool `env:"DAILY_AT_MIDNIGHT"`
}

// Load は、環境変数から Config を読み込みます。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}
