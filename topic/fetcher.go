package topic

import "context"

// Fetcher は、外部のデータソースから、[]*Topic を取得するためのインターフェースです。
// 取得に失敗してもシミュレーション自体は止めない（話題なしで進める）のが
// 呼び出し側の約束です。
type Fetcher interface {
	Fetch(ctx context.Context) ([]*Topic, error)
}
