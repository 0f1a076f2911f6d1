package tick

import (
	"context"
)

// Manager は、長時間走る操作のシングルフライト（同時に1つだけ）を管理します。
// 日次シミュレーションのように、実行中の1回が次の1回を排除すべき
// 操作のためのガードです。
type Manager interface {
	// Acquire は実行権を取得します。解放されるまでブロックします。
	Acquire(ctx context.Context) error

	// TryAcquire は実行権の即時取得を試みます。
	// 既に保持されている場合は false を返し、ブロックしません。
	TryAcquire() bool

	// Release は保持している実行権を解放します。
	Release()
}
