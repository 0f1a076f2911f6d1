package tick

import (
	"context"
	"fmt"
)

// MutexManager は tick.Manager の実装です。
// 内部でチャネルを使い、ミューテックスとして機能することで排他制御を実現します。
type MutexManager struct {
	// バッファサイズ1のチャネルをセマフォとして利用します。
	// このチャネルに書き込みができれば実行権を取得し、
	// このチャネルから読み込みができれば実行権を解放します。
	tickCh chan struct{}
}

// NewMutexManager は新しい MutexManager を生成します。
func NewMutexManager() Manager {
	m := &MutexManager{
		// バッファサイズ1のチャネルを作成します。
		// これにより、同時に1つのゴルーチンだけが実行権を取得できます。
		tickCh: make(chan struct{}, 1),
	}
	return m
}

// Acquire は実行権を取得します。
// 既に他の誰かが実行権を保持している場合、解放されるまでブロックします。
// context.Context を通じて、待機中にキャンセル操作を受け取ることができます。
func (m *MutexManager) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		// コンテキストがキャンセルされた場合（タイムアウトやシャットダウンなど）
		return fmt.Errorf("failed to acquire tick: %w", ctx.Err())
	case m.tickCh <- struct{}{}:
		// チャネルに書き込みが成功した場合、実行権取得成功
		return nil
	}
}

// TryAcquire は実行権の即時取得を試みます。ブロックしません。
func (m *MutexManager) TryAcquire() bool {
	select {
	case m.tickCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release は保持している実行権を解放します。
func (m *MutexManager) Release() {
	select {
	case <-m.tickCh:
		// チャネルから読み込むことで、バッファに空きを作り、
		// 他のゴルーチンが実行権を取得できるようにする。
	default:
		// もしチャネルが既に空の場合（AcquireしていないのにReleaseを呼んだ場合）、
		// 何もせず、パニックも起こさない。
	}
}

// コンパイル時に Manager インターフェースを実装していることを保証します。
var _ Manager = (*MutexManager)(nil)
