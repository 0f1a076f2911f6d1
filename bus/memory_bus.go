package bus

import (
	"fmt"
	"sync"

	"github.com/sat8bit/machi/notify"
)

// MemoryBus は bus.Bus インターフェースのインメモリ実装です。
// 内部で購読者のチャネルリストを保持し、ブロードキャストされた通知を
// すべての購読者に配送します。
type MemoryBus struct {
	// 購読しているすべてのチャネルのスライス
	subscribers []chan *notify.Notification

	// subscribers スライスを保護するための読み書きミューテックス
	mu sync.RWMutex

	// バスが閉じられているかどうかを示すフラグ
	isClosed bool
}

// NewMemoryBus は新しい MemoryBus を生成します。
func NewMemoryBus() Bus {
	return &MemoryBus{
		subscribers: make([]chan *notify.Notification, 0),
	}
}

// Broadcast は通知をすべての購読者にブロードキャストします。
// この操作はノンブロッキングです。もし購読者のチャネルバッファが一杯の場合、
// その購読者への通知はドロップされます。遅い購読者が他の購読者への
// 配送を妨げることはありません。同一購読者への配送順序は保たれます。
func (b *MemoryBus) Broadcast(n *notify.Notification) error {
	// 読み取りロックを使用することで、複数のブロードキャストが並行して実行できます。
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.isClosed {
		return fmt.Errorf("bus is closed")
	}

	// すべての購読者に通知を送信
	for _, ch := range b.subscribers {
		select {
		case ch <- n:
			// 通知を正常に送信
		default:
			// 購読者の受信が追いついていない場合。ここでは通知をドロップする。
		}
	}

	return nil
}

// Subscribe は新しい購読者を追加し、通知を受信するためのチャネルを返します。
func (b *MemoryBus) Subscribe() <-chan *notify.Notification {
	// 書き込みロックを使用することで、購読者の追加中に他の操作が実行されるのを防ぎます。
	b.mu.Lock()
	defer b.mu.Unlock()

	// 新しい購読者のためのチャネルを作成（バッファを持たせる）
	newSubscriberCh := make(chan *notify.Notification, 16)

	if b.isClosed {
		// バスが既に閉じられている場合は、閉じたチャネルを返す
		close(newSubscriberCh)
		return newSubscriberCh
	}

	b.subscribers = append(b.subscribers, newSubscriberCh)

	return newSubscriberCh
}

// Unsubscribe は購読者をレジストリから取り除き、そのチャネルをクローズします。
// 接続の切れたWebSocketクライアントなどを取り除くために使います。
// 登録されていないチャネルを渡した場合は何もしません。
func (b *MemoryBus) Unsubscribe(ch <-chan *notify.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed {
		return
	}

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close はバスを閉じ、すべての購読者チャネルをクローズします。
// アプリケーションの安全なシャットダウンのために使います。
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isClosed {
		b.isClosed = true
		for _, ch := range b.subscribers {
			close(ch)
		}
		// メモリリークを防ぐためにスライスをクリア
		b.subscribers = nil
	}
}

// コンパイル時に Bus インターフェースを実装していることを保証します。
var _ Bus = (*MemoryBus)(nil)
