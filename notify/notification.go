package notify

import "time"

// Kind は、通知メッセージの種別を定義する型です。
type Kind string

const (
	// KindUpdate は、エンティティの状態が更新されたことを示します。
	KindUpdate Kind = "update"
	// KindKeepAlive は、死活監視のために定期的に送られる通知です。
	KindKeepAlive Kind = "keep_alive"
	// KindLog は、シミュレーションのログ行をそのまま流す通知です。
	KindLog Kind = "log"
)

// UpdatedType は、更新されたエンティティの種別です。
type UpdatedType string

const (
	TypeWorld     UpdatedType = "World"
	TypeCharacter UpdatedType = "Character"
	TypeEvent     UpdatedType = "Event"
)

// Notification は、観測者へ配送される1件の通知です。
// JSONの形はそのままWebSocketクライアントへ送られることを前提としています。
type Notification struct {
	Event        Kind        `json:"event"`
	UpdatedType  UpdatedType `json:"updated_type,omitempty"`
	UpdatedID    string      `json:"updated_id,omitempty"`
	UpdatedValue any         `json:"updated_value,omitempty"`
	At           time.Time   `json:"-"`
}

// Update は、エンティティ更新の通知を生成します。
func Update(t UpdatedType, id string, value any) *Notification {
	return &Notification{
		Event:        KindUpdate,
		UpdatedType:  t,
		UpdatedID:    id,
		UpdatedValue: value,
		At:           time.Now(),
	}
}

// KeepAlive は、死活監視用の通知を生成します。
func KeepAlive() *Notification {
	return &Notification{Event: KindKeepAlive, At: time.Now()}
}

// Log は、ログ行を運ぶ通知を生成します。
func Log(text string) *Notification {
	return &Notification{Event: KindLog, UpdatedValue: text, At: time.Now()}
}

// IsUpdate は、この通知がエンティティ更新かどうかを返します。
func (n *Notification) IsUpdate() bool {
	return n != nil && n.Event == KindUpdate
}
