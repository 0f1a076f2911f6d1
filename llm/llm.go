package llm

import (
	"context"
)

// Role は、メッセージの話者区分です。
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// Message は、生成器へ渡すロール付きメッセージの1件です。
type Message struct {
	Role    Role
	Content string
}

// LLM は、ロール付きメッセージ列からテキスト補完を1件生成します。
// 返されるテキストは構造的に信用できない自由形式であり、
// 呼び出し側がパース・検証する責務を持ちます。
type LLM interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// System は system ロールのメッセージを生成するショートハンドです。
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User は user ロールのメッセージを生成するショートハンドです。
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
