package character

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sat8bit/machi/jsonscan"
	"github.com/sat8bit/machi/llm"
	"github.com/sat8bit/machi/prompt"
)

// Coerce は、生のJSONバイト列をスキーマ検証し、Character に変換します。
// 検証に落ちた場合は修復プロトコルを1回だけ実行します。すなわち、
// 生データと現在のスキーマを生成器に渡して適合を指示し、応答を
// jsonscan で復元して再検証します。それでも落ちたら ErrDataIntegrity です。
// repaired は修復が行われたかを示し、呼び出し側は true のとき
// 修復済みレコードを新しい正本として永続化する責務を持ちます。
func Coerce(ctx context.Context, gen llm.LLM, data []byte) (c *Character, repaired bool, err error) {
	verr := Validate(data)
	if verr == nil {
		var out Character
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, false, fmt.Errorf("character.Coerce: %w", err)
		}
		return &out, false, nil
	}

	slog.Warn("character failed schema validation, attempting repair", "error", verr)

	resp, err := gen.Generate(ctx, prompt.FixCharacter(string(data), SchemaSource()))
	if err != nil {
		return nil, false, fmt.Errorf("character.Coerce: repair generation: %w", err)
	}

	raw, ok := jsonscan.Longest(resp)
	if !ok {
		return nil, false, fmt.Errorf("%w: no JSON recoverable from repair response", ErrDataIntegrity)
	}
	if err := Validate([]byte(raw)); err != nil {
		// 修復後の2度目の検証失敗は致命的なデータ整合性エラー
		return nil, false, fmt.Errorf("%w: repaired record still invalid: %v", ErrDataIntegrity, err)
	}

	var out Character
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	return &out, true, nil
}
