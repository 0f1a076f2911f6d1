package character

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed character.schema.json
var schemaSource string

var (
	compileOnce sync.Once
	schema      *jsonschema.Schema
)

// SchemaSource は、Character のJSONスキーマ文字列を返します。
// 生成・修復プロンプトで現在のスキーマを生成器に伝えるために使います。
func SchemaSource() string {
	return schemaSource
}

// Validate は、生のJSONバイト列を Character のスキーマに対して検証します。
// 検証に通らないレコードは呼び出し側で修復プロトコルに回します。
func Validate(data []byte) error {
	compileOnce.Do(func() {
		schema = jsonschema.MustCompileString("character.schema.json", schemaSource)
	})
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("character.Validate: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("character.Validate: %w", err)
	}
	return nil
}
