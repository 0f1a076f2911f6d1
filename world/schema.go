package world

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed world.schema.json
var schemaSource string

var (
	compileOnce sync.Once
	worldSchema *jsonschema.Schema
	eventSchema *jsonschema.Schema
)

func compile() {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("world.schema.json", strings.NewReader(schemaSource)); err != nil {
			panic(fmt.Errorf("world: add schema resource: %w", err))
		}
		worldSchema = c.MustCompile("world.schema.json")
		eventSchema = c.MustCompile("world.schema.json#/$defs/event")
	})
}

// SchemaSource は、World のJSONスキーマ文字列を返します。
// プロンプト構築で生成器に期待する形を伝えるために使います。
func SchemaSource() string {
	return schemaSource
}

// EventSchemaSource は、Event 部分のJSONスキーマ文字列を返します。
// イベント精緻化のプロンプトで期待する形を生成器に伝えるために使います。
func EventSchemaSource() string {
	var doc struct {
		Defs map[string]json.RawMessage `json:"$defs"`
	}
	if err := json.Unmarshal([]byte(schemaSource), &doc); err != nil {
		panic(fmt.Errorf("world: parse embedded schema: %w", err))
	}
	return string(doc.Defs["event"])
}

// Validate は、生のJSONバイト列を World のスキーマに対して検証します。
func Validate(data []byte) error {
	compile()
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("world.Validate: %w", err)
	}
	if err := worldSchema.Validate(v); err != nil {
		return fmt.Errorf("world.Validate: %w", err)
	}
	return nil
}

// ValidateEvent は、生のJSONバイト列を Event のスキーマに対して検証します。
func ValidateEvent(data []byte) error {
	compile()
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("world.ValidateEvent: %w", err)
	}
	if err := eventSchema.Validate(v); err != nil {
		return fmt.Errorf("world.ValidateEvent: %w", err)
	}
	return nil
}
