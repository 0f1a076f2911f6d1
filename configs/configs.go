// Package configs は、リポジトリに埋め込まれたリソースを保持します。
package configs

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Seeds は、初期住人を生成するための案内メモのYAMLです。
//
//go:embed seeds.yaml
var Seeds []byte

// SeedNotes は、埋め込みYAMLから案内メモのリストを読み出します。
// 住人がひとりもいない世界を立ち上げるときに使います。
func SeedNotes() ([]string, error) {
	var doc struct {
		Seeds []struct {
			Note string `yaml:"note"`
		} `yaml:"seeds"`
	}
	if err := yaml.Unmarshal(Seeds, &doc); err != nil {
		return nil, fmt.Errorf("configs.SeedNotes: %w", err)
	}
	notes := make([]string, 0, len(doc.Seeds))
	for _, s := range doc.Seeds {
		if s.Note != "" {
			notes = append(notes, s.Note)
		}
	}
	return notes, nil
}
