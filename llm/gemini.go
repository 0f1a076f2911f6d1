package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

func NewGemini(ctx context.Context, projectId, location, model string) *Gemini {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectId,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		panic(fmt.Errorf("llm.NewGemini: %w", err))
	}

	return &Gemini{
		client: client,
		model:  model,
	}
}

type Gemini struct {
	client *genai.Client
	model  string
}

func (g *Gemini) Generate(ctx context.Context, messages []Message) (string, error) {
	// system ロールは SystemInstruction へ、それ以外は contents へ振り分ける
	var sysParts []string
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			sysParts = append(sysParts, msg.Content)
			continue
		}
		role := genai.RoleUser
		if msg.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	// contents が空だと API が弾くので、system のみの呼び出しでは
	// 最低1件の user メッセージを入れておく
	if len(contents) == 0 {
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: "Begin."}},
		})
	}

	var temp float32 = 0.7
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
		// キャラクター1体のJSONがかなり大きいため、十分な上限を取る
		MaxOutputTokens: 8192,
	}
	if len(sysParts) > 0 {
		cfg.SystemInstruction = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: strings.Join(sysParts, "\n\n")}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("llm.Gemini.Generate: %w", err)
	}

	txt := extractText(resp)
	if txt == "" {
		return "", fmt.Errorf("llm.Gemini.Generate: empty completion")
	}
	return txt, nil
}

func extractText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 {
		return ""
	}
	// 最も確度が高い候補のテキスト部分のみ
	for _, p := range res.Candidates[0].Content.Parts {
		if p.Text != "" {
			return p.Text
		}
	}
	// 念のため他候補も走査
	for _, c := range res.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

var _ LLM = &Gemini{}
