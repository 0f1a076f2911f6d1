// Package prompt は、生成器へ渡すロール付きメッセージ列を組み立てます。
// 文字列を受け取り文字列ベースのメッセージを返すだけの葉パッケージです。
// 生成器の応答は必ず jsonscan で復元してからスキーマ検証してください。
package prompt

import (
	"fmt"
	"strings"

	"github.com/sat8bit/machi/llm"
	"github.com/sat8bit/machi/topic"
)

// DayPlan は、全住人のスナップショットと新しい日付から、
// その日のプラン（天気＋イベント）を要求するプロンプトを組み立てます。
// topics があれば、その日の背景として見出しを添えます。
func DayPlan(characterJSONs []string, date string, worldSchema string, topics []*topic.Topic) []llm.Message {
	var sb strings.Builder
	sb.WriteString(`Please use chain of thoughts.
You will have data of the characters and simulated day's info. Based on each character's data, simulate some events that happened for them. Events could have multiple characters involved, and have them interact with one another if it makes sense.
`)
	sb.WriteString(fmt.Sprintf("all persons: [%s]\n", strings.Join(characterJSONs, ",")))
	sb.WriteString(fmt.Sprintf("today: date: %s\n", date))
	if len(topics) > 0 {
		sb.WriteString("Today's real-world headlines, usable as background color where it fits naturally:\n")
		for _, t := range topics {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Title, t.Summary))
		}
	}
	sb.WriteString(fmt.Sprintf(`1. For the "city" each person is in, generate today's weather. Store the weather of each city in a list, WEATHER_LIST.
2. For each character, generate 3 events for them, based on the info known and the weather in their city. Store the events in a list, EVENTS_LIST.
3. Return the simulated day as one JSON object strictly following this schema, without any explanations or thoughts: %s
`, worldSchema))

	return []llm.Message{llm.System(sb.String())}
}

// ElaborateEvent は、1件のイベントを約200語の描写に拡張し、
// 関係する住人への影響を反映した新レコードを要求するプロンプトを組み立てます。
// 影響の確率はあくまで生成器へのヒントであり、ホスト側では強制も監査もしません。
func ElaborateEvent(eventJSON string, characterJSONs []string, weathersJSON string, note string, eventSchema, characterSchema string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Please use Chain of Thoughts and follow these steps carefully:\n\n")
	if note != "" {
		sb.WriteString(note + "\n\n")
	}
	sb.WriteString(fmt.Sprintf(`1. I will provide you with weather data, a list of important characters involved in an event, and the JSON of the event.

2. Your first task is to EXPAND and MODIFY the event's description:
   - The current description must be extended to approximately 200 words.
   - Incorporate details about the weather and the characters' interactions.
   - Add vivid details and dialogue to make the event more engaging.

3. Create a NEW_EVENT object that strictly follows this Event schema: %s
   - Copy all fields from the original event.
   - Replace the 'description' field with your expanded version.

Here's the data:
Weather: %s
Characters: [%s]
Original Event: %s

4. Next, consider the impact of this event on each involved character:
   - 1.5%% chance of significant change
   - 4.5%% chance of moderate change
   - 74%% chance of slight change
   - 20%% chance of no change
   - Relationships between characters may also change based on the event.

5. Create NEW_CHARACTERS objects for all involved characters, strictly following this Character schema: %s
   - Modify character attributes based on the event's impact.
   - Update relationships if applicable.

6. Return the result in this exact JSON format, without any explanations or thoughts:
{
  "related_characters": [NEW_CHARACTERS],
  "event": NEW_EVENT
}

Ensure that the NEW_EVENT object has an expanded description and that character changes are reflected in NEW_CHARACTERS.
`, eventSchema, weathersJSON, strings.Join(characterJSONs, ","), eventJSON, characterSchema))

	return []llm.Message{llm.System(sb.String())}
}

// FixCharacter は、スキーマ検証に落ちた住人レコードを
// 現在のスキーマへ強制的に適合させる修復プロンプトを組み立てます。
func FixCharacter(dataJSON, schemaJSON string) []llm.Message {
	return []llm.Message{llm.System(fmt.Sprintf(`I will give you two JSON documents, one is data of a Person potentially in an old schema, another is the new schema.
1. Please strictly fit the old data into the new schema.
2. For the missing attributes in the data, generate some reasonable data according to the person's info.
3. Return the result directly in JSON, without any explanations or thoughts.
person's data is %s
new schema is %s
`, dataJSON, schemaJSON))}
}

// NewCharacter は、案内メモと次のIDヒントから、
// 新しい住人レコードの生成を要求するプロンプトを組み立てます。
func NewCharacter(note string, nextID int, schemaJSON string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("I will give you a JSON schema of a Person, please help generate a person for me.\n")
	if nextID > 0 {
		sb.WriteString(fmt.Sprintf("This person's id is %d.\n", nextID))
	}
	if note != "" {
		sb.WriteString(note + "\n")
	}
	sb.WriteString(fmt.Sprintf(`1. Each new person must have more than 3 experiences and 10 events from the past couple of days.
2. You MUST strictly follow the data schema.
3. Return the result directly in JSON, without any explanations or thoughts.
person's schema is %s
`, schemaJSON))

	return []llm.Message{llm.System(sb.String())}
}

// RolePlay は、指定した住人になりきって instruction に応答させる
// メッセージ列を組み立てます。日次の住人同士の交流生成に使います。
func RolePlay(name, characterJSON, instruction string) []llm.Message {
	return []llm.Message{
		llm.System(fmt.Sprintf("You are role-playing as %s. Respond directly in character, without any explanations or thoughts about what the character would say. Use the following information about the character: %s", name, characterJSON)),
		llm.User(instruction),
	}
}

// GreetingInstruction は、from から to への挨拶を生成させる指示文です。
func GreetingInstruction(from, to string) string {
	return fmt.Sprintf("Generate a casual greeting or question from %s to %s, considering their personalities and backgrounds.", from, to)
}

// ResponseInstruction は、message への返答を生成させる指示文です。
func ResponseInstruction(from, message, to string) string {
	return fmt.Sprintf("%s just said: '%s'. Generate a suitable response from %s, considering their personality and background.", from, message, to)
}
