// Package character は、シミュレーション住人の複合レコードと、
// キャッシュ付き・スキーマ検証付きの永続ストアを提供します。
// フィールド名と入れ子構造は永続化済みレコードとの互換のため固定です。
package character

import (
	"encoding/json"
	"fmt"

	"github.com/sat8bit/machi/world"
)

// Gender は、住人の性別区分です。
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
)

// Experience は、過去の経歴の1件です。
type Experience struct {
	Type         string `json:"type"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date,omitempty"`
	Description  string `json:"description"`
}

// BasicInfo は、住人の基本属性です。id は生成後に不変かつ一意です。
type BasicInfo struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Gender         Gender   `json:"gender"`
	Birthday       string   `json:"birthday"`
	Age            int      `json:"age"`
	Nationality    string   `json:"nationality"`
	Ethnicity      string   `json:"ethnicity"`
	City           string   `json:"city"`
	HomeCity       string   `json:"home_city"`
	NativeLanguage string   `json:"native_language"`
	OtherLanguages []string `json:"other_languages"`
	ZodiacSign     string   `json:"Zodiac_sign"`
}

// PersonalityAndPsychology の各スケールは 0〜100 に収まります。
// 範囲の強制はスキーマ（character.schema.json）が担います。
type PersonalityAndPsychology struct {
	Personality             string `json:"personality"`
	IQ                      int    `json:"iq"`
	EQ                      int    `json:"eq"`
	IntrovertExtrovertScale int    `json:"introvert_extrovert_scale"`
	OptimismPessimismScale  int    `json:"optimism_pessimism_scale"`
	RiskTakingScale         int    `json:"risk_taking_scale"`
	EmotionalStability      int    `json:"emotional_stability"`
	OpennessToExperience    int    `json:"openness_to_experience"`
	Conscientiousness       int    `json:"conscientiousness"`
	Agreeableness           int    `json:"agreeableness"`
	Neuroticism             int    `json:"neuroticism"`
}

type EducationAndCareer struct {
	CurrentOccupation     string `json:"current_occupation"`
	HighestEducationLevel string `json:"highest_education_level"`
	SalaryInUSD           int    `json:"salary_in_usd"`
}

type PhysicalAttributes struct {
	HeightInCm float64 `json:"height_in_cm"`
	WeightInKg float64 `json:"weight_in_kg"`
	EyeColor   string  `json:"eye_color"`
	HairColor  string  `json:"hair_color"`
	SkinTone   string  `json:"skin_tone"`
}

type PersonalLife struct {
	RelationshipStatus string   `json:"relationship_status"`
	SexualOrientation  string   `json:"sexual_orientation"`
	Religion           string   `json:"religion"`
	PoliticalViews     string   `json:"political_views"`
	Hobbies            []string `json:"hobbies"`
	RentInUSD          int      `json:"rent_in_usd"`
}

type Preferences struct {
	FavoriteColor      string `json:"favorite_color"`
	FavoriteFood       string `json:"favorite_food"`
	FavoriteMovie      string `json:"favorite_movie"`
	FavoriteBook       string `json:"favorite_book"`
	FavoriteMusicGenre string `json:"favorite_music_genre"`
	FavoriteSport      string `json:"favorite_sport"`
	PetPreference      string `json:"pet_preference"`
}

type SkillsAndAbilities struct {
	Leadership          int `json:"leadership"`
	Communication       int `json:"communication"`
	ProblemSolving      int `json:"problem_solving"`
	Creativity          int `json:"creativity"`
	Adaptability        int `json:"adaptability"`
	StressManagement    int `json:"stress_management"`
	WorkEthic           int `json:"work_ethic"`
	TimeManagement      int `json:"time_management"`
	FinancialManagement int `json:"financial_management"`
	TechSavviness       int `json:"tech_savviness"`
	Patience            int `json:"patience"`
	TravelExperience    int `json:"travel_experience"`
}

// Character は、住人1人の複合レコードです。
type Character struct {
	BasicInfo                BasicInfo                `json:"basic_info"`
	PersonalityAndPsychology PersonalityAndPsychology `json:"personality_and_psychology"`
	EducationAndCareer       EducationAndCareer       `json:"education_and_career"`
	PhysicalAttributes       PhysicalAttributes       `json:"physical_attributes"`
	PersonalLife             PersonalLife             `json:"personal_life"`
	Preferences              Preferences              `json:"preferences"`
	SkillsAndAbilities       SkillsAndAbilities       `json:"skills_and_abilities"`
	Experiences              []Experience             `json:"experiences"`
	EventsLatest10           []world.Event            `json:"events_latest_10"`
	Highlight3Max            []world.Event            `json:"highlight_3_max"`
	Lowlight3Max             []world.Event            `json:"lowlight_3_max"`
}

// 各イベントリストの上限。
const (
	maxLatestEvents    = 10
	maxHighlightEvents = 3
	maxLowlightEvents  = 3
)

// ID は、住人の一意な識別子を返します。
func (c *Character) ID() int {
	return c.BasicInfo.ID
}

// Name は、住人の名前を返します。
func (c *Character) Name() string {
	return c.BasicInfo.Name
}

// Normalize は、サイズ上限付きのイベントリストを上限内に切り詰めます。
// events_latest_10 は末尾（最新）を残し、highlight/lowlight は先頭を残します。
// また、nil のリストを空リストに直します。nil は null として永続化され、
// スキーマ検証に落ちるためです。保存後のレコードは常にスキーマ適合です。
func (c *Character) Normalize() {
	if c.BasicInfo.OtherLanguages == nil {
		c.BasicInfo.OtherLanguages = []string{}
	}
	if c.PersonalLife.Hobbies == nil {
		c.PersonalLife.Hobbies = []string{}
	}
	if c.Experiences == nil {
		c.Experiences = []Experience{}
	}
	if c.EventsLatest10 == nil {
		c.EventsLatest10 = []world.Event{}
	}
	if c.Highlight3Max == nil {
		c.Highlight3Max = []world.Event{}
	}
	if c.Lowlight3Max == nil {
		c.Lowlight3Max = []world.Event{}
	}
	if n := len(c.EventsLatest10); n > maxLatestEvents {
		c.EventsLatest10 = c.EventsLatest10[n-maxLatestEvents:]
	}
	if len(c.Highlight3Max) > maxHighlightEvents {
		c.Highlight3Max = c.Highlight3Max[:maxHighlightEvents]
	}
	if len(c.Lowlight3Max) > maxLowlightEvents {
		c.Lowlight3Max = c.Lowlight3Max[:maxLowlightEvents]
	}
}

// JSON は、住人レコードのJSON表現を返します。
func (c *Character) JSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("character.JSON: %w", err)
	}
	return string(data), nil
}
