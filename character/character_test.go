package character

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sat8bit/machi/world"
)

// testCharacter は、スキーマ適合なテスト用住人を返します。
// リストは nil ではなく空で初期化します。nil は null として
// マーシャルされ、検証に落ちるためです。
func testCharacter(id int) *Character {
	return &Character{
		BasicInfo: BasicInfo{
			ID:             id,
			Name:           "Alex Rivera",
			Gender:         GenderNonBinary,
			Birthday:       "1999-04-12",
			Age:            25,
			Nationality:    "American",
			Ethnicity:      "Hispanic",
			City:           "Davis",
			HomeCity:       "Sacramento",
			NativeLanguage: "English",
			OtherLanguages: []string{"Spanish"},
			ZodiacSign:     "Aries",
		},
		PersonalityAndPsychology: PersonalityAndPsychology{
			Personality:             "ENFP",
			IQ:                      110,
			EQ:                      120,
			IntrovertExtrovertScale: 70,
			OptimismPessimismScale:  65,
			RiskTakingScale:         55,
			EmotionalStability:      60,
			OpennessToExperience:    80,
			Conscientiousness:       50,
			Agreeableness:           75,
			Neuroticism:             40,
		},
		EducationAndCareer: EducationAndCareer{
			CurrentOccupation:     "Graduate student",
			HighestEducationLevel: "Bachelor's degree",
			SalaryInUSD:           24000,
		},
		PhysicalAttributes: PhysicalAttributes{
			HeightInCm: 172.0,
			WeightInKg: 64.5,
			EyeColor:   "brown",
			HairColor:  "black",
			SkinTone:   "tan",
		},
		PersonalLife: PersonalLife{
			RelationshipStatus: "single",
			SexualOrientation:  "bisexual",
			Religion:           "none",
			PoliticalViews:     "progressive",
			Hobbies:            []string{"cycling", "cooking"},
			RentInUSD:          900,
		},
		Preferences: Preferences{
			FavoriteColor:      "green",
			FavoriteFood:       "tacos",
			FavoriteMovie:      "Spirited Away",
			FavoriteBook:       "The Dispossessed",
			FavoriteMusicGenre: "indie rock",
			FavoriteSport:      "soccer",
			PetPreference:      "cats",
		},
		SkillsAndAbilities: SkillsAndAbilities{
			Leadership:          60,
			Communication:       80,
			ProblemSolving:      70,
			Creativity:          85,
			Adaptability:        75,
			StressManagement:    55,
			WorkEthic:           70,
			TimeManagement:      50,
			FinancialManagement: 45,
			TechSavviness:       65,
			Patience:            60,
			TravelExperience:    40,
		},
		Experiences: []Experience{
			{
				Type:         "education",
				Organization: "UC Davis",
				Role:         "student",
				StartDate:    "2021-09-01",
				Description:  "Started a graduate program in computer science.",
			},
		},
		EventsLatest10: []world.Event{},
		Highlight3Max:  []world.Event{},
		Lowlight3Max:   []world.Event{},
	}
}

func testEvent(date string) world.Event {
	return world.Event{
		IDOfCharacterInvolved: []int{1},
		Date:                  date,
		StartTime:             "09:00",
		Description:           "A small errand.",
	}
}

func TestTestCharacterIsSchemaValid(t *testing.T) {
	data, err := json.Marshal(testCharacter(1))
	require.NoError(t, err)
	assert.NoError(t, Validate(data))
}

func TestValidate_RejectsBrokenRecords(t *testing.T) {
	base := testCharacter(1)

	t.Run("missing section", func(t *testing.T) {
		var m map[string]json.RawMessage
		data, err := json.Marshal(base)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &m))
		delete(m, "skills_and_abilities")
		broken, err := json.Marshal(m)
		require.NoError(t, err)
		assert.Error(t, Validate(broken))
	})

	t.Run("scale out of range", func(t *testing.T) {
		c := testCharacter(1)
		c.SkillsAndAbilities.Patience = 150
		data, err := json.Marshal(c)
		require.NoError(t, err)
		assert.Error(t, Validate(data))
	})

	t.Run("unknown zodiac sign", func(t *testing.T) {
		c := testCharacter(1)
		c.BasicInfo.ZodiacSign = "Ophiuchus"
		data, err := json.Marshal(c)
		require.NoError(t, err)
		assert.Error(t, Validate(data))
	})
}

func TestNormalize_HealsNilSlices(t *testing.T) {
	c := testCharacter(1)
	c.BasicInfo.OtherLanguages = nil
	c.PersonalLife.Hobbies = nil
	c.Experiences = nil
	c.EventsLatest10 = nil
	c.Highlight3Max = nil
	c.Lowlight3Max = nil

	c.Normalize()

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NoError(t, Validate(data))
}

func TestNormalize_EnforcesEventCaps(t *testing.T) {
	c := testCharacter(1)
	for i := 0; i < 12; i++ {
		c.EventsLatest10 = append(c.EventsLatest10, testEvent("2024-01-01"))
	}
	// 末尾が最新という前提なので、切り詰めは先頭から行われる
	c.EventsLatest10[11].Description = "newest"
	for i := 0; i < 5; i++ {
		c.Highlight3Max = append(c.Highlight3Max, testEvent("2024-02-01"))
		c.Lowlight3Max = append(c.Lowlight3Max, testEvent("2024-03-01"))
	}

	c.Normalize()

	require.Len(t, c.EventsLatest10, 10)
	assert.Equal(t, "newest", c.EventsLatest10[9].Description)
	assert.Len(t, c.Highlight3Max, 3)
	assert.Len(t, c.Lowlight3Max, 3)
}

func TestJSONRoundTrip(t *testing.T) {
	c := testCharacter(7)

	s, err := c.JSON()
	require.NoError(t, err)

	var back Character
	require.NoError(t, json.Unmarshal([]byte(s), &back))
	assert.Equal(t, *c, back)
	assert.Equal(t, 7, back.ID())
	assert.Equal(t, "Alex Rivera", back.Name())
}
