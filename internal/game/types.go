package game

import (
	"fmt"
	"strings"
)

// State is the screen the player is on.
type State string

const (
	StateInitial        State = "INITIAL"
	StateLevel1         State = "LEVEL_1"
	StateLevel1Feedback State = "LEVEL_1_FEEDBACK"
	StateLevel2         State = "LEVEL_2"
	// StateLevel2Feedback is reserved for a level-2 hint screen; no
	// transition enters it yet.
	StateLevel2Feedback State = "LEVEL_2_FEEDBACK"
	StateFinalReward    State = "FINAL_REWARD"
)

// Difficulty of the second level. It only changes the prompt.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Difficulties lists the choices in the order they are offered.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Label is the wording used in prompts.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyEasy:
		return "简单"
	case DifficultyHard:
		return "困难"
	default:
		return "普通"
	}
}

// ButtonLabel is the wording on the difficulty buttons.
func (d Difficulty) ButtonLabel() string {
	switch d {
	case DifficultyEasy:
		return "🏞 轻松"
	case DifficultyHard:
		return "🔥 炼狱"
	default:
		return "🌋 普通"
	}
}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// ParseDifficulty accepts a name (any case) or a prompt label.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.TrimSpace(s)
	for _, d := range Difficulties {
		if strings.EqualFold(s, string(d)) || s == d.Label() {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
}

// AbilityModel is the closing scorecard.
type AbilityModel struct {
	Mastery float64 `json:"mastery"`
	Logic   float64 `json:"logic"`
	Advice  string  `json:"advice"`
}

// LevelContent is what one structured generation call yields for a level.
type LevelContent struct {
	Story    string `json:"story"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Level is a generated level together with its illustration.
type Level struct {
	LevelContent
	Image string `json:"image"`
}

// Context carries everything accumulated during one adventure. Transitions
// never modify a Context in place; they return an updated copy.
type Context struct {
	InitialQuestion string        `json:"initial_question"`
	Level1          Level         `json:"level1"`
	Level2          Level         `json:"level2"`
	L1FailCount     int           `json:"l1_fail_count"`
	Difficulty      Difficulty    `json:"difficulty"`
	IsAudioPlaying  bool          `json:"is_audio_playing"`
	Ability         *AbilityModel `json:"ability,omitempty"`

	Pending bool   `json:"pending"`
	Hint    string `json:"hint,omitempty"`
	Error   string `json:"error,omitempty"`
	Toast   string `json:"toast,omitempty"`
}

// Snapshot is the complete, serializable state of one session.
type Snapshot struct {
	State   State   `json:"state"`
	Context Context `json:"context"`
}

// NewSnapshot returns the state a fresh session starts in.
func NewSnapshot() Snapshot {
	return Snapshot{
		State:   StateInitial,
		Context: Context{Difficulty: DifficultyMedium},
	}
}

// CurrentLevel returns the level shown in LEVEL_1 or LEVEL_2.
func (s Snapshot) CurrentLevel() (Level, bool) {
	switch s.State {
	case StateLevel1:
		return s.Context.Level1, true
	case StateLevel2:
		return s.Context.Level2, true
	}
	return Level{}, false
}
