package views

import (
	"time"

	"github.com/gokatarajesh/story-quest/internal/game"
)

const (
	TitleLanding   = "知识探险家"
	TitleAdventure = "数学大冒险"

	LoadingLevel1 = "正在编织冒险故事的丝线..."
	LoadingLevel2 = "🛠 正在构建新的试炼之地..."
	LoadingReport = "正在生成探险家档案..."
)

// Examples are the quick-start questions on the landing page.
var Examples = []string{"15 x 8", "120 ÷ 4", "56 + 78", "99 - 45"}

// Timings control how long notices stay on screen.
type Timings struct {
	Hint        time.Duration
	Level2Hint  time.Duration
	Error       time.Duration
	Level2Error time.Duration
	Toast       time.Duration
}

// DefaultTimings match the in-game pacing.
var DefaultTimings = Timings{
	Hint:        3 * time.Second,
	Level2Hint:  4 * time.Second,
	Error:       3 * time.Second,
	Level2Error: 4 * time.Second,
	Toast:       3 * time.Second,
}

// Notice is a transient message. DurationMS of zero keeps it until the next
// action.
type Notice struct {
	Kind       string `json:"kind"`
	Text       string `json:"text"`
	DurationMS int64  `json:"duration_ms"`
}

// LevelView is a level as shown to the player; the answer never leaves the
// server.
type LevelView struct {
	Number   int    `json:"number"`
	Story    string `json:"story"`
	Question string `json:"question"`
	Image    string `json:"image"`
}

type DifficultyOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Model is what both the HTML views and the JSON API expose for a session.
type Model struct {
	View            string             `json:"-"`
	State           game.State         `json:"state"`
	Title           string             `json:"title"`
	Pending         bool               `json:"pending"`
	LoadingText     string             `json:"loading_text,omitempty"`
	InitialQuestion string             `json:"initial_question,omitempty"`
	Level           *LevelView         `json:"level,omitempty"`
	Difficulty      game.Difficulty    `json:"difficulty"`
	Difficulties    []DifficultyOption `json:"difficulties,omitempty"`
	Examples        []string           `json:"examples,omitempty"`
	Notices         []Notice           `json:"notices,omitempty"`
	IsAudioPlaying  bool               `json:"is_audio_playing"`
	L1FailCount     int                `json:"l1_fail_count"`
	Ability         *game.AbilityModel `json:"ability,omitempty"`
	Images          []string           `json:"images,omitempty"`
}

// NewModel projects a snapshot onto what the player may see.
func NewModel(snap game.Snapshot, t Timings) Model {
	c := snap.Context
	m := Model{
		State:           snap.State,
		Title:           TitleAdventure,
		Pending:         c.Pending,
		InitialQuestion: c.InitialQuestion,
		Difficulty:      c.Difficulty,
		IsAudioPlaying:  c.IsAudioPlaying,
		L1FailCount:     c.L1FailCount,
	}

	switch snap.State {
	case game.StateInitial:
		m.View = "initial"
		m.Title = TitleLanding
		m.Examples = Examples
		if c.Pending {
			m.LoadingText = LoadingLevel1
		}
	case game.StateLevel1:
		m.View = "stage"
		m.Level = levelView(1, c.Level1)
	case game.StateLevel2, game.StateLevel2Feedback:
		m.View = "stage"
		m.Level = levelView(2, c.Level2)
		if c.Pending {
			m.LoadingText = LoadingReport
		}
	case game.StateLevel1Feedback:
		m.View = "feedback"
		for _, d := range game.Difficulties {
			m.Difficulties = append(m.Difficulties, DifficultyOption{Value: string(d), Label: d.ButtonLabel()})
		}
		if c.Pending {
			m.LoadingText = LoadingLevel2
		}
	case game.StateFinalReward:
		m.View = "reward"
		m.Ability = c.Ability
		m.Images = []string{c.Level1.Image, c.Level2.Image}
	}

	if c.Hint != "" {
		d := t.Hint
		if snap.State == game.StateLevel2 {
			d = t.Level2Hint
		}
		m.Notices = append(m.Notices, Notice{Kind: "hint", Text: c.Hint, DurationMS: d.Milliseconds()})
	}
	if c.Error != "" {
		d := t.Error
		if snap.State == game.StateLevel1Feedback {
			// Level 2 failed to generate; the player picks a difficulty again.
			d = t.Level2Error
		}
		m.Notices = append(m.Notices, Notice{Kind: "error", Text: c.Error, DurationMS: d.Milliseconds()})
	}
	if c.Toast != "" {
		m.Notices = append(m.Notices, Notice{Kind: "toast", Text: c.Toast, DurationMS: t.Toast.Milliseconds()})
	}
	return m
}

func levelView(n int, l game.Level) *LevelView {
	return &LevelView{Number: n, Story: l.Story, Question: l.Question, Image: l.Image}
}
