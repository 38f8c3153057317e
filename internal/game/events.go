package game

// Event is anything that can move a session forward: a player action or the
// outcome of an effect.
type Event interface {
	eventName() string
}

// Player actions.
type (
	SubmitQuestion   struct{ Text string }
	SubmitAnswer     struct{ Text string }
	SelectDifficulty struct{ Difficulty Difficulty }
	ReadAloud        struct{}
	StopNarration    struct{}
	DismissNotice    struct{}
	Restart          struct{}
)

// Effect outcomes and audio notifications.
type (
	LevelReady struct {
		Level           int
		InitialQuestion string
		Difficulty      Difficulty
		Content         LevelContent
		Image           string
	}
	GenerationFailed struct{ Level int }
	// ReportReady carries a nil Ability when the report could not be made.
	ReportReady          struct{ Ability *AbilityModel }
	AudioStarted         struct{}
	AudioEnded           struct{}
	NarrationUnavailable struct{ Message string }
)

func (SubmitQuestion) eventName() string       { return "submit_question" }
func (SubmitAnswer) eventName() string         { return "submit_answer" }
func (SelectDifficulty) eventName() string     { return "select_difficulty" }
func (ReadAloud) eventName() string            { return "read_aloud" }
func (StopNarration) eventName() string        { return "stop_narration" }
func (DismissNotice) eventName() string        { return "dismiss_notice" }
func (Restart) eventName() string              { return "restart" }
func (LevelReady) eventName() string           { return "level_ready" }
func (GenerationFailed) eventName() string     { return "generation_failed" }
func (ReportReady) eventName() string          { return "report_ready" }
func (AudioStarted) eventName() string         { return "audio_started" }
func (AudioEnded) eventName() string           { return "audio_ended" }
func (NarrationUnavailable) eventName() string { return "narration_unavailable" }

// EventName returns the wire name of ev.
func EventName(ev Event) string {
	return ev.eventName()
}

// isPlayerAction reports whether ev competes for the session's single
// in-flight slot. Restart, stop and dismiss are always accepted.
func isPlayerAction(ev Event) bool {
	switch ev.(type) {
	case SubmitQuestion, SubmitAnswer, SelectDifficulty, ReadAloud:
		return true
	}
	return false
}

// Effect is work a transition asks the runner to perform.
type Effect interface {
	effectName() string
}

type (
	GenerateLevel struct {
		Level      int
		Question   string
		L1Story    string
		L1Question string
		Difficulty Difficulty
	}
	GenerateReport struct {
		InitialQuestion string
		Attempts        int
		Difficulty      Difficulty
	}
	Narrate   struct{ Text string }
	StopAudio struct{}
)

func (GenerateLevel) effectName() string  { return "generate_level" }
func (GenerateReport) effectName() string { return "generate_report" }
func (Narrate) effectName() string        { return "narrate" }
func (StopAudio) effectName() string      { return "stop_audio" }
