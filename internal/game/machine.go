package game

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusy is returned when an action arrives while generation is in flight.
	ErrBusy = errors.New("game: a request is already in progress")
	// ErrInvalidTransition is returned when an action is not accepted in the
	// current state.
	ErrInvalidTransition = errors.New("game: action not allowed in current state")
	ErrInvalidDifficulty = errors.New("game: unknown difficulty")
)

// Player-facing copy.
const (
	HintFirstMiss  = "差一点点！勇敢的探险家，再试一次！"
	HintRepeatMiss = "哎呀，似乎还是不对。仔细想想题目给的线索。"
	HintLevel2Miss = "给你个小线索：仔细观察题目哦！"

	ErrorLevel1Generation = "哦豁！魔法失败了，可能是输入太复杂。"
	ErrorLevel2Generation = "剧情升级失败，请重试！"

	ToastNarrationUnavailable = "语音服务暂时不可用"
	ToastPlaybackFailed       = "播放语音时遇到一点小麻烦"
)

// Grade compares an answer with the expected one, ignoring surrounding
// whitespace and letter case.
func Grade(given, expected string) bool {
	return strings.ToLower(strings.TrimSpace(given)) == strings.ToLower(strings.TrimSpace(expected))
}

// Transition applies ev to s and returns the next snapshot together with the
// effects the caller must run. It performs no I/O. On error the returned
// snapshot is s unchanged.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	next := s

	switch e := ev.(type) {
	case AudioStarted:
		next.Context.IsAudioPlaying = true
		return next, nil, nil

	case AudioEnded:
		next.Context.IsAudioPlaying = false
		return next, nil, nil

	case NarrationUnavailable:
		next.Context.Toast = e.Message
		return next, nil, nil

	case DismissNotice:
		next.Context.Hint, next.Context.Error, next.Context.Toast = "", "", ""
		return next, nil, nil

	case StopNarration:
		return s, []Effect{StopAudio{}}, nil

	case Restart:
		return NewSnapshot(), []Effect{StopAudio{}}, nil

	case SubmitQuestion:
		return submitQuestion(s, e)

	case SubmitAnswer:
		return submitAnswer(s, e)

	case SelectDifficulty:
		return selectDifficulty(s, e)

	case ReadAloud:
		level, ok := s.CurrentLevel()
		if !ok {
			return s, nil, invalid(s, ev)
		}
		if s.Context.Pending {
			return s, nil, ErrBusy
		}
		return s, []Effect{StopAudio{}, Narrate{Text: level.Story}}, nil

	case LevelReady:
		return levelReady(s, e)

	case GenerationFailed:
		if !s.Context.Pending {
			return s, nil, invalid(s, ev)
		}
		next.Context.Pending = false
		if e.Level == 2 {
			next.Context.Error = ErrorLevel2Generation
		} else {
			next.Context.Error = ErrorLevel1Generation
		}
		return next, nil, nil

	case ReportReady:
		if s.State != StateLevel2 || !s.Context.Pending {
			return s, nil, invalid(s, ev)
		}
		next.State = StateFinalReward
		next.Context.Pending = false
		if e.Ability != nil && s.Context.Ability == nil {
			ability := *e.Ability
			next.Context.Ability = &ability
		}
		return next, nil, nil
	}

	return s, nil, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
}

func submitQuestion(s Snapshot, e SubmitQuestion) (Snapshot, []Effect, error) {
	if s.State != StateInitial {
		return s, nil, invalid(s, e)
	}
	q := strings.TrimSpace(e.Text)
	if q == "" {
		return s, nil, nil
	}
	if s.Context.Pending {
		return s, nil, ErrBusy
	}

	next := s
	next.Context.Pending = true
	next.Context.Error, next.Context.Hint = "", ""
	return next, []Effect{GenerateLevel{Level: 1, Question: q}}, nil
}

func submitAnswer(s Snapshot, e SubmitAnswer) (Snapshot, []Effect, error) {
	if s.State != StateLevel1 && s.State != StateLevel2 {
		return s, nil, invalid(s, e)
	}
	answer := strings.TrimSpace(e.Text)
	if answer == "" {
		return s, nil, nil
	}
	if s.Context.Pending {
		return s, nil, ErrBusy
	}

	next := s
	next.Context.Hint, next.Context.Error = "", ""
	effects := []Effect{StopAudio{}}

	if s.State == StateLevel1 {
		if Grade(answer, s.Context.Level1.Answer) {
			next.State = StateLevel1Feedback
			return next, effects, nil
		}
		if s.Context.L1FailCount == 0 {
			next.Context.Hint = HintFirstMiss
		} else {
			next.Context.Hint = HintRepeatMiss
		}
		next.Context.L1FailCount++
		return next, effects, nil
	}

	if !Grade(answer, s.Context.Level2.Answer) {
		next.Context.Hint = HintLevel2Miss
		return next, effects, nil
	}
	next.Context.Pending = true
	return next, append(effects, GenerateReport{
		InitialQuestion: s.Context.InitialQuestion,
		Attempts:        s.Context.L1FailCount + 1,
		Difficulty:      s.Context.Difficulty,
	}), nil
}

func selectDifficulty(s Snapshot, e SelectDifficulty) (Snapshot, []Effect, error) {
	if s.State != StateLevel1Feedback {
		return s, nil, invalid(s, e)
	}
	if !e.Difficulty.Valid() {
		return s, nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, e.Difficulty)
	}
	if s.Context.Pending {
		return s, nil, ErrBusy
	}

	next := s
	next.Context.Pending = true
	next.Context.Error = ""
	return next, []Effect{GenerateLevel{
		Level:      2,
		L1Story:    s.Context.Level1.Story,
		L1Question: s.Context.Level1.Question,
		Difficulty: e.Difficulty,
	}}, nil
}

func levelReady(s Snapshot, e LevelReady) (Snapshot, []Effect, error) {
	next := s
	level := Level{LevelContent: e.Content, Image: e.Image}

	switch {
	case e.Level == 1 && s.State == StateInitial && s.Context.Pending:
		next.State = StateLevel1
		next.Context.InitialQuestion = e.InitialQuestion
		next.Context.Level1 = level
		next.Context.L1FailCount = 0
	case e.Level == 2 && s.State == StateLevel1Feedback && s.Context.Pending:
		next.State = StateLevel2
		next.Context.Difficulty = e.Difficulty
		next.Context.Level2 = level
	default:
		return s, nil, invalid(s, e)
	}

	next.Context.Pending = false
	next.Context.Error = ""
	return next, []Effect{Narrate{Text: e.Content.Story}}, nil
}

func invalid(s Snapshot, ev Event) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.eventName(), s.State)
}
