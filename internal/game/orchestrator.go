package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/gokatarajesh/story-quest/internal/audio"
	"github.com/gokatarajesh/story-quest/internal/generation"
	"github.com/gokatarajesh/story-quest/internal/session"
)

// Generator is the content service the orchestrator drives.
type Generator interface {
	GenerateLevel1(ctx context.Context, question string) (generation.Level1Content, error)
	GenerateLevel2(ctx context.Context, l1Story, l1Question, difficulty string) (generation.Level2Content, error)
	GenerateAbilityReport(ctx context.Context, initialQuestion string, attempts int, difficulty string) (generation.AbilityReport, error)
	GenerateIllustration(ctx context.Context, story string) string
	GenerateNarration(ctx context.Context, text string) []byte
}

var _ Generator = (*generation.Client)(nil)

var errCorruptSession = errors.New("decode session")

// Notification kinds pushed to connected browsers.
const (
	NotifyStateChanged         = "state_changed"
	NotifyNarrationStarted     = "narration_started"
	NotifyNarrationEnded       = "narration_ended"
	NotifyNarrationStopped     = "narration_stopped"
	NotifyNarrationUnavailable = "narration_unavailable"
)

// Notification tells a session's browser that something changed without a
// request of its own.
type Notification struct {
	Kind       string
	State      State
	PlaybackID string
	Message    string
}

// Notifier delivers notifications; delivery is best effort.
type Notifier interface {
	Notify(sessionID string, n Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Notification) {}

// Config tunes the orchestrator.
type Config struct {
	// AudioFormat describes the PCM returned by the speech model.
	AudioFormat audio.Format
	// IdleTTL is how long per-session runtime state survives without use.
	IdleTTL time.Duration
}

// runtime is the process-local companion of a stored session.
type runtime struct {
	busy    *semaphore.Weighted
	stateMu sync.Mutex
	player  *audio.Player

	audioMu   sync.Mutex
	narration atomic.Uint64
	inflight  atomic.Int32
	lastSeen  atomic.Int64
}

func (rt *runtime) touch(now time.Time) {
	rt.lastSeen.Store(now.UnixNano())
}

// Orchestrator runs game sessions: it applies events through Transition,
// persists snapshots, and executes the resulting effects.
type Orchestrator struct {
	store    session.Store
	gen      Generator
	notifier Notifier
	cfg      Config
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	runtimes map[string]*runtime
}

func NewOrchestrator(store session.Store, gen Generator, notifier Notifier, cfg Config, logger zerolog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if cfg.AudioFormat == (audio.Format{}) {
		cfg.AudioFormat = audio.Mono24K
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:    store,
		gen:      gen,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		runtimes: make(map[string]*runtime),
	}
}

// Start opens a new session in INITIAL.
func (o *Orchestrator) Start(ctx context.Context) (string, Snapshot, error) {
	id := uuid.NewString()
	snap := NewSnapshot()
	if err := o.save(ctx, id, snap); err != nil {
		return "", Snapshot{}, err
	}
	sessionsStarted.Inc()
	o.logger.Debug().Str("session_id", id).Msg("session started")
	return id, snap, nil
}

// Ensure returns id if that session exists, otherwise starts a new one.
// A session that can no longer be decoded is discarded and replaced.
func (o *Orchestrator) Ensure(ctx context.Context, id string) (string, error) {
	if id != "" {
		_, err := o.load(ctx, id)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, errCorruptSession):
			o.logger.Warn().Err(err).Str("session_id", id).Msg("discarding unreadable session")
			if err := o.store.Delete(ctx, id); err != nil {
				return "", fmt.Errorf("delete session %s: %w", id, err)
			}
		case !errors.Is(err, session.ErrNotFound):
			return "", err
		}
	}
	newID, _, err := o.Start(ctx)
	return newID, err
}

// Snapshot returns the stored state of a session.
func (o *Orchestrator) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	return o.load(ctx, id)
}

// Clip returns the narration currently playing for a session.
func (o *Orchestrator) Clip(id string) (*audio.Playback, bool) {
	o.mu.Lock()
	rt, ok := o.runtimes[id]
	o.mu.Unlock()
	if !ok {
		return nil, false
	}
	return rt.player.Current()
}

// Dispatch applies ev to a session and runs every effect it causes. Text and
// image generation complete before Dispatch returns; narration continues in
// the background and is reported through the Notifier.
func (o *Orchestrator) Dispatch(ctx context.Context, id string, ev Event) (Snapshot, error) {
	rt := o.runtime(id)

	if isPlayerAction(ev) {
		if !rt.busy.TryAcquire(1) {
			transitions.WithLabelValues(EventName(ev), outcomeBusy).Inc()
			return Snapshot{}, ErrBusy
		}
		defer rt.busy.Release(1)
	}

	// Generation outlives the request but not the orchestrator.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(o.ctx, cancel)
	defer stop()

	snap, effects, err := o.apply(runCtx, id, rt, ev)
	if err != nil {
		return snap, err
	}
	return o.run(runCtx, id, rt, snap, effects)
}

func (o *Orchestrator) run(ctx context.Context, id string, rt *runtime, snap Snapshot, effects []Effect) (Snapshot, error) {
	logger := o.logger.With().Str("session_id", id).Logger()
	if len(effects) == 0 {
		return snap, nil
	}

	for len(effects) > 0 {
		eff := effects[0]
		effects = effects[1:]

		follow := o.execute(ctx, id, rt, eff)
		if follow == nil {
			continue
		}

		next, more, err := o.apply(context.WithoutCancel(ctx), id, rt, follow)
		if errors.Is(err, ErrInvalidTransition) {
			// The session moved on (restart) while the effect was running.
			logger.Debug().Err(err).Msg("dropping stale effect result")
			return o.load(context.WithoutCancel(ctx), id)
		}
		if err != nil {
			o.release(id, rt, follow, err)
			return snap, err
		}
		snap = next
		effects = append(effects, more...)
	}

	// Audio events may have landed while effects ran.
	if fresh, err := o.load(context.WithoutCancel(ctx), id); err == nil {
		snap = fresh
	}
	return snap, nil
}

// release makes a best-effort attempt to clear Pending after the outcome of
// an effect could not be recorded, so the player is not locked out until the
// session expires.
func (o *Orchestrator) release(id string, rt *runtime, follow Event, cause error) {
	var ev Event
	switch e := follow.(type) {
	case LevelReady:
		ev = GenerationFailed{Level: e.Level}
	case GenerationFailed:
		ev = e
	case ReportReady:
		ev = ReportReady{}
	default:
		return
	}

	logger := o.logger.With().Str("session_id", id).Str("event", EventName(follow)).Logger()
	logger.Warn().Err(cause).Msg("effect outcome not recorded; releasing session")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := o.apply(ctx, id, rt, ev); err != nil {
		logger.Error().Err(err).Msg("session left pending")
	}
}

func (o *Orchestrator) execute(ctx context.Context, id string, rt *runtime, eff Effect) Event {
	logger := o.logger.With().Str("session_id", id).Logger()

	switch e := eff.(type) {
	case GenerateLevel:
		var content LevelContent
		switch e.Level {
		case 1:
			c, err := o.gen.GenerateLevel1(ctx, e.Question)
			if err != nil {
				logger.Warn().Err(err).Msg("level 1 generation failed")
				return GenerationFailed{Level: 1}
			}
			content = LevelContent(c)
		default:
			c, err := o.gen.GenerateLevel2(ctx, e.L1Story, e.L1Question, e.Difficulty.Label())
			if err != nil {
				logger.Warn().Err(err).Msg("level 2 generation failed")
				return GenerationFailed{Level: 2}
			}
			content = LevelContent(c)
		}
		return LevelReady{
			Level:           e.Level,
			InitialQuestion: e.Question,
			Difficulty:      e.Difficulty,
			Content:         content,
			Image:           o.gen.GenerateIllustration(ctx, content.Story),
		}

	case GenerateReport:
		report, err := o.gen.GenerateAbilityReport(ctx, e.InitialQuestion, e.Attempts, e.Difficulty.Label())
		if err != nil {
			logger.Warn().Err(err).Msg("ability report failed")
			return ReportReady{}
		}
		return ReportReady{Ability: &AbilityModel{
			Mastery: report.Mastery,
			Logic:   report.Logic,
			Advice:  report.Advice,
		}}

	case Narrate:
		o.narrate(id, rt, e.Text)

	case StopAudio:
		rt.audioMu.Lock()
		rt.narration.Add(1)
		rt.player.Stop()
		rt.audioMu.Unlock()

	default:
		logger.Warn().Str("effect", fmt.Sprintf("%T", eff)).Msg("unknown effect")
	}
	return nil
}

// narrate synthesizes text in the background and plays it unless a newer
// narration or a stop superseded it in the meantime.
func (o *Orchestrator) narrate(id string, rt *runtime, text string) {
	seq := rt.narration.Add(1)
	rt.inflight.Add(1)
	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		defer rt.inflight.Add(-1)

		pcm := o.gen.GenerateNarration(o.ctx, text)
		if o.ctx.Err() != nil || rt.narration.Load() != seq {
			return
		}
		if pcm == nil {
			o.signal(id, NarrationUnavailable{Message: ToastNarrationUnavailable},
				Notification{Kind: NotifyNarrationUnavailable, Message: ToastNarrationUnavailable})
			return
		}

		buf, err := audio.Decode(pcm, o.cfg.AudioFormat)
		if err == nil && buf.Frames == 0 {
			err = errors.New("no complete frames")
		}
		if err != nil {
			o.logger.Warn().Err(err).Str("session_id", id).Msg("narration audio unusable")
			o.signal(id, NarrationUnavailable{Message: ToastPlaybackFailed},
				Notification{Kind: NotifyNarrationUnavailable, Message: ToastPlaybackFailed})
			return
		}

		rt.audioMu.Lock()
		defer rt.audioMu.Unlock()
		if rt.narration.Load() != seq {
			return
		}
		rt.player.Play(audio.Clip{Text: text, Buffer: buf})
	}()
}

func (o *Orchestrator) onAudio(id string) func(audio.Event) {
	return func(ev audio.Event) {
		n := Notification{PlaybackID: ev.PlaybackID.String()}
		var ge Event = AudioEnded{}
		switch ev.Kind {
		case audio.EventStarted:
			ge, n.Kind = AudioStarted{}, NotifyNarrationStarted
		case audio.EventStopped:
			n.Kind = NotifyNarrationStopped
		default:
			n.Kind = NotifyNarrationEnded
		}
		o.signal(id, ge, n)
	}
}

// signal applies an internal event and pushes n once it is recorded.
func (o *Orchestrator) signal(id string, ev Event, n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := o.apply(ctx, id, o.runtime(id), ev); err != nil {
		o.logger.Debug().Err(err).Str("session_id", id).Str("event", EventName(ev)).Msg("internal event not applied")
		return
	}
	o.notifier.Notify(id, n)
}

func (o *Orchestrator) apply(ctx context.Context, id string, rt *runtime, ev Event) (Snapshot, []Effect, error) {
	rt.stateMu.Lock()
	defer rt.stateMu.Unlock()

	snap, err := o.load(ctx, id)
	if err != nil {
		return Snapshot{}, nil, err
	}

	next, effects, err := Transition(snap, ev)
	if err != nil {
		transitions.WithLabelValues(EventName(ev), outcomeOf(err)).Inc()
		return snap, nil, err
	}
	if err := o.save(ctx, id, next); err != nil {
		return snap, nil, err
	}
	transitions.WithLabelValues(EventName(ev), outcomeOK).Inc()

	if next.State != snap.State {
		o.logger.Info().
			Str("session_id", id).
			Str("from", string(snap.State)).
			Str("to", string(next.State)).
			Msg("state changed")
		o.notifier.Notify(id, Notification{Kind: NotifyStateChanged, State: next.State})
	}
	return next, effects, nil
}

func (o *Orchestrator) load(ctx context.Context, id string) (Snapshot, error) {
	data, err := o.store.Load(ctx, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load session %s: %w", id, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w %s: %w", errCorruptSession, id, err)
	}
	return snap, nil
}

func (o *Orchestrator) save(ctx context.Context, id string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := o.store.Save(ctx, id, data); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (o *Orchestrator) runtime(id string) *runtime {
	o.mu.Lock()
	defer o.mu.Unlock()

	rt, ok := o.runtimes[id]
	if !ok {
		rt = &runtime{busy: semaphore.NewWeighted(1)}
		rt.player = audio.NewPlayer(o.onAudio(id))
		o.runtimes[id] = rt
	}
	rt.touch(time.Now())
	return rt
}

// Prune drops runtime state of sessions idle for longer than IdleTTL.
// Sessions with work in flight or audio playing are kept.
func (o *Orchestrator) Prune(_ context.Context, now time.Time) int {
	cutoff := now.Add(-o.cfg.IdleTTL).UnixNano()

	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for id, rt := range o.runtimes {
		if rt.lastSeen.Load() > cutoff || rt.inflight.Load() > 0 || rt.player.Playing() {
			continue
		}
		if !rt.busy.TryAcquire(1) {
			continue
		}
		delete(o.runtimes, id)
		rt.busy.Release(1)
		removed++
	}
	return removed
}

// Close cancels background narration, waits for it to finish and silences
// every player.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()

	o.mu.Lock()
	players := make([]*audio.Player, 0, len(o.runtimes))
	for _, rt := range o.runtimes {
		players = append(players, rt.player)
	}
	o.mu.Unlock()

	for _, p := range players {
		p.Stop()
	}
}
