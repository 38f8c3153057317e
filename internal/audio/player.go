package audio

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind labels playback lifecycle notifications.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventEnded   EventKind = "ended"
	EventStopped EventKind = "stopped"
)

// Event is delivered to the player's callback outside of its lock.
type Event struct {
	Kind       EventKind
	PlaybackID uuid.UUID
}

// Clip is one narration ready to be played.
type Clip struct {
	Text   string
	Buffer *Buffer
}

// Playback is the handle of a clip that was started.
type Playback struct {
	ID        uuid.UUID
	Clip      Clip
	StartedAt time.Time

	timer *time.Timer
}

// Player tracks playback of at most one clip at a time. Playing a new clip
// stops the previous one first. Clip end is modelled with a timer set to the
// clip's duration.
type Player struct {
	mu      sync.Mutex
	current *Playback
	onEvent func(Event)
}

// NewPlayer creates a player; onEvent may be nil.
func NewPlayer(onEvent func(Event)) *Player {
	return &Player{onEvent: onEvent}
}

// Play starts clip, stopping whatever was playing.
func (p *Player) Play(clip Clip) *Playback {
	pb := &Playback{
		ID:        uuid.New(),
		Clip:      clip,
		StartedAt: time.Now(),
	}

	p.mu.Lock()
	prev := p.detachLocked()
	p.current = pb
	p.mu.Unlock()

	if prev != nil {
		p.emit(Event{Kind: EventStopped, PlaybackID: prev.ID})
	}
	p.emit(Event{Kind: EventStarted, PlaybackID: pb.ID})

	var length time.Duration
	if clip.Buffer != nil {
		length = clip.Buffer.Duration()
	}

	p.mu.Lock()
	if p.current == pb {
		pb.timer = time.AfterFunc(length, func() { p.finish(pb) })
	}
	p.mu.Unlock()

	return pb
}

// Stop halts the current clip. It reports whether anything was playing.
func (p *Player) Stop() bool {
	p.mu.Lock()
	prev := p.detachLocked()
	p.mu.Unlock()

	if prev == nil {
		return false
	}
	p.emit(Event{Kind: EventStopped, PlaybackID: prev.ID})
	return true
}

// Current returns the clip being played, if any.
func (p *Player) Current() (*Playback, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.current != nil
}

// Playing reports whether a clip is active.
func (p *Player) Playing() bool {
	_, ok := p.Current()
	return ok
}

func (p *Player) finish(pb *Playback) {
	p.mu.Lock()
	if p.current != pb {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	p.emit(Event{Kind: EventEnded, PlaybackID: pb.ID})
}

func (p *Player) detachLocked() *Playback {
	prev := p.current
	if prev == nil {
		return nil
	}
	if prev.timer != nil {
		prev.timer.Stop()
	}
	p.current = nil
	return prev
}

func (p *Player) emit(ev Event) {
	if p.onEvent != nil {
		p.onEvent(ev)
	}
}
