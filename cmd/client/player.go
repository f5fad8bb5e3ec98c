package main

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aweso807-blip/syncb/internal/client"
	"github.com/aweso807-blip/syncb/internal/domain"
)

// simPlayer is a headless player: no media is decoded, the position just
// advances with the wall clock while playing. Good enough to watch the
// reconciler do its job from a terminal.
type simPlayer struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	handler  func(client.PlayerEvent)
	ref      string
	playing  bool
	rate     float64
	basePos  float64
	markedAt time.Time
}

func newSimPlayer(clock clockwork.Clock) *simPlayer {
	return &simPlayer{clock: clock, rate: domain.DefaultRate, markedAt: clock.Now()}
}

func (p *simPlayer) OnEvent(fn func(client.PlayerEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = fn
}

func (p *simPlayer) emitLocked(kind client.EventKind) {
	if p.handler == nil {
		return
	}
	p.handler(client.PlayerEvent{Kind: kind, Position: p.positionLocked(), Rate: p.rate})
}

func (p *simPlayer) positionLocked() float64 {
	pos := p.basePos
	if p.playing {
		pos += p.rate * p.clock.Now().Sub(p.markedAt).Seconds()
	}
	return pos
}

// rebase freezes the projected position into basePos so rate and play/pause
// changes take effect from "now".
func (p *simPlayer) rebaseLocked() {
	p.basePos = p.positionLocked()
	p.markedAt = p.clock.Now()
}

func (p *simPlayer) Load(ref string, startPos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ref = ref
	p.basePos = math.Max(0, startPos)
	p.markedAt = p.clock.Now()
	p.playing = false
}

func (p *simPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.rebaseLocked()
	p.playing = true
	p.emitLocked(client.EventPlay)
}

func (p *simPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.rebaseLocked()
	p.playing = false
	p.emitLocked(client.EventPause)
}

func (p *simPlayer) Seek(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.basePos = math.Max(0, pos)
	p.markedAt = p.clock.Now()
	p.emitLocked(client.EventSeek)
}

func (p *simPlayer) SetRate(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r <= 0 {
		return
	}
	p.rebaseLocked()
	p.rate = r
	p.emitLocked(client.EventRate)
}

func (p *simPlayer) MediaRef() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref
}

func (p *simPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *simPlayer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *simPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
