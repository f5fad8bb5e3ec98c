package client

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/domain"
)

const (
	// DriftThreshold is the drift, in seconds, above which a hard seek is
	// worth the visible jump. Sub-threshold drift is left alone so peers do
	// not jitter from constant micro-seeking.
	DriftThreshold = 0.35
	// RateEpsilon is the playback-rate difference below which rates count
	// as equal.
	RateEpsilon = 0.01
)

// Reconciler applies relayed room state to the local player and, when this
// client is host, turns organic player transitions into outbound patches.
// Corrective player calls are marked in flight so the events they trigger
// never loop back out as host syncs.
//
// Players fire events synchronously under their own locks and those events
// re-enter the reconciler, so mu is never held across a player call. applyMu
// serializes whole correction sequences instead.
type Reconciler struct {
	player Player
	clock  clockwork.Clock
	send   func(domain.Patch)

	suppress atomic.Bool
	applyMu  sync.Mutex

	mu       sync.Mutex
	clientID domain.ClientID
	hostID   domain.ClientID
	latency  time.Duration
}

func NewReconciler(player Player, clock clockwork.Clock, clientID domain.ClientID, send func(domain.Patch)) *Reconciler {
	r := &Reconciler{player: player, clock: clock, clientID: clientID, send: send}
	player.OnEvent(r.handlePlayerEvent)
	return r
}

func (r *Reconciler) SetHost(hostID domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostID = hostID
}

func (r *Reconciler) IsHost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID == r.clientID
}

// SetLatency records the measured half round trip used to project the
// relay's state onto local time.
func (r *Reconciler) SetLatency(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency = d
}

// ApplyRemote reconciles the local player with a relayed state.
//
// A media switch loads, seeks and applies the rate, then stops: a fresh
// load is never drift-compared against a stale local position. Otherwise
// rate is corrected first, then position when drift exceeds the threshold,
// then play/pause.
func (r *Reconciler) ApplyRemote(st domain.PlaybackState) {
	if st.MediaRef == "" {
		return
	}
	r.mu.Lock()
	latency := r.latency
	r.mu.Unlock()

	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	target := math.Max(0, domain.Project(st, r.clock.Now(), latency))

	if r.player.MediaRef() != st.MediaRef {
		r.correcting(func() {
			r.player.Load(st.MediaRef, target)
			r.player.SetRate(st.Rate)
		})
		return
	}

	if math.Abs(r.player.Rate()-st.Rate) > RateEpsilon {
		r.correcting(func() { r.player.SetRate(st.Rate) })
	}

	drift := math.Abs(target - r.player.Position())
	if drift > DriftThreshold {
		log.Debug().Str("module", "client.reconciler").Float64("drift", drift).Msg("hard seek")
		r.correcting(func() { r.player.Seek(target) })
	}

	if st.Playing != r.player.Playing() {
		r.correcting(func() {
			if st.Playing {
				r.player.Play()
			} else {
				r.player.Pause()
			}
		})
	}
}

// correcting runs a programmatic player call with the in-flight marker set,
// so the player events it fires are told apart from organic ones.
func (r *Reconciler) correcting(fn func()) {
	r.suppress.Store(true)
	defer r.suppress.Store(false)
	fn()
}

// handlePlayerEvent is the host-side capture path: organic transitions
// become minimal patches carrying only the changed fields plus the current
// position. Events fired by an in-flight correction are dropped here.
func (r *Reconciler) handlePlayerEvent(ev PlayerEvent) {
	if r.suppress.Load() {
		return
	}
	if !r.IsHost() || r.send == nil {
		return
	}

	pos := ev.Position
	rate := ev.Rate
	var p domain.Patch
	switch ev.Kind {
	case EventPlay:
		playing := true
		p = domain.Patch{Playing: &playing, Position: &pos, Rate: &rate}
	case EventPause:
		playing := false
		p = domain.Patch{Playing: &playing, Position: &pos, Rate: &rate}
	case EventRate:
		p = domain.Patch{Rate: &rate, Position: &pos}
	case EventSeek:
		p = domain.Patch{Position: &pos}
	default:
		return
	}
	r.send(p)
}

// LoadMedia is the host action for switching what the room watches: load
// locally without echoing the resulting events, then push the full patch.
func (r *Reconciler) LoadMedia(ref string, playing bool) {
	r.applyMu.Lock()
	r.correcting(func() {
		r.player.Load(ref, 0)
	})
	r.applyMu.Unlock()
	if r.send == nil || !r.IsHost() {
		return
	}
	pos := 0.0
	rate := domain.DefaultRate
	r.send(domain.Patch{MediaRef: &ref, Playing: &playing, Position: &pos, Rate: &rate})
}
