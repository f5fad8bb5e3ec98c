package client

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweso807-blip/syncb/internal/domain"
)

// fakePlayer records every call and fires its event handler synchronously,
// the way a real player surface fires callbacks for programmatic calls too.
type fakePlayer struct {
	ref        string
	pos        float64
	rate       float64
	playing    bool
	handler    func(PlayerEvent)
	onMediaRef func()

	loads  []float64
	seeks  []float64
	rates  []float64
	plays  int
	pauses int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{rate: 1}
}

func (p *fakePlayer) OnEvent(fn func(PlayerEvent)) { p.handler = fn }

func (p *fakePlayer) fire(kind EventKind) {
	if p.handler != nil {
		p.handler(PlayerEvent{Kind: kind, Position: p.pos, Rate: p.rate})
	}
}

func (p *fakePlayer) Load(ref string, startPos float64) {
	p.ref = ref
	p.pos = startPos
	p.playing = false
	p.loads = append(p.loads, startPos)
}

func (p *fakePlayer) Play() {
	p.playing = true
	p.plays++
	p.fire(EventPlay)
}

func (p *fakePlayer) Pause() {
	p.playing = false
	p.pauses++
	p.fire(EventPause)
}

func (p *fakePlayer) Seek(pos float64) {
	p.pos = pos
	p.seeks = append(p.seeks, pos)
	p.fire(EventSeek)
}

func (p *fakePlayer) SetRate(r float64) {
	p.rate = r
	p.rates = append(p.rates, r)
	p.fire(EventRate)
}

func (p *fakePlayer) MediaRef() string {
	if p.onMediaRef != nil {
		p.onMediaRef()
	}
	return p.ref
}
func (p *fakePlayer) Position() float64 { return p.pos }
func (p *fakePlayer) Rate() float64     { return p.rate }
func (p *fakePlayer) Playing() bool     { return p.playing }

type patchRecorder struct {
	patches []domain.Patch
}

func (r *patchRecorder) record(p domain.Patch) { r.patches = append(r.patches, p) }

func newTestReconciler(t *testing.T) (*Reconciler, *fakePlayer, *patchRecorder, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	player := newFakePlayer()
	rec := &patchRecorder{}
	r := NewReconciler(player, clock, "me", rec.record)
	return r, player, rec, clock
}

// remote builds a relayed state whose projection at the fake clock's "now"
// equals position (UpdatedAt == now, zero elapsed).
func remote(clock clockwork.Clock, ref string, playing bool, pos, rate float64) domain.PlaybackState {
	return domain.PlaybackState{MediaRef: ref, Playing: playing, Position: pos, Rate: rate, UpdatedAt: clock.Now()}
}

func TestDriftBelowThresholdNotCorrected(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"
	player.pos = 5.00
	player.playing = true

	r.ApplyRemote(remote(clock, "abc", true, 5.30, 1))
	assert.Empty(t, player.seeks, "0.30s drift must not trigger a hard seek")
}

func TestDriftAboveThresholdHardSeeks(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"
	player.pos = 5.00
	player.playing = true

	r.ApplyRemote(remote(clock, "abc", true, 5.40, 1))
	require.Len(t, player.seeks, 1)
	assert.InDelta(t, 5.40, player.seeks[0], 1e-9)
}

func TestLatencyBiasShiftsTarget(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"
	player.pos = 5.00
	player.playing = true

	// Target 5.1 with 100ms bias: inside the threshold.
	r.SetLatency(100 * time.Millisecond)
	r.ApplyRemote(remote(clock, "abc", true, 5.00, 1))
	assert.Empty(t, player.seeks)

	// 500ms bias pushes the target to 5.5: hard seek.
	r.SetLatency(500 * time.Millisecond)
	r.ApplyRemote(remote(clock, "abc", true, 5.00, 1))
	require.Len(t, player.seeks, 1)
	assert.InDelta(t, 5.5, player.seeks[0], 1e-9)
}

func TestRateCorrected(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"
	player.pos = 1
	player.playing = true
	player.rate = 1

	r.ApplyRemote(remote(clock, "abc", true, 1, 1.5))
	require.Len(t, player.rates, 1)
	assert.Equal(t, 1.5, player.rates[0])
}

func TestRateWithinEpsilonUntouched(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"
	player.pos = 1
	player.playing = true
	player.rate = 1.005

	r.ApplyRemote(remote(clock, "abc", true, 1, 1.0))
	assert.Empty(t, player.rates)
}

func TestMediaSwitchLoadsAndStops(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "old"
	player.pos = 100
	player.playing = true

	r.ApplyRemote(remote(clock, "new", true, 7, 2))

	require.Len(t, player.loads, 1)
	assert.InDelta(t, 7.0, player.loads[0], 1e-9)
	assert.Equal(t, "new", player.ref)
	require.Len(t, player.rates, 1)
	assert.Equal(t, 2.0, player.rates[0])
	// A fresh load is not drift-compared against the stale position.
	assert.Empty(t, player.seeks)
	assert.Zero(t, player.plays)
}

func TestPlayPauseCorrection(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"
	player.pos = 1
	player.playing = false

	r.ApplyRemote(remote(clock, "abc", true, 1, 1))
	assert.Equal(t, 1, player.plays)

	r.ApplyRemote(remote(clock, "abc", false, 1, 1))
	assert.Equal(t, 1, player.pauses)
}

func TestEmptyMediaRefIgnored(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"
	player.pos = 50
	player.playing = true

	r.ApplyRemote(remote(clock, "", false, 0, 1))
	assert.Empty(t, player.seeks)
	assert.Empty(t, player.loads)
	assert.Zero(t, player.pauses)
}

// Corrections fire the same player callbacks a user action would; the
// in-flight marker must keep them from looping back out as host syncs.
func TestCorrectionsDoNotEchoOutbound(t *testing.T) {
	r, player, rec, clock := newTestReconciler(t)
	r.SetHost("me")
	player.ref = "abc"
	player.pos = 0
	player.playing = false
	player.rate = 2

	// Triggers rate correction, hard seek and play: three player events.
	r.ApplyRemote(remote(clock, "abc", true, 10, 1))
	require.Equal(t, 1, player.plays)
	require.Len(t, player.seeks, 1)
	require.Len(t, player.rates, 1)
	assert.Empty(t, rec.patches)
}

func TestHostCaptureEmitsMinimalPatches(t *testing.T) {
	r, player, rec, _ := newTestReconciler(t)
	r.SetHost("me")

	player.pos = 12
	player.rate = 1.5
	player.Play()

	require.Len(t, rec.patches, 1)
	p := rec.patches[0]
	require.NotNil(t, p.Playing)
	assert.True(t, *p.Playing)
	require.NotNil(t, p.Position)
	assert.Equal(t, 12.0, *p.Position)
	require.NotNil(t, p.Rate)
	assert.Equal(t, 1.5, *p.Rate)
	assert.Nil(t, p.MediaRef)

	player.Seek(20)
	require.Len(t, rec.patches, 2)
	seek := rec.patches[1]
	require.NotNil(t, seek.Position)
	assert.Equal(t, 20.0, *seek.Position)
	assert.Nil(t, seek.Playing)
	assert.Nil(t, seek.Rate)
}

func TestNonHostEventsNotSent(t *testing.T) {
	r, player, rec, _ := newTestReconciler(t)
	r.SetHost("someone-else")

	player.Play()
	player.Seek(5)
	assert.Empty(t, rec.patches)
}

func TestLoadMediaPushesFullPatch(t *testing.T) {
	r, player, rec, _ := newTestReconciler(t)
	r.SetHost("me")

	r.LoadMedia("abc12345678", true)

	require.Len(t, player.loads, 1)
	require.Len(t, rec.patches, 1)
	p := rec.patches[0]
	require.NotNil(t, p.MediaRef)
	assert.Equal(t, "abc12345678", *p.MediaRef)
	require.NotNil(t, p.Playing)
	assert.True(t, *p.Playing)
	require.NotNil(t, p.Position)
	assert.Equal(t, 0.0, *p.Position)
	require.NotNil(t, p.Rate)
	assert.Equal(t, 1.0, *p.Rate)
}

// Players fire events synchronously under their own locks, and those events
// call back into the reconciler. ApplyRemote must therefore never hold the
// state lock across a player call, or a concurrent organic event hangs both
// goroutines for good.
func TestApplyRemoteAllowsReentrantReconcilerCalls(t *testing.T) {
	r, player, _, clock := newTestReconciler(t)
	player.ref = "abc"

	reentered := make(chan bool, 1)
	player.onMediaRef = func() {
		select {
		case reentered <- r.IsHost():
		default:
		}
	}

	done := make(chan struct{})
	go func() {
		r.ApplyRemote(remote(clock, "abc", false, 0, 1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ApplyRemote blocked on a re-entrant reconciler call")
	}
	assert.False(t, <-reentered)
}

func TestIsHostTracksHostChanges(t *testing.T) {
	r, _, _, _ := newTestReconciler(t)
	assert.False(t, r.IsHost())
	r.SetHost("me")
	assert.True(t, r.IsHost())
	r.SetHost("other")
	assert.False(t, r.IsHost())
}
