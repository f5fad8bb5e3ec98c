package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweso807-blip/syncb/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	broken bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestRoom(t *testing.T) (RoomService, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return NewRoomService(&domain.Room{ID: "r1"}, clock), clock
}

func addMember(r RoomService, sid SessionID, cid domain.ClientID) *fakeConn {
	conn := &fakeConn{}
	r.AddMember(sid, NewMemberSession(domain.NewMember(cid, ""), conn))
	return conn
}

func TestFirstJoinerBecomesHost(t *testing.T) {
	r, _ := newTestRoom(t)
	addMember(r, "s1", "alice")
	addMember(r, "s2", "bob")

	assert.Equal(t, domain.ClientID("alice"), r.HostID())
}

func TestClaimHostLastClaimWins(t *testing.T) {
	r, _ := newTestRoom(t)
	addMember(r, "s1", "alice")
	addMember(r, "s2", "bob")

	r.ClaimHost("bob")
	r.ClaimHost("alice")
	r.ClaimHost("bob")
	assert.Equal(t, domain.ClientID("bob"), r.HostID())
}

func TestHostFailoverOnRemove(t *testing.T) {
	r, _ := newTestRoom(t)
	addMember(r, "s1", "alice")
	addMember(r, "s2", "bob")

	res := r.RemoveMember("s1")
	require.True(t, res.Removed)
	assert.True(t, res.HostChanged)
	assert.Equal(t, domain.ClientID("bob"), res.NewHostID)
	assert.Equal(t, domain.ClientID("bob"), r.HostID())
	assert.False(t, res.Empty)

	// Host is always a current member or empty, never a departed id.
	res = r.RemoveMember("s2")
	assert.True(t, res.HostChanged)
	assert.Equal(t, domain.ClientID(""), res.NewHostID)
	assert.True(t, res.Empty)
}

func TestRemoveNonHostKeepsHost(t *testing.T) {
	r, _ := newTestRoom(t)
	addMember(r, "s1", "alice")
	addMember(r, "s2", "bob")

	res := r.RemoveMember("s2")
	assert.False(t, res.HostChanged)
	assert.Equal(t, domain.ClientID("alice"), r.HostID())
}

func TestApplyPatchHostOnly(t *testing.T) {
	r, _ := newTestRoom(t)
	addMember(r, "s1", "alice")
	addMember(r, "s2", "bob")

	playing := true
	_, applied := r.ApplyPatch("bob", domain.Patch{Playing: &playing})
	assert.False(t, applied)
	assert.False(t, r.Snapshot(0).State.Playing)

	_, applied = r.ApplyPatch("alice", domain.Patch{Playing: &playing})
	assert.True(t, applied)
	assert.True(t, r.Snapshot(0).State.Playing)
}

func TestApplyPatchUpdatedAtStrictlyAdvances(t *testing.T) {
	r, clock := newTestRoom(t)
	addMember(r, "s1", "alice")

	pos := 1.0
	st1, applied := r.ApplyPatch("alice", domain.Patch{Position: &pos})
	require.True(t, applied)

	// The fake clock does not move; the room clock still must.
	st2, applied := r.ApplyPatch("alice", domain.Patch{Position: &pos})
	require.True(t, applied)
	assert.True(t, st2.UpdatedAt.After(st1.UpdatedAt))

	clock.Advance(time.Second)
	st3, applied := r.ApplyPatch("alice", domain.Patch{Position: &pos})
	require.True(t, applied)
	assert.True(t, st3.UpdatedAt.After(st2.UpdatedAt))
}

func TestApplyPatchIdempotentModuloUpdatedAt(t *testing.T) {
	r, _ := newTestRoom(t)
	addMember(r, "s1", "alice")

	ref := "abc"
	playing := true
	pos := 12.0
	rate := 1.5
	p := domain.Patch{MediaRef: &ref, Playing: &playing, Position: &pos, Rate: &rate}

	st1, _ := r.ApplyPatch("alice", p)
	st2, _ := r.ApplyPatch("alice", p)

	st1.UpdatedAt = time.Time{}
	st2.UpdatedAt = time.Time{}
	assert.Equal(t, st1, st2)
}

func TestSnapshotProjectsPosition(t *testing.T) {
	r, clock := newTestRoom(t)
	addMember(r, "s1", "alice")

	playing := true
	pos := 10.0
	rate := 2.0
	clock.Advance(time.Millisecond)
	_, applied := r.ApplyPatch("alice", domain.Patch{Playing: &playing, Position: &pos, Rate: &rate})
	require.True(t, applied)

	clock.Advance(1 * time.Second)
	snap := r.Snapshot(0)
	assert.InDelta(t, 12.0, snap.State.Position, 1e-3)
	assert.Equal(t, clock.Now(), snap.State.UpdatedAt)

	// Paused state does not drift.
	paused := false
	_, _ = r.ApplyPatch("alice", domain.Patch{Playing: &paused})
	before := r.Snapshot(0).State.Position
	clock.Advance(time.Hour)
	assert.Equal(t, before, r.Snapshot(0).State.Position)
}

func TestBroadcastSkipsSenderAndBadPeers(t *testing.T) {
	r, _ := newTestRoom(t)
	c1 := addMember(r, "s1", "alice")
	c2 := addMember(r, "s2", "bob")
	c3 := addMember(r, "s3", "carol")
	c3.Close()

	res := r.Broadcast("s1", Frame(`{"type":"x"}`))
	assert.Equal(t, 1, res.SentTo)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 0, c1.count())
	assert.Equal(t, 1, c2.count())
	assert.Equal(t, 0, c3.count())

	res = r.Broadcast(NoSender, Frame(`{"type":"y"}`))
	assert.Equal(t, 2, res.SentTo)
	assert.Equal(t, 1, c1.count())
}

func TestMembersSnapshot(t *testing.T) {
	r, _ := newTestRoom(t)
	addMember(r, "s1", "alice")
	addMember(r, "s2", "bob")

	members := r.MembersSnapshot()
	ids := []domain.ClientID{members[0].ID, members[1].ID}
	assert.ElementsMatch(t, []domain.ClientID{"alice", "bob"}, ids)
}
