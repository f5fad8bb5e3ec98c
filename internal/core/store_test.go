package core

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweso807-blip/syncb/internal/domain"
)

func TestStoreGetOrCreateIdempotent(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())

	r1 := s.GetOrCreate("movie night")
	r2 := s.GetOrCreate("movie night")
	assert.Same(t, r1, r2)

	// Keys are case-sensitive.
	r3 := s.GetOrCreate("Movie Night")
	assert.NotSame(t, r1, r3)
}

func TestStoreGetOrCreateConcurrent(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())

	var wg sync.WaitGroup
	rooms := make([]RoomService, 16)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = s.GetOrCreate("r1")
		}(i)
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
}

func TestStoreRemove(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())
	s.GetOrCreate("r1")

	_, ok := s.Get("r1")
	require.True(t, ok)

	s.Remove("r1")
	_, ok = s.Get("r1")
	assert.False(t, ok)
}

func TestStoreList(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock())
	r := s.GetOrCreate("r1")
	addMember(r, "s1", "alice")

	ref := "abc"
	playing := true
	_, applied := r.ApplyPatch("alice", domain.Patch{MediaRef: &ref, Playing: &playing})
	require.True(t, applied)

	infos := s.List()
	require.Len(t, infos, 1)
	assert.Equal(t, domain.RoomID("r1"), infos[0].ID)
	assert.Equal(t, 1, infos[0].MemberCount)
	assert.Equal(t, "abc", infos[0].MediaRef)
	assert.True(t, infos[0].Playing)
}
