package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"watchparty/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomWatchReplaysThenStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := NewMemoryRoomRepository()

	id, err := repo.Create(ctx, &domain.Room{HostID: "host", Status: domain.StatusPause, Timestamp: 10})
	require.NoError(t, err)

	ch, err := repo.Watch(ctx, id)
	require.NoError(t, err)

	// The current snapshot arrives before any write.
	select {
	case snap := <-ch:
		assert.Equal(t, domain.StatusPause, snap.Status)
		assert.Equal(t, 10.0, snap.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("initial snapshot never arrived")
	}

	require.NoError(t, repo.UpdatePlayback(ctx, id, domain.StatusPlay, 42.0, time.Now()))
	select {
	case snap := <-ch:
		assert.Equal(t, domain.StatusPlay, snap.Status)
		assert.Equal(t, 42.0, snap.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("update never arrived")
	}
}

func TestRoomWatchClosesOnDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRoomRepository()

	id, err := repo.Create(ctx, &domain.Room{HostID: "host"})
	require.NoError(t, err)

	ch, err := repo.Watch(ctx, id)
	require.NoError(t, err)
	<-ch // drain the initial snapshot

	require.NoError(t, repo.Delete(ctx, id))

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must close when the room is deleted")
	case <-time.After(time.Second):
		t.Fatal("channel did not close")
	}
}

func TestRoomWatchMissingRoom(t *testing.T) {
	repo := NewMemoryRoomRepository()
	_, err := repo.Watch(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestClaimOfferIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySignalRepository()

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			claimed, existing, err := repo.ClaimOffer(ctx, "room-1", &domain.SessionDescription{
				Type: "offer", SDP: fmt.Sprintf("sdp-%d", n), UserID: domain.UserID(fmt.Sprintf("user-%d", n)),
			})
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			} else {
				assert.NotNil(t, existing, "losers must see the winning offer")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "only one claim may win")
}

func TestWatchAnswerDeliversLatePut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := NewMemorySignalRepository()

	ch, err := repo.WatchAnswer(ctx, "room-1")
	require.NoError(t, err)

	require.NoError(t, repo.PutAnswer(ctx, "room-1", &domain.SessionDescription{
		Type: "answer", SDP: "sdp", UserID: "bob",
	}))

	select {
	case answer := <-ch:
		assert.Equal(t, domain.UserID("bob"), answer.UserID)
	case <-time.After(time.Second):
		t.Fatal("answer never arrived")
	}
}

func TestWatchCandidatesReplaysInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := NewMemorySignalRepository()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AppendCandidate(ctx, "room-1", domain.RoleCaller, &domain.ICECandidate{
			Candidate: fmt.Sprintf("candidate:%d", i), UserID: "alice",
		}))
	}

	ch, err := repo.WatchCandidates(ctx, "room-1", domain.RoleCaller)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		select {
		case cand := <-ch:
			assert.Equal(t, fmt.Sprintf("candidate:%d", i), cand.Candidate)
		case <-time.After(time.Second):
			t.Fatal("replayed candidate missing")
		}
	}

	// New appends keep streaming on the same channel.
	require.NoError(t, repo.AppendCandidate(ctx, "room-1", domain.RoleCaller, &domain.ICECandidate{
		Candidate: "candidate:3", UserID: "alice",
	}))
	select {
	case cand := <-ch:
		assert.Equal(t, "candidate:3", cand.Candidate)
	case <-time.After(time.Second):
		t.Fatal("streamed candidate missing")
	}
}

func TestCandidateRolesAreSeparate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := NewMemorySignalRepository()

	require.NoError(t, repo.AppendCandidate(ctx, "room-1", domain.RoleCaller, &domain.ICECandidate{Candidate: "c", UserID: "alice"}))

	ch, err := repo.WatchCandidates(ctx, "room-1", domain.RoleCallee)
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("caller candidate leaked into the callee watch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSignalClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySignalRepository()

	claimed, _, err := repo.ClaimOffer(ctx, "room-1", &domain.SessionDescription{Type: "offer", SDP: "s", UserID: "alice"})
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.PutAnswer(ctx, "room-1", &domain.SessionDescription{Type: "answer", SDP: "s", UserID: "bob"}))

	require.NoError(t, repo.Clear(ctx, "room-1"))

	_, err = repo.GetOffer(ctx, "room-1")
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)

	// The slot can be claimed again after a clear.
	claimed, _, err = repo.ClaimOffer(ctx, "room-1", &domain.SessionDescription{Type: "offer", SDP: "s2", UserID: "carol"})
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestParticipantUpsertMergesEmptyFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryParticipantRepository()

	require.NoError(t, repo.Upsert(ctx, "room-1", &domain.VoiceParticipant{
		UserID: "alice", DisplayName: "Alice", PhotoURL: "https://example.com/a.png",
		Active: true, LastPing: time.Now(),
	}))

	// A heartbeat without profile fields must not clobber them.
	require.NoError(t, repo.Upsert(ctx, "room-1", &domain.VoiceParticipant{
		UserID: "alice", Active: true, LastPing: time.Now(), Muted: true,
	}))

	parts, err := repo.List(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "Alice", parts[0].DisplayName)
	assert.Equal(t, "https://example.com/a.png", parts[0].PhotoURL)
	assert.True(t, parts[0].Muted)
}

func TestParticipantWatchDeliversChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := NewMemoryParticipantRepository()

	ch, err := repo.Watch(ctx, "room-1")
	require.NoError(t, err)
	<-ch // empty initial snapshot

	require.NoError(t, repo.Upsert(ctx, "room-1", &domain.VoiceParticipant{
		UserID: "alice", Active: true, LastPing: time.Now(),
	}))

	select {
	case parts := <-ch:
		require.Len(t, parts, 1)
		assert.Equal(t, domain.UserID("alice"), parts[0].UserID)
	case <-time.After(time.Second):
		t.Fatal("participant update never arrived")
	}
}

func TestParticipantSetInactiveKeepsRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryParticipantRepository()

	require.NoError(t, repo.Upsert(ctx, "room-1", &domain.VoiceParticipant{
		UserID: "alice", Active: true, LastPing: time.Now(),
	}))
	require.NoError(t, repo.SetInactive(ctx, "room-1", "alice"))

	parts, err := repo.List(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.False(t, parts[0].Active)

	assert.ErrorIs(t, repo.SetInactive(ctx, "room-1", "missing"), domain.ErrParticipantNotFound)
}

func TestChatListOrdersByTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepository()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, "room-1", &domain.ChatMessage{ID: "b", Timestamp: base.Add(time.Second)}))
	require.NoError(t, repo.Append(ctx, "room-1", &domain.ChatMessage{ID: "a", Timestamp: base}))

	msgs, err := repo.List(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)
}

func TestChatWatchReplaysHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := NewMemoryChatRepository()

	require.NoError(t, repo.Append(ctx, "room-1", &domain.ChatMessage{ID: "a", Timestamp: time.Now()}))

	ch, err := repo.Watch(ctx, "room-1")
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, "a", msg.ID)
	case <-time.After(time.Second):
		t.Fatal("replayed message never arrived")
	}

	require.NoError(t, repo.Append(ctx, "room-1", &domain.ChatMessage{ID: "b", Timestamp: time.Now()}))
	select {
	case msg := <-ch:
		assert.Equal(t, "b", msg.ID)
	case <-time.After(time.Second):
		t.Fatal("streamed message never arrived")
	}
}

func TestUserCreateEnforcesUniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	require.NoError(t, repo.Create(ctx, &domain.User{ID: "u1", Email: "alice@example.com"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: "u2", Email: "alice@example.com"}), domain.ErrUserExists)

	user, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), user.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
