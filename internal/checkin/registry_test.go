package checkin

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/logging"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

var refTime = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryStore, *testClock) {
	t.Helper()

	store := storage.NewMemoryStore()
	clock := &testClock{now: refTime}
	r := NewRegistry(store, WithClock(clock.Now), WithLogger(logging.Discard()))
	return r, store, clock
}

func intPtr(n int) *int { return &n }

func createScrim(t *testing.T, r *Registry, id string, maxPlayers *int) Session {
	t.Helper()

	s, err := r.CreateSession(context.Background(), NewSession{
		ID:         id,
		Type:       SessionTypeScrim,
		StartTime:  refTime.Add(30 * time.Minute),
		EndTime:    refTime.Add(150 * time.Minute),
		MaxPlayers: maxPlayers,
	})
	require.NoError(t, err)
	return s
}

func requireCountersConsistent(t *testing.T, s Session) {
	t.Helper()

	in, out := 0, 0
	for _, p := range s.Players {
		switch p.Status {
		case PlayerCheckedIn:
			in++
		case PlayerCheckedOut:
			out++
		}
	}
	require.Equal(t, in, s.CheckinCount, "checkin count")
	require.Equal(t, out, s.CheckoutCount, "checkout count")
}

func TestRegistry_CreateSession(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	s := createScrim(t, r, "S1", intPtr(2))
	require.Equal(t, StatusActive, s.Status)
	require.Zero(t, s.CheckinCount)
	require.Zero(t, s.CheckoutCount)
	require.Equal(t, refTime, s.CreatedAt)
	require.Equal(t, 1, store.Persists())

	_, err := r.CreateSession(context.Background(), NewSession{ID: "S1", Type: SessionTypeRanked})
	require.ErrorIs(t, err, ErrDuplicateSession)
	require.Equal(t, KindInvalidState, Kind(err))

	got, ok := r.GetSession("S1")
	require.True(t, ok)
	require.Equal(t, SessionTypeScrim, got.Type)
}

func TestRegistry_CreateSessionValidation(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	cases := map[string]NewSession{
		"empty id":      {ID: "  ", Type: SessionTypeScrim},
		"unknown type":  {ID: "x", Type: SessionType("casual")},
		"zero capacity": {ID: "y", Type: SessionTypeScrim, MaxPlayers: intPtr(0)},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.CreateSession(ctx, p)
			require.ErrorIs(t, err, ErrInvalidSession)
		})
	}
	require.Empty(t, r.ListSessions())
}

func TestRegistry_ExampleScenario(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", intPtr(2))

	a, err := r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, a.Position)
	require.Equal(t, 1, a.Session.CheckinCount)

	b, err := r.CheckIn(ctx, "S1", "B", "bravo")
	require.NoError(t, err)
	require.Equal(t, 2, b.Position)
	require.Equal(t, 2, b.Session.CheckinCount)

	_, err = r.CheckIn(ctx, "S1", "C", "charlie")
	require.ErrorIs(t, err, ErrSessionFull)
	require.Equal(t, KindCapacityExceeded, Kind(err))
	s, _ := r.GetSession("S1")
	require.Equal(t, 2, s.CheckinCount)
	require.NotContains(t, s.Players, "C")

	out, err := r.CheckOut(ctx, "S1", "A")
	require.NoError(t, err)
	require.Equal(t, 1, out.Session.CheckoutCount)

	again, err := r.CheckIn(ctx, "S1", "A", "alpha2")
	require.NoError(t, err)
	require.Equal(t, 2, again.Session.CheckinCount)
	require.Equal(t, 0, again.Session.CheckoutCount)
	require.Equal(t, "alpha2", again.Session.Players["A"].Username)
	requireCountersConsistent(t, again.Session)
}

func TestRegistry_RoundTripSummary(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", nil)

	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := r.CheckIn(ctx, "S1", id, "user-"+id)
		require.NoError(t, err)
	}
	_, err := r.CheckOut(ctx, "S1", "p3")
	require.NoError(t, err)

	summary, ok := r.GetSessionSummary("S1")
	require.True(t, ok)
	require.Len(t, summary.Players, 3)
	require.Equal(t, 3, summary.Stats.TotalPlayers)
	require.Equal(t, 2, summary.Stats.CheckedIn)
	require.Equal(t, 1, summary.Stats.CheckedOut)
	require.Zero(t, summary.Stats.NoShows)

	statuses := map[PlayerStatus]int{}
	for _, p := range summary.Players {
		statuses[p.Status]++
	}
	require.Equal(t, map[PlayerStatus]int{PlayerCheckedIn: 2, PlayerCheckedOut: 1}, statuses)

	_, ok = r.GetSessionSummary("missing")
	require.False(t, ok)
}

func TestRegistry_CheckInErrors(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", nil)

	_, err := r.CheckIn(ctx, "nope", "A", "alpha")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.Equal(t, KindNotFound, Kind(err))

	_, err = r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)
	_, err = r.CheckIn(ctx, "S1", "A", "alpha")
	require.ErrorIs(t, err, ErrAlreadyCheckedIn)
	s, _ := r.GetSession("S1")
	require.Equal(t, 1, s.CheckinCount)

	ok, err := r.CancelSession(ctx, "S1")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.CheckIn(ctx, "S1", "B", "bravo")
	require.ErrorIs(t, err, ErrSessionNotActive)
}

func TestRegistry_CheckOutErrors(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", nil)

	_, err := r.CheckOut(ctx, "nope", "A")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.CheckOut(ctx, "S1", "A")
	require.ErrorIs(t, err, ErrPlayerNotCheckedIn)

	_, err = r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)
	_, err = r.CheckOut(ctx, "S1", "A")
	require.NoError(t, err)
	_, err = r.CheckOut(ctx, "S1", "A")
	require.ErrorIs(t, err, ErrAlreadyCheckedOut)

	require.NoError(t, r.MarkNoShow(ctx, "S1", "B"))
	_, err = r.CheckOut(ctx, "S1", "B")
	require.ErrorIs(t, err, ErrPlayerNotCheckedIn)
}

func TestRegistry_CheckOutAfterClose(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", nil)

	_, err := r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)
	_, ok, err := r.CloseSession(ctx, "S1")
	require.NoError(t, err)
	require.True(t, ok)

	res, err := r.CheckOut(ctx, "S1", "A")
	require.NoError(t, err)
	require.Equal(t, StatusClosed, res.Session.Status)
	require.Equal(t, 1, res.Session.CheckoutCount)
}

func TestRegistry_MarkNoShow(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", intPtr(1))

	require.ErrorIs(t, r.MarkNoShow(ctx, "nope", "A"), ErrSessionNotFound)

	_, err := r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)
	require.NoError(t, r.MarkNoShow(ctx, "S1", "A"))
	require.NoError(t, r.MarkNoShow(ctx, "S1", "ghost"))

	s, _ := r.GetSession("S1")
	require.Equal(t, PlayerNoShow, s.Players["A"].Status)
	require.Equal(t, PlayerNoShow, s.Players["ghost"].Status)
	require.Zero(t, s.CheckinCount)
	requireCountersConsistent(t, s)

	// The freed slot can be taken again.
	_, err = r.CheckIn(ctx, "S1", "B", "bravo")
	require.NoError(t, err)

	require.Equal(t, 1, r.GetPlayerStats("A").NoShows)
	require.Equal(t, 1, r.GetPlayerStats("ghost").NoShows)

	summary, _ := r.GetSessionSummary("S1")
	require.Equal(t, 2, summary.Stats.NoShows)
}

func TestRegistry_CancelIsIdempotent(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", nil)
	createScrim(t, r, "S2", nil)

	_, err := r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)

	ok, err := r.CancelSession(ctx, "S1")
	require.NoError(t, err)
	require.True(t, ok)
	before, _ := r.GetSession("S1")

	ok, err = r.CancelSession(ctx, "S1")
	require.NoError(t, err)
	require.False(t, ok)

	_, closed, err := r.CloseSession(ctx, "S1")
	require.NoError(t, err)
	require.False(t, closed)

	after, _ := r.GetSession("S1")
	require.Equal(t, StatusCancelled, after.Status)
	require.Equal(t, before.CheckinCount, after.CheckinCount)
	require.Equal(t, before.CheckoutCount, after.CheckoutCount)
	require.NotNil(t, after.CancelledAt)
	require.Nil(t, after.ClosedAt)

	_, ok, err = r.CloseSession(ctx, "S2")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.CancelSession(ctx, "S2")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.CancelSession(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = r.CloseSession(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.Empty(t, r.GetActiveSessions())
}

func TestRegistry_PersistFailureRollsBack(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", nil)
	_, err := r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)

	store.SetFailure(errors.New("disk full"))

	_, err = r.CheckIn(ctx, "S1", "B", "bravo")
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	require.Equal(t, KindPersistence, Kind(err))

	_, err = r.CheckOut(ctx, "S1", "A")
	require.ErrorAs(t, err, &persistErr)

	_, err = r.CreateSession(ctx, NewSession{ID: "S2", Type: SessionTypeRanked})
	require.ErrorAs(t, err, &persistErr)

	ok, err := r.CancelSession(ctx, "S1")
	require.ErrorAs(t, err, &persistErr)
	require.False(t, ok)

	s, _ := r.GetSession("S1")
	require.Equal(t, StatusActive, s.Status)
	require.Equal(t, 1, s.CheckinCount)
	require.Zero(t, s.CheckoutCount)
	require.NotContains(t, s.Players, "B")
	_, exists := r.GetSession("S2")
	require.False(t, exists)
	require.Equal(t, 0, r.GetPlayerStats("B").TotalCheckins)
	require.Equal(t, 0, r.GetPlayerStats("A").TotalCheckouts)

	store.SetFailure(nil)
	_, err = r.CheckIn(ctx, "S1", "B", "bravo")
	require.NoError(t, err)
}

func TestRegistry_LoadRestoresState(t *testing.T) {
	r, store, clock := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", intPtr(5))
	_, err := r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)
	_, err = r.CheckOut(ctx, "S1", "A")
	require.NoError(t, err)

	reloaded := NewRegistry(store, WithClock(clock.Now), WithLogger(logging.Discard()))
	require.NoError(t, reloaded.Load(ctx))

	s, ok := reloaded.GetSession("S1")
	require.True(t, ok)
	require.Equal(t, 5, *s.MaxPlayers)
	require.Equal(t, PlayerCheckedOut, s.Players["A"].Status)
	require.Equal(t, 1, s.CheckoutCount)

	stats := reloaded.GetPlayerStats("A")
	require.Equal(t, 1, stats.TotalCheckins)
	require.Equal(t, 1, stats.TotalCheckouts)
	require.Equal(t, 1, stats.ByType[SessionTypeScrim].Checkins)
	require.Equal(t, 1, stats.ByType[SessionTypeScrim].Checkouts)
}

func TestRegistry_LoadRecountsLegacyCounters(t *testing.T) {
	store := storage.NewMemoryStore()
	legacy := `{"sessions":{"old":{"id":"old","type":"mm","status":"active","checkin_count":7,"checkout_count":3,
		"players":{"u1":{"username":"a","status":"checked_out"},"u2":{"username":"b","status":"checked_in"}}}},
		"player_stats":{}}`
	require.NoError(t, store.Set(context.Background(), DocumentKey, []byte(legacy)))

	r := NewRegistry(store, WithLogger(logging.Discard()))
	require.NoError(t, r.Load(context.Background()))

	s, ok := r.GetSession("old")
	require.True(t, ok)
	require.Equal(t, SessionTypeMatchmaking, s.Type)
	require.Equal(t, 1, s.CheckinCount)
	require.Equal(t, 1, s.CheckoutCount)
}

func TestRegistry_LoadDropsEmptyEntries(t *testing.T) {
	store := storage.NewMemoryStore()
	raw := `{"sessions":{"gone":null,"S1":{"id":"S1","type":"scrim","status":"active",
		"players":{"p":null,"u1":{"username":"a","status":"checked_in"}}}},
		"player_stats":{"p":null}}`
	require.NoError(t, store.Set(context.Background(), DocumentKey, []byte(raw)))

	r := NewRegistry(store, WithLogger(logging.Discard()))
	require.NoError(t, r.Load(context.Background()))

	_, ok := r.GetSession("gone")
	require.False(t, ok)

	s, ok := r.GetSession("S1")
	require.True(t, ok)
	require.Len(t, s.Players, 1)
	require.Equal(t, 1, s.CheckinCount)
	require.Zero(t, r.GetPlayerStats("p").TotalCheckins)

	_, err := r.CheckIn(context.Background(), "S1", "p", "pat")
	require.NoError(t, err)
}

func TestRegistry_PlayerSessions(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		createScrim(t, r, fmt.Sprintf("S%d", i), nil)
		clock.Advance(time.Minute)
	}
	for _, id := range []string{"S1", "S2", "S4"} {
		_, err := r.CheckIn(ctx, id, "A", "alpha")
		require.NoError(t, err)
	}

	got := r.GetPlayerSessions("A", 0)
	require.Len(t, got, 3)
	require.Equal(t, "S4", got[0].Session.ID)
	require.Equal(t, "S2", got[1].Session.ID)
	require.Equal(t, "S1", got[2].Session.ID)
	require.Equal(t, PlayerCheckedIn, got[0].Player.Status)

	require.Len(t, r.GetPlayerSessions("A", 2), 2)
	require.Empty(t, r.GetPlayerSessions("nobody", 5))

	all := r.ListSessions()
	require.Len(t, all, 4)
	require.Equal(t, "S4", all[0].ID)
}

func TestRegistry_PlayerStatsByType(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.CreateSession(ctx, NewSession{ID: "T1", Type: SessionTypeTournament})
	require.NoError(t, err)
	createScrim(t, r, "S1", nil)

	_, err = r.CheckIn(ctx, "T1", "A", "alpha")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)

	stats := r.GetPlayerStats("A")
	require.Equal(t, 2, stats.TotalCheckins)
	require.Equal(t, 1, stats.ByType[SessionTypeTournament].Checkins)
	require.Equal(t, 1, stats.ByType[SessionTypeScrim].Checkins)
	require.Equal(t, refTime.Add(time.Hour), *stats.LastActivity)

	empty := r.GetPlayerStats("nobody")
	require.Len(t, empty.ByType, len(SessionTypes))
	require.Nil(t, empty.LastActivity)
}

func TestRegistry_Observers(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	var events []Event
	r.Subscribe(ObserverFunc(func(_ context.Context, ev Event) {
		events = append(events, ev)
	}))

	createScrim(t, r, "S1", nil)
	_, err := r.CheckIn(ctx, "S1", "A", "alpha")
	require.NoError(t, err)
	_, err = r.CheckIn(ctx, "S1", "A", "alpha")
	require.Error(t, err)
	_, err = r.CheckOut(ctx, "S1", "A")
	require.NoError(t, err)
	_, err = r.CancelSession(ctx, "S1")
	require.NoError(t, err)
	_, err = r.CancelSession(ctx, "S1")
	require.NoError(t, err)

	types := make([]EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	require.Equal(t, []EventType{EventSessionCreated, EventCheckedIn, EventCheckedOut, EventSessionCancelled}, types)
	require.Equal(t, 1, events[1].Position)
	require.Equal(t, "alpha", events[2].Username)
}

func TestRegistry_CounterConsistencyUnderRandomOps(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	maxPlayers := 4
	createScrim(t, r, "S1", intPtr(maxPlayers))

	rng := rand.New(rand.NewSource(42))
	players := []string{"a", "b", "c", "d", "e", "f"}

	for i := 0; i < 500; i++ {
		p := players[rng.Intn(len(players))]
		switch rng.Intn(3) {
		case 0:
			_, _ = r.CheckIn(ctx, "S1", p, p)
		case 1:
			_, _ = r.CheckOut(ctx, "S1", p)
		case 2:
			_ = r.MarkNoShow(ctx, "S1", p)
		}

		s, _ := r.GetSession("S1")
		requireCountersConsistent(t, s)
		require.LessOrEqual(t, s.CheckinCount, maxPlayers)
	}
}

func TestRegistry_ConcurrentCheckInsRespectCapacity(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	createScrim(t, r, "S1", intPtr(5))

	var wg sync.WaitGroup
	positions := make(chan int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.CheckIn(ctx, "S1", fmt.Sprintf("p%d", i), "player")
			if err == nil {
				positions <- res.Position
			}
		}(i)
	}
	wg.Wait()
	close(positions)

	seen := map[int]bool{}
	for pos := range positions {
		require.False(t, seen[pos], "duplicate position %d", pos)
		seen[pos] = true
	}
	require.Len(t, seen, 5)

	s, _ := r.GetSession("S1")
	require.Equal(t, 5, s.CheckinCount)
}
