package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wrenolds/lurkwatch/tracker"
	"github.com/wrenolds/lurkwatch/twitchapi"
)

type stubSource struct {
	userID      string
	userIDErr   error
	userIDCalls int

	streams    []twitchapi.StreamMeta
	streamsErr error

	chatters     [][]string
	chattersErr  error
	chattersCall int

	followers    [][]twitchapi.Follower
	followersErr error
	followerCall int
}

func (s *stubSource) GetUserID(ctx context.Context, login string) (string, error) {
	s.userIDCalls++
	return s.userID, s.userIDErr
}

func (s *stubSource) GetStreams(ctx context.Context, login string) ([]twitchapi.StreamMeta, error) {
	return s.streams, s.streamsErr
}

func (s *stubSource) GetChatters(ctx context.Context, broadcasterID, moderatorID string) ([]string, error) {
	if s.chattersErr != nil {
		return nil, s.chattersErr
	}
	if s.chattersCall >= len(s.chatters) {
		return nil, errors.New("no more pages configured")
	}
	page := s.chatters[s.chattersCall]
	s.chattersCall++
	return page, nil
}

func (s *stubSource) GetRecentFollowers(ctx context.Context, broadcasterID string) ([]twitchapi.Follower, error) {
	if s.followersErr != nil {
		return nil, s.followersErr
	}
	if s.followerCall >= len(s.followers) {
		return nil, nil
	}
	page := s.followers[s.followerCall]
	s.followerCall++
	return page, nil
}

func newTestPoller(src ChattersSource) (*Poller, *tracker.Tracker) {
	tr := tracker.New(tracker.Options{HistoryCap: 100, LogArrivals: true})
	clock := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	p := &Poller{
		Source:  src,
		Tracker: tr,
		Channel: "somechannel",
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
	return p, tr
}

func TestCycleIngestsSnapshot(t *testing.T) {
	src := &stubSource{
		userID: "b123",
		chatters: [][]string{
			{"alice", "bob"},
			{"alice"},
		},
	}
	p, tr := newTestPoller(src)

	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if got := tr.Snapshot(); len(got.Current) != 2 {
		t.Fatalf("current=%d, want 2", len(got.Current))
	}

	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	st := tr.Snapshot()
	if len(st.Current) != 1 || st.Current[0].Username != "alice" {
		t.Fatalf("current=%+v, want only alice", st.Current)
	}
	if len(st.RecentlyLeft) != 1 || st.RecentlyLeft[0].Username != "bob" {
		t.Fatalf("left=%+v, want bob departed", st.RecentlyLeft)
	}
}

func TestCycleCachesBroadcasterID(t *testing.T) {
	src := &stubSource{userID: "b123", chatters: [][]string{{"alice"}, {"alice"}}}
	p, _ := newTestPoller(src)

	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if src.userIDCalls != 1 {
		t.Fatalf("GetUserID called %d times, want 1", src.userIDCalls)
	}
}

func TestCycleErrorLeavesTrackerUntouched(t *testing.T) {
	src := &stubSource{userID: "b123", chatters: [][]string{{"alice", "bob"}}}
	p, tr := newTestPoller(src)

	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}

	src.chattersErr = errors.New("helix 502")
	if err := p.Cycle(t.Context()); err == nil {
		t.Fatal("expected transport error")
	}
	// Nobody departed just because the fetch failed.
	st := tr.Snapshot()
	if len(st.Current) != 2 || len(st.RecentlyLeft) != 0 {
		t.Fatalf("state=%+v, want unchanged after failed poll", st.Stats)
	}
}

func TestCycleRequireLiveSkipsOffline(t *testing.T) {
	src := &stubSource{userID: "b123", chatters: [][]string{{"alice"}}}
	p, tr := newTestPoller(src)
	p.RequireLive = true

	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if src.chattersCall != 0 {
		t.Fatal("chatters fetched while offline")
	}
	if got := tr.Snapshot(); len(got.Current) != 0 {
		t.Fatalf("current=%+v, want empty", got.Current)
	}

	src.streams = []twitchapi.StreamMeta{{ID: "1", Title: "live now"}}
	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("cycle while live: %v", err)
	}
	if got := tr.Snapshot(); len(got.Current) != 1 {
		t.Fatalf("current=%+v, want alice after live cycle", got.Current)
	}
}

func TestCycleIngestsRecentFollowers(t *testing.T) {
	src := &stubSource{
		userID:   "b123",
		chatters: [][]string{{"alice"}},
		followers: [][]twitchapi.Follower{
			{{Login: "carol", Name: "Carol", FollowedAt: time.Date(2025, 6, 1, 19, 59, 0, 0, time.UTC)}},
		},
	}
	p, tr := newTestPoller(src)

	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	st := tr.Snapshot()
	if len(st.Current) != 2 {
		t.Fatalf("current=%+v, want alice and Carol", st.Current)
	}
	var carol *tracker.ViewerRecord
	for i := range st.Current {
		if st.Current[i].Username == "Carol" {
			carol = &st.Current[i]
		}
	}
	if carol == nil || carol.Method != tracker.MethodFollow {
		t.Fatalf("current=%+v, want Carol detected via follow", st.Current)
	}
}

// A follower still on the recent-follows page is not departed just because
// the chatters listing has not picked them up yet; once the page moves on
// without them, the normal snapshot diff applies.
func TestCycleRecentFollowerShieldedFromDeparture(t *testing.T) {
	follower := twitchapi.Follower{Login: "carol", Name: "Carol"}
	src := &stubSource{
		userID:    "b123",
		chatters:  [][]string{{"alice"}, {"alice"}, {"alice"}},
		followers: [][]twitchapi.Follower{{follower}, {follower}},
	}
	p, tr := newTestPoller(src)

	for i := 0; i < 2; i++ {
		if err := p.Cycle(t.Context()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	st := tr.Snapshot()
	if len(st.Current) != 2 || len(st.RecentlyLeft) != 0 {
		t.Fatalf("state=%+v, want Carol still watching", st.Stats)
	}

	// Third cycle: Carol has aged off the follows page and is not in chat.
	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("third cycle: %v", err)
	}
	st = tr.Snapshot()
	if len(st.Current) != 1 || st.Current[0].Username != "alice" {
		t.Fatalf("current=%+v, want only alice", st.Current)
	}
	if len(st.RecentlyLeft) != 1 || st.RecentlyLeft[0].Username != "Carol" {
		t.Fatalf("left=%+v, want Carol departed", st.RecentlyLeft)
	}
}

func TestCycleFollowersFetchFailureNonFatal(t *testing.T) {
	src := &stubSource{
		userID:       "b123",
		chatters:     [][]string{{"alice"}},
		followersErr: errors.New("helix /channels/followers failed: 401 Unauthorized"),
	}
	p, tr := newTestPoller(src)

	if err := p.Cycle(t.Context()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := tr.Snapshot(); len(got.Current) != 1 {
		t.Fatalf("current=%+v, want snapshot still applied", got.Current)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &stubSource{userID: "b123", chatters: [][]string{{"alice"}}}
	p, _ := newTestPoller(src)
	p.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not quiesce after cancel")
	}
}
