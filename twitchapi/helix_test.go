package twitchapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newHelixClient wires a HelixClient to a fake Helix API and a fake token
// endpoint so no real network is touched.
func newHelixClient(t *testing.T, handler http.HandlerFunc) (*HelixClient, func()) {
	t.Helper()
	api := httptest.NewServer(handler)
	tokenSrv := newTokenServer(t, "test-token", nil)
	hc := &HelixClient{
		AppTokenSource: &TokenSource{ClientID: "test-client-id", ClientSecret: "sekrit", TokenURL: tokenSrv.URL},
		ClientID:       "test-client-id",
		BaseURL:        api.URL,
	}
	return hc, func() { api.Close(); tokenSrv.Close() }
}

func TestHelixClientGetUserID(t *testing.T) {
	tests := []struct {
		response    any
		name        string
		login       string
		wantUserID  string
		errContains string
		statusCode  int
		wantErr     bool
	}{
		{
			name:  "successful user lookup",
			login: "testuser",
			response: map[string]any{
				"data": []map[string]string{{"id": "12345", "login": "testuser"}},
			},
			statusCode: http.StatusOK,
			wantUserID: "12345",
		},
		{
			name:        "user not found",
			login:       "nonexistent",
			response:    map[string]any{"data": []map[string]string{}},
			statusCode:  http.StatusOK,
			wantErr:     true,
			errContains: "user not found",
		},
		{
			name:        "empty login",
			login:       "",
			wantErr:     true,
			errContains: "login empty",
		},
		{
			name:        "upstream error status",
			login:       "testuser",
			response:    map[string]any{"error": "Unauthorized"},
			statusCode:  http.StatusUnauthorized,
			wantErr:     true,
			errContains: "helix /users failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc, done := newHelixClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Client-Id") != "test-client-id" {
					t.Errorf("missing or wrong Client-Id header")
				}
				if r.Header.Get("Authorization") != "Bearer test-token" {
					t.Errorf("missing or wrong Authorization header")
				}
				if tt.login != "" && r.URL.Query().Get("login") != tt.login {
					t.Errorf("login query param = %s, want %s", r.URL.Query().Get("login"), tt.login)
				}
				w.WriteHeader(tt.statusCode)
				if tt.response != nil {
					_ = json.NewEncoder(w).Encode(tt.response)
				}
			})
			defer done()

			got, err := hc.GetUserID(t.Context(), tt.login)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("error = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetUserID: %v", err)
			}
			if got != tt.wantUserID {
				t.Fatalf("user id = %s, want %s", got, tt.wantUserID)
			}
		})
	}
}

func TestHelixClientGetStreams(t *testing.T) {
	started := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	hc, done := newHelixClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_login"); got != "somechannel" {
			t.Errorf("user_login = %s, want somechannel", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"id":           "1",
				"title":        "speedrun",
				"game_name":    "Tetris",
				"viewer_count": 42,
				"started_at":   started.Format(time.RFC3339),
			}},
		})
	})
	defer done()

	streams, err := hc.GetStreams(t.Context(), "somechannel")
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if len(streams) != 1 {
		t.Fatalf("streams=%d, want 1", len(streams))
	}
	s := streams[0]
	if s.Title != "speedrun" || s.ViewerCount != 42 || !s.StartedAt.Equal(started) {
		t.Fatalf("stream = %+v, want decoded fields", s)
	}
}

func TestHelixClientGetStreamsOffline(t *testing.T) {
	hc, done := newHelixClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})
	defer done()

	streams, err := hc.GetStreams(t.Context(), "somechannel")
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if len(streams) != 0 {
		t.Fatalf("streams=%v, want empty for offline channel", streams)
	}
}

func TestHelixClientGetChattersPaginates(t *testing.T) {
	pages := map[string]map[string]any{
		"": {
			"data": []map[string]string{
				{"user_login": "alice", "user_name": "Alice"},
				{"user_login": "bob", "user_name": "Bob"},
			},
			"pagination": map[string]string{"cursor": "page2"},
		},
		"page2": {
			"data": []map[string]string{
				{"user_login": "carol", "user_name": ""},
			},
			"pagination": map[string]string{},
		},
	}
	hc, done := newHelixClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("broadcaster_id"); got != "b123" {
			t.Errorf("broadcaster_id = %s, want b123", got)
		}
		if got := r.URL.Query().Get("moderator_id"); got != "b123" {
			t.Errorf("moderator_id = %s, want broadcaster fallback b123", got)
		}
		page, ok := pages[r.URL.Query().Get("after")]
		if !ok {
			t.Fatalf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	defer done()

	chatters, err := hc.GetChatters(t.Context(), "b123", "")
	if err != nil {
		t.Fatalf("GetChatters: %v", err)
	}
	want := []string{"Alice", "Bob", "carol"}
	if len(chatters) != len(want) {
		t.Fatalf("chatters=%v, want %v", chatters, want)
	}
	for i := range want {
		if chatters[i] != want[i] {
			t.Fatalf("chatters=%v, want %v", chatters, want)
		}
	}
}

func TestHelixClientGetRecentFollowers(t *testing.T) {
	followedAt := time.Date(2025, 6, 1, 19, 58, 0, 0, time.UTC)
	hc, done := newHelixClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("broadcaster_id"); got != "b123" {
			t.Errorf("broadcaster_id = %s, want b123", got)
		}
		if got := r.URL.Query().Get("first"); got != "10" {
			t.Errorf("first = %s, want 10", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"user_login": "carol", "user_name": "Carol", "followed_at": followedAt.Format(time.RFC3339)},
				{"user_login": "dave", "user_name": "", "followed_at": followedAt.Format(time.RFC3339)},
			},
		})
	})
	defer done()

	followers, err := hc.GetRecentFollowers(t.Context(), "b123")
	if err != nil {
		t.Fatalf("GetRecentFollowers: %v", err)
	}
	if len(followers) != 2 {
		t.Fatalf("followers=%v, want 2", followers)
	}
	if followers[0].Name != "Carol" || !followers[0].FollowedAt.Equal(followedAt) {
		t.Fatalf("follower = %+v, want Carol with followed_at decoded", followers[0])
	}
	// Name falls back to the login when Helix omits user_name.
	if followers[1].Name != "dave" {
		t.Fatalf("follower = %+v, want login fallback", followers[1])
	}
}

func TestHelixClientGetRecentFollowersUnauthorized(t *testing.T) {
	hc, done := newHelixClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
	})
	defer done()

	if _, err := hc.GetRecentFollowers(t.Context(), "b123"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestHelixClientGetChattersForbidden(t *testing.T) {
	hc, done := newHelixClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Forbidden"}`, http.StatusForbidden)
	})
	defer done()

	if _, err := hc.GetChatters(t.Context(), "b123", "m456"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
