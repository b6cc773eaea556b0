// Package twitchapi contains minimal helpers to interact with Twitch Helix
// APIs for user id resolution, stream status, and the chatters listing, using
// an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// helixBaseURL is var so tests can point the client at an httptest server.
var helixBaseURL = "https://api.twitch.tv/helix"

// HelixClient provides the Helix calls the presence tracker needs.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	BaseURL        string // override for tests; defaults to the Twitch API
	HTTPClient     *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return helixBaseURL
}

func (hc *HelixClient) get(ctx context.Context, path string, query map[string][]string, out any) error {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+path, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("helix %s failed: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/users", map[string][]string{"login": {login}}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// StreamMeta describes a live stream.
type StreamMeta struct {
	ID          string
	Title       string
	GameName    string
	ViewerCount int
	StartedAt   time.Time
}

// GetStreams returns live stream info for a login; empty slice means offline.
func (hc *HelixClient) GetStreams(ctx context.Context, login string) ([]StreamMeta, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID          string    `json:"id"`
			Title       string    `json:"title"`
			GameName    string    `json:"game_name"`
			ViewerCount int       `json:"viewer_count"`
			StartedAt   time.Time `json:"started_at"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/streams", map[string][]string{"user_login": {login}}, &body); err != nil {
		return nil, err
	}
	out := make([]StreamMeta, 0, len(body.Data))
	for _, s := range body.Data {
		out = append(out, StreamMeta{ID: s.ID, Title: s.Title, GameName: s.GameName, ViewerCount: s.ViewerCount, StartedAt: s.StartedAt})
	}
	return out, nil
}

// Follower is one entry from the channel followers listing.
type Follower struct {
	Login      string
	Name       string
	FollowedAt time.Time
}

// GetRecentFollowers returns the most recent page of channel followers,
// newest first. Requires the moderator:read:followers scope; callers should
// treat errors here as a missing grant rather than a fatal condition.
func (hc *HelixClient) GetRecentFollowers(ctx context.Context, broadcasterID string) ([]Follower, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcasterID empty")
	}
	var body struct {
		Data []struct {
			UserLogin  string    `json:"user_login"`
			UserName   string    `json:"user_name"`
			FollowedAt time.Time `json:"followed_at"`
		} `json:"data"`
	}
	query := map[string][]string{
		"broadcaster_id": {broadcasterID},
		"first":          {"10"},
	}
	if err := hc.get(ctx, "/channels/followers", query, &body); err != nil {
		return nil, err
	}
	out := make([]Follower, 0, len(body.Data))
	for _, f := range body.Data {
		name := f.UserName
		if name == "" {
			name = f.UserLogin
		}
		out = append(out, Follower{Login: f.UserLogin, Name: name, FollowedAt: f.FollowedAt})
	}
	return out, nil
}

// GetChatters lists the logins currently connected to the broadcaster's chat,
// walking pagination cursors until exhausted. Requires the moderator:read:chatters
// scope on the app token's grant; a 403 here usually means the moderator id
// is not actually a moderator of the channel.
func (hc *HelixClient) GetChatters(ctx context.Context, broadcasterID, moderatorID string) ([]string, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcasterID empty")
	}
	if moderatorID == "" {
		moderatorID = broadcasterID
	}
	var chatters []string
	cursor := ""
	for {
		query := map[string][]string{
			"broadcaster_id": {broadcasterID},
			"moderator_id":   {moderatorID},
			"first":          {"1000"},
		}
		if cursor != "" {
			query["after"] = []string{cursor}
		}
		var body struct {
			Data []struct {
				UserLogin string `json:"user_login"`
				UserName  string `json:"user_name"`
			} `json:"data"`
			Pagination struct {
				Cursor string `json:"cursor"`
			} `json:"pagination"`
		}
		if err := hc.get(ctx, "/chat/chatters", query, &body); err != nil {
			return nil, err
		}
		for _, c := range body.Data {
			name := c.UserName
			if name == "" {
				name = c.UserLogin
			}
			chatters = append(chatters, name)
		}
		cursor = body.Pagination.Cursor
		if cursor == "" {
			break
		}
	}
	return chatters, nil
}
