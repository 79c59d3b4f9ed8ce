// Package xapi is a minimal client for the X REST API: user lookup and
// mention reads over the app bearer token, posting over per-request
// OAuth 1.0a signing (posting needs user-context authorization that the
// read-only bearer token does not carry).
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID       string
	Username string
}

type Mention struct {
	ID             int64
	Text           string
	AuthorID       string
	AuthorUsername string
}

type Client struct {
	BaseURL string
	Bearer  string
	Creds   Credentials
	HTTP    *http.Client

	// Nonce and Now are injectable for signing tests.
	Nonce func() string
	Now   func() time.Time
}

func New(bearer string, creds Credentials) *Client {
	return &Client{
		BaseURL: "https://api.twitter.com",
		Bearer:  bearer,
		Creds:   creds,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type userByUsernameResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

// UserByUsername resolves a handle to its numeric account id.
func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, fmt.Errorf("missing username")
	}
	raw, err := c.getBearer(ctx, fmt.Sprintf("%s/2/users/by/username/%s", c.BaseURL, url.PathEscape(username)))
	if err != nil {
		return nil, err
	}
	var out userByUsernameResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, fmt.Errorf("x user lookup: empty id for %q", username)
	}
	return &User{ID: out.Data.ID, Username: out.Data.Username}, nil
}

type mentionsResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		AuthorID string `json:"author_id"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// Mentions fetches mentions of userID with ids strictly greater than
// sinceID, newest page bounded by pageSize. Items whose id is not numeric
// are dropped.
func (c *Client) Mentions(ctx context.Context, userID string, sinceID int64, pageSize int) ([]Mention, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(pageSize))
	q.Set("tweet.fields", "author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	raw, err := c.getBearer(ctx, fmt.Sprintf("%s/2/users/%s/mentions?%s", c.BaseURL, url.PathEscape(userID), q.Encode()))
	if err != nil {
		return nil, err
	}
	var out mentionsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(out.Includes.Users))
	for _, u := range out.Includes.Users {
		names[u.ID] = u.Username
	}

	mentions := make([]Mention, 0, len(out.Data))
	for _, d := range out.Data {
		id, err := strconv.ParseInt(d.ID, 10, 64)
		if err != nil {
			continue
		}
		mentions = append(mentions, Mention{
			ID:             id,
			Text:           d.Text,
			AuthorID:       d.AuthorID,
			AuthorUsername: names[d.AuthorID],
		})
	}
	return mentions, nil
}

// PostReply posts text as a signed reply in the thread of inReplyTo.
func (c *Client) PostReply(ctx context.Context, text string, inReplyTo int64) error {
	form := url.Values{}
	form.Set("status", text)
	form.Set("in_reply_to_status_id", strconv.FormatInt(inReplyTo, 10))
	form.Set("auto_populate_reply_metadata", "true")
	return c.postSigned(ctx, c.BaseURL+"/1.1/statuses/update.json", form)
}

// Tweet posts a standalone status (daily pulse).
func (c *Client) Tweet(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("status", text)
	return c.postSigned(ctx, c.BaseURL+"/1.1/statuses/update.json", form)
}

func (c *Client) getBearer(ctx context.Context, rawurl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Bearer)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("x http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func (c *Client) postSigned(ctx context.Context, rawurl string, form url.Values) error {
	nonce := uuid.NewString()
	if c.Nonce != nil {
		nonce = c.Nonce()
	}
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", Sign(http.MethodPost, rawurl, form, c.Creds, nonce, now.Unix()))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("x http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
