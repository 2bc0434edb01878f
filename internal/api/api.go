// Package api provides typed wrappers over the Accomplish HTTP endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/accomplish-dev/accomplish-cli/internal/apiclient"
)

// Doer executes API requests. Satisfied by *apiclient.Client.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

// Client wraps a Doer with the endpoint shapes of the Accomplish API.
type Client struct {
	c Doer
}

func NewClient(c Doer) *Client {
	return &Client{c: c}
}

// TokenInfo describes the server's view of the active credential.
type TokenInfo struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope"`
	ClientID string `json:"client_id"`
	Username string `json:"username,omitempty"`
	Exp      int64  `json:"exp"`
}

// CheckTokenInfo introspects the given access token. An inactive token is
// reported as ErrUnauthenticated so callers route it to re-login guidance.
func (a *Client) CheckTokenInfo(ctx context.Context, token string) (*TokenInfo, error) {
	var info TokenInfo
	err := a.c.Do(ctx, apiclient.Request{
		Method:       http.MethodPost,
		Path:         "auth/token_info",
		Body:         map[string]string{"token": token},
		RequiresAuth: true,
	}, &info)
	if err != nil {
		return nil, err
	}
	if !info.Active {
		return nil, fmt.Errorf("%w: token is inactive", apiclient.ErrUnauthenticated)
	}
	return &info, nil
}

// Entry is one worklog entry.
type Entry struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	RecordedAt time.Time `json:"recorded_at"`
	Tags       []string  `json:"tags,omitempty"`
	Project    *Project  `json:"project,omitempty"`
}

// Project identifies the project an entry belongs to.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// CreateEntryRequest is the input for one new worklog entry.
type CreateEntryRequest struct {
	Content    string    `json:"content"`
	RecordedAt time.Time `json:"recorded_at"`
	Tags       []string  `json:"tags,omitempty"`
	ProjectID  string    `json:"project_id,omitempty"`
}

// CreateEntry records a new worklog entry and returns it as stored.
func (a *Client) CreateEntry(ctx context.Context, req CreateEntryRequest) (*Entry, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("entry content cannot be empty")
	}
	if req.RecordedAt.IsZero() {
		req.RecordedAt = time.Now().UTC()
	}

	var entry Entry
	err := a.c.Do(ctx, apiclient.Request{
		Method:       http.MethodPost,
		Path:         "api/v1/worklog/entries",
		Body:         req,
		RequiresAuth: true,
	}, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListEntriesRequest filters a worklog listing. From and To are calendar
// dates (YYYY-MM-DD) expanded to full-day bounds.
type ListEntriesRequest struct {
	From          string
	To            string
	Tags          []string
	ProjectID     string
	Limit         int
	StartingAfter string
}

// EntryPage is one page of worklog entries.
type EntryPage struct {
	Entries []Entry `json:"entries"`
	Meta    struct {
		EndCursor string `json:"end_cursor,omitempty"`
	} `json:"meta"`
}

// ListEntries fetches a page of worklog entries matching the filters.
func (a *Client) ListEntries(ctx context.Context, req ListEntriesRequest) (*EntryPage, error) {
	query := url.Values{}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	query.Set("limit", strconv.Itoa(limit))
	if req.ProjectID != "" {
		query.Set("project_id", req.ProjectID)
	}
	if len(req.Tags) > 0 {
		query.Set("tags", strings.Join(req.Tags, ","))
	}
	if err := setDateWindow(query, req.From, req.To); err != nil {
		return nil, err
	}
	if req.StartingAfter != "" {
		query.Set("starting_after", req.StartingAfter)
	}

	var page EntryPage
	err := a.c.Do(ctx, apiclient.Request{
		Method:       http.MethodGet,
		Path:         "api/v1/worklog/entries",
		Query:        query,
		RequiresAuth: true,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GenerateRecapRequest filters the entries a recap summarizes.
type GenerateRecapRequest struct {
	From       string
	To         string
	ProjectIDs []string
	Tags       []string
}

// Recap identifies a triggered recap operation and how to observe it.
type Recap struct {
	RecapID string `json:"recap_id"`
	Status  string `json:"status"`
	SSEURL  string `json:"sse_url,omitempty"`
	PollURL string `json:"poll_url,omitempty"`
}

// GenerateRecap triggers recap generation. The returned Recap carries the
// operation id for a streaming session, or status "completed" when the
// server answered from cache.
func (a *Client) GenerateRecap(ctx context.Context, req GenerateRecapRequest) (*Recap, error) {
	query := url.Values{}
	if err := setDateWindow(query, req.From, req.To); err != nil {
		return nil, err
	}
	if len(req.ProjectIDs) > 0 {
		query.Set("project_ids", strings.Join(req.ProjectIDs, ","))
	}
	if len(req.Tags) > 0 {
		query.Set("tags", strings.Join(req.Tags, " "))
	}

	var recap Recap
	err := a.c.Do(ctx, apiclient.Request{
		Method:       http.MethodPost,
		Path:         "api/v1/worklog/recaps",
		Query:        query,
		Body:         map[string]any{},
		RequiresAuth: true,
	}, &recap)
	if err != nil {
		return nil, err
	}
	if recap.RecapID == "" {
		return nil, fmt.Errorf("recap response missing recap_id")
	}
	return &recap, nil
}

// RecapStatus is the polled state of a recap operation.
type RecapStatus struct {
	Status  string `json:"status"`
	Content string `json:"content,omitempty"`
}

// GetRecapStatus fetches the current state and, once completed, the content
// of a recap.
func (a *Client) GetRecapStatus(ctx context.Context, recapID string) (*RecapStatus, error) {
	var status RecapStatus
	err := a.c.Do(ctx, apiclient.Request{
		Method:       http.MethodGet,
		Path:         "api/v1/worklog/recaps/" + recapID,
		RequiresAuth: true,
	}, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// RecapStreamRequest builds the push-stream request for a recap operation.
func RecapStreamRequest(recapID string) apiclient.Request {
	return apiclient.Request{
		Method:       http.MethodGet,
		Path:         "api/v1/worklog/recaps/sse",
		Query:        url.Values{"recap_id": {recapID}},
		RequiresAuth: true,
	}
}

// RecapStatusRequest builds the status-poll request for a recap operation.
func RecapStatusRequest(recapID string) apiclient.Request {
	return apiclient.Request{
		Method:       http.MethodGet,
		Path:         "api/v1/worklog/recaps/" + recapID,
		RequiresAuth: true,
	}
}

// setDateWindow expands YYYY-MM-DD bounds to RFC 3339 instants: the start of
// day for from, the end of day for to.
func setDateWindow(query url.Values, from, to string) error {
	if from != "" {
		t, err := boundOfDay(from, false)
		if err != nil {
			return err
		}
		query.Set("from", t)
	}
	if to != "" {
		t, err := boundOfDay(to, true)
		if err != nil {
			return err
		}
		query.Set("to", t)
	}
	return nil
}

func boundOfDay(date string, end bool) (string, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	if end {
		day = day.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	}
	return day.UTC().Format("2006-01-02T15:04:05Z"), nil
}
