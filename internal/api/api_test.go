package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/accomplish-dev/accomplish-cli/internal/apiclient"
)

// recordingDoer captures the last request and answers with a canned JSON body.
type recordingDoer struct {
	last     apiclient.Request
	response string
	err      error
}

func (r *recordingDoer) Do(ctx context.Context, req apiclient.Request, out any) error {
	r.last = req
	if r.err != nil {
		return r.err
	}
	if out == nil || r.response == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.response), out)
}

func TestCheckTokenInfo(t *testing.T) {
	doer := &recordingDoer{response: `{"active":true,"scope":"worklog:read","client_id":"cli","exp":1924992000}`}
	a := NewClient(doer)

	info, err := a.CheckTokenInfo(context.Background(), "at-1")
	if err != nil {
		t.Fatalf("CheckTokenInfo: %v", err)
	}
	if !info.Active || info.Scope != "worklog:read" {
		t.Errorf("info = %+v", info)
	}
	if doer.last.Path != "auth/token_info" || doer.last.Method != "POST" {
		t.Errorf("request = %+v", doer.last)
	}
	body, ok := doer.last.Body.(map[string]string)
	if !ok || body["token"] != "at-1" {
		t.Errorf("body = %+v", doer.last.Body)
	}
}

func TestCheckTokenInfoInactive(t *testing.T) {
	doer := &recordingDoer{response: `{"active":false}`}
	a := NewClient(doer)

	if _, err := a.CheckTokenInfo(context.Background(), "at-1"); !errors.Is(err, apiclient.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestCreateEntry(t *testing.T) {
	doer := &recordingDoer{response: `{"id":"e-1","content":"shipped the thing","recorded_at":"2026-08-26T10:00:00Z"}`}
	a := NewClient(doer)

	entry, err := a.CreateEntry(context.Background(), CreateEntryRequest{
		Content: "shipped the thing",
		Tags:    []string{"release"},
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if entry.ID != "e-1" {
		t.Errorf("entry = %+v", entry)
	}

	req, ok := doer.last.Body.(CreateEntryRequest)
	if !ok {
		t.Fatalf("body = %T", doer.last.Body)
	}
	if req.RecordedAt.IsZero() {
		t.Error("RecordedAt was not defaulted")
	}
}

func TestCreateEntryRejectsEmptyContent(t *testing.T) {
	a := NewClient(&recordingDoer{})
	if _, err := a.CreateEntry(context.Background(), CreateEntryRequest{Content: "   "}); err == nil {
		t.Fatal("empty content accepted")
	}
}

func TestListEntriesQuery(t *testing.T) {
	doer := &recordingDoer{response: `{"entries":[{"id":"e-1","content":"x","recorded_at":"2026-08-26T10:00:00Z"}],"meta":{"end_cursor":"c-1"}}`}
	a := NewClient(doer)

	page, err := a.ListEntries(context.Background(), ListEntriesRequest{
		From:      "2026-08-01",
		To:        "2026-08-26",
		Tags:      []string{"release", "infra"},
		ProjectID: "p-1",
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(page.Entries) != 1 || page.Meta.EndCursor != "c-1" {
		t.Errorf("page = %+v", page)
	}

	q := doer.last.Query
	want := url.Values{
		"limit":      {"50"},
		"project_id": {"p-1"},
		"tags":       {"release,infra"},
		"from":       {"2026-08-01T00:00:00Z"},
		"to":         {"2026-08-26T23:59:59Z"},
	}
	for key, values := range want {
		if got := q.Get(key); got != values[0] {
			t.Errorf("query[%s] = %q, want %q", key, got, values[0])
		}
	}
}

func TestListEntriesInvalidDate(t *testing.T) {
	a := NewClient(&recordingDoer{})
	if _, err := a.ListEntries(context.Background(), ListEntriesRequest{From: "26-08-2026"}); err == nil {
		t.Fatal("invalid date accepted")
	}
}

func TestGenerateRecap(t *testing.T) {
	doer := &recordingDoer{response: `{"recap_id":"r-1","status":"processing","sse_url":"https://api.accomplish.dev/api/v1/worklog/recaps/sse?recap_id=r-1"}`}
	a := NewClient(doer)

	recap, err := a.GenerateRecap(context.Background(), GenerateRecapRequest{
		From: "2026-08-26",
		To:   "2026-08-26",
	})
	if err != nil {
		t.Fatalf("GenerateRecap: %v", err)
	}
	if recap.RecapID != "r-1" || recap.Status != "processing" {
		t.Errorf("recap = %+v", recap)
	}
	if doer.last.Method != "POST" || doer.last.Path != "api/v1/worklog/recaps" {
		t.Errorf("request = %+v", doer.last)
	}
}

func TestGenerateRecapMissingID(t *testing.T) {
	doer := &recordingDoer{response: `{"status":"processing"}`}
	a := NewClient(doer)
	if _, err := a.GenerateRecap(context.Background(), GenerateRecapRequest{}); err == nil {
		t.Fatal("response without recap_id accepted")
	}
}

func TestRecapRequestBuilders(t *testing.T) {
	sr := RecapStreamRequest("r-1")
	if sr.Path != "api/v1/worklog/recaps/sse" || sr.Query.Get("recap_id") != "r-1" || !sr.RequiresAuth {
		t.Errorf("stream request = %+v", sr)
	}
	pr := RecapStatusRequest("r-1")
	if pr.Path != "api/v1/worklog/recaps/r-1" || !pr.RequiresAuth {
		t.Errorf("status request = %+v", pr)
	}
}

func TestBoundOfDay(t *testing.T) {
	tests := []struct {
		date string
		end  bool
		want string
	}{
		{"2026-08-26", false, "2026-08-26T00:00:00Z"},
		{"2026-08-26", true, "2026-08-26T23:59:59Z"},
		{"2026-02-28", true, "2026-02-28T23:59:59Z"},
	}
	for _, tt := range tests {
		got, err := boundOfDay(tt.date, tt.end)
		if err != nil {
			t.Fatalf("boundOfDay(%q): %v", tt.date, err)
		}
		if got != tt.want {
			t.Errorf("boundOfDay(%q, %v) = %q, want %q", tt.date, tt.end, got, tt.want)
		}
	}

	if _, err := boundOfDay("not-a-date", false); err == nil {
		t.Error("invalid date accepted")
	}
}

func TestEntryDecoding(t *testing.T) {
	raw := `{"id":"e-1","content":"x","recorded_at":"2026-08-26T10:00:00Z","tags":["a"],"project":{"id":"p-1","name":"CLI","identifier":"cli"}}`
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Project == nil || entry.Project.Identifier != "cli" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.RecordedAt.Equal(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("RecordedAt = %v", entry.RecordedAt)
	}
}
