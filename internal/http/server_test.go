package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/services"
	"spendlog/internal/storage"
	"spendlog/internal/store/memory"
)

type stubParser struct {
	records []core.Record
	err     error
}

func (p *stubParser) Parse(ctx context.Context, prompt string) ([]core.Record, error) {
	return p.records, p.err
}

func newTestServer(t *testing.T, parser services.PromptParser) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	var pipeline *services.Pipeline
	if parser != nil {
		pipeline = services.NewPipeline(parser, store, nil)
	}
	s := NewServer(":0", store, pipeline)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, store
}

func doJSON(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func testRecord(title string, amount int64, day int) core.Record {
	return core.Record{
		ID:        core.NewID(),
		Icon:      "🍜",
		Title:     title,
		Amount:    amount,
		Category:  core.CategoryFood,
		Timestamp: time.Date(2025, 5, day, 12, 30, 0, 0, core.Zone()),
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)

	if rec := doJSON(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}
}

func TestCreateAndListRecords(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := `{"icon":"🍜","title":"beef noodles","amount":120,"category":"food","timestamp":"2025-05-20T12:30+08:00","note":"lunch"}`
	rec := doJSON(t, s, http.MethodPost, "/api/records", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created recordJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	if created.ID == "" {
		t.Error("created record has no id")
	}
	if created.Title != "beef noodles" || created.Amount != 120 {
		t.Errorf("created record = %+v", created)
	}

	listRec := doJSON(t, s, http.MethodGet, "/api/records", "")
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}
	var listed struct {
		Records []recordJSON `json:"records"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal list response: %v", err)
	}
	if len(listed.Records) != 1 || listed.Records[0].ID != created.ID {
		t.Errorf("listed records = %+v", listed.Records)
	}
}

func TestCreateRecordValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid JSON", `{`, http.StatusBadRequest},
		{"empty title", `{"icon":"x","title":"","amount":10,"category":"food"}`, http.StatusUnprocessableEntity},
		{"bad timestamp", `{"icon":"x","title":"t","amount":10,"category":"food","timestamp":"2025/05/20"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/records", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestUpdateRecord(t *testing.T) {
	s, store := newTestServer(t, nil)
	orig := testRecord("coffee", 60, 10)
	if _, err := store.Append(context.Background(), orig); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := `{"icon":"☕","title":"latte","amount":80,"category":"drink","timestamp":"2025-05-10T09:00+08:00"}`
	rec := doJSON(t, s, http.MethodPut, "/api/records/"+orig.ID, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	records, _ := store.ListAll(context.Background())
	if records[0].Title != "latte" || records[0].Amount != 80 {
		t.Errorf("stored record after update = %+v", records[0])
	}

	missing := doJSON(t, s, http.MethodPut, "/api/records/nope", body)
	if missing.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", missing.Code)
	}
}

func TestDeleteRecord(t *testing.T) {
	s, store := newTestServer(t, nil)
	orig := testRecord("coffee", 60, 10)
	if _, err := store.Append(context.Background(), orig); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(t, s, http.MethodDelete, "/api/records/"+orig.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if records, _ := store.ListAll(context.Background()); len(records) != 0 {
		t.Errorf("store still has %d records", len(records))
	}

	missing := doJSON(t, s, http.MethodDelete, "/api/records/"+orig.ID, "")
	if missing.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", missing.Code)
	}
}

func TestDeleteBatchAllOrNothing(t *testing.T) {
	s, store := newTestServer(t, nil)
	a := testRecord("a", 10, 1)
	b := testRecord("b", 20, 2)
	for _, r := range []core.Record{a, b} {
		if _, err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := doJSON(t, s, http.MethodPost, "/api/records/delete",
		`{"ids":["`+a.ID+`","unknown"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("batch with unknown id status = %d, want 404", rec.Code)
	}
	if records, _ := store.ListAll(context.Background()); len(records) != 2 {
		t.Errorf("store changed on failed batch, has %d records", len(records))
	}

	ok := doJSON(t, s, http.MethodPost, "/api/records/delete",
		`{"ids":["`+a.ID+`","`+b.ID+`"]}`)
	if ok.Code != http.StatusOK {
		t.Fatalf("batch status = %d", ok.Code)
	}
	if records, _ := store.ListAll(context.Background()); len(records) != 0 {
		t.Errorf("store has %d records after batch delete", len(records))
	}
}

func TestSummaryCategories(t *testing.T) {
	s, store := newTestServer(t, nil)
	records := []core.Record{
		testRecord("noodles", 100, 5),
		testRecord("rice", 50, 6),
		{ID: core.NewID(), Icon: "🧢", Title: "cap", Amount: 30, Category: core.CategoryShopping,
			Timestamp: time.Date(2025, 5, 7, 10, 0, 0, 0, core.Zone())},
	}
	for _, r := range records {
		if _, err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/api/summary/categories?year=2025&month=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var resp struct {
		Categories []struct {
			Category string `json:"category"`
			Total    int64  `json:"total"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(resp.Categories))
	}
	if resp.Categories[0].Category != core.CategoryFood || resp.Categories[0].Total != 150 {
		t.Errorf("first category = %+v, want food/150", resp.Categories[0])
	}
	if resp.Categories[1].Category != core.CategoryShopping || resp.Categories[1].Total != 30 {
		t.Errorf("second category = %+v, want shopping/30", resp.Categories[1])
	}
}

func TestSummaryCountsIncludesDaysInMonth(t *testing.T) {
	s, store := newTestServer(t, nil)
	if _, err := store.Append(context.Background(), testRecord("noodles", 100, 5)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/summary/counts?year=2025&month=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("counts status = %d", rec.Code)
	}
	var resp struct {
		Counts      map[string]int `json:"counts"`
		DaysInMonth int            `json:"daysInMonth"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.DaysInMonth != 28 {
		t.Errorf("daysInMonth = %d, want 28", resp.DaysInMonth)
	}
	if len(resp.Counts) != 0 {
		t.Errorf("counts for empty month = %v", resp.Counts)
	}
}

func TestSummaryCacheInvalidatedByWrite(t *testing.T) {
	s, _ := newTestServer(t, nil)

	first := doJSON(t, s, http.MethodGet, "/api/summary/categories?year=2025&month=5", "")
	if first.Code != http.StatusOK {
		t.Fatalf("summary status = %d", first.Code)
	}

	body := `{"icon":"🍜","title":"beef noodles","amount":120,"category":"food","timestamp":"2025-05-20T12:30+08:00"}`
	if rec := doJSON(t, s, http.MethodPost, "/api/records", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	second := doJSON(t, s, http.MethodGet, "/api/summary/categories?year=2025&month=5", "")
	var resp struct {
		Categories []struct {
			Category string `json:"category"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Categories) != 1 {
		t.Errorf("summary after write has %d categories, want 1", len(resp.Categories))
	}
}

func TestExportFormats(t *testing.T) {
	s, store := newTestServer(t, nil)
	if _, err := store.Append(context.Background(), testRecord("beef noodles", 120, 20)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	text := doJSON(t, s, http.MethodGet, "/api/export", "")
	if text.Code != http.StatusOK {
		t.Fatalf("text export status = %d", text.Code)
	}
	want := "🍜beef noodles｜food｜$120｜250520 1230"
	if text.Body.String() != want {
		t.Errorf("text export = %q, want %q", text.Body.String(), want)
	}
	if cd := text.Header().Get("Content-Disposition"); !strings.Contains(cd, ".txt") {
		t.Errorf("text Content-Disposition = %q", cd)
	}

	csv := doJSON(t, s, http.MethodGet, "/api/export?format=csv", "")
	if csv.Code != http.StatusOK {
		t.Fatalf("csv export status = %d", csv.Code)
	}
	if !strings.HasPrefix(csv.Body.String(), "icon,title,amount,category,timestamp,note") {
		t.Errorf("csv export starts with %q", strings.SplitN(csv.Body.String(), "\n", 2)[0])
	}

	bad := doJSON(t, s, http.MethodGet, "/api/export?format=xml", "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", bad.Code)
	}
}

func TestImportRoundTrip(t *testing.T) {
	exporter, seed := newTestServer(t, nil)
	if _, err := seed.Append(context.Background(), testRecord("beef noodles", 120, 20)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	csvBody := doJSON(t, exporter, http.MethodGet, "/api/export?format=csv", "").Body.String()

	s, store := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodPost, "/api/import", csvBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", rec.Code, rec.Body.String())
	}

	records, _ := store.ListAll(context.Background())
	if len(records) != 1 || records[0].Title != "beef noodles" {
		t.Errorf("imported records = %+v", records)
	}
}

func TestImportRejectsMalformedCSV(t *testing.T) {
	s, store := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/import", "not,a,valid,header\n")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("import status = %d, want 422", rec.Code)
	}
	if records, _ := store.ListAll(context.Background()); len(records) != 0 {
		t.Errorf("store changed on failed import")
	}
}

func TestPromptSubmit(t *testing.T) {
	parsed := []core.Record{testRecord("beef noodles", 120, 20)}
	s, store := newTestServer(t, &stubParser{records: parsed})

	empty := doJSON(t, s, http.MethodPost, "/api/prompts", `{"prompt":"  "}`)
	if empty.Code != http.StatusBadRequest {
		t.Errorf("empty prompt status = %d, want 400", empty.Code)
	}

	ok := doJSON(t, s, http.MethodPost, "/api/prompts", `{"prompt":"beef noodles 120"}`)
	if ok.Code != http.StatusOK && ok.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body = %s", ok.Code, ok.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		records, _ := store.ListAll(context.Background())
		if len(records) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("records not inserted, have %d", len(records))
		}
		time.Sleep(10 * time.Millisecond)
	}

	status := doJSON(t, s, http.MethodGet, "/api/pipeline", "")
	var snap services.Snapshot
	if err := json.Unmarshal(status.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.State != services.StateIdle || snap.LastCount != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPromptSubmitWithoutPipeline(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodPost, "/api/prompts", `{"prompt":"x"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// diagnosticStore augments the in-memory store with an archived payload
// list, mirroring what the SQLite backend exposes.
type diagnosticStore struct {
	*memory.Store
	rows []storage.DiagnosticRow
}

func (d *diagnosticStore) RecentDiagnostics(ctx context.Context, limit int) ([]storage.DiagnosticRow, error) {
	if limit > len(d.rows) {
		limit = len(d.rows)
	}
	return d.rows[:limit], nil
}

func TestDiagnosticsEndpoint(t *testing.T) {
	store := &diagnosticStore{
		Store: memory.New(),
		rows: []storage.DiagnosticRow{
			{ID: 2, Prompt: "beef noodles", Body: `{"oops":true}`, CreatedAt: time.Date(2025, 5, 21, 8, 0, 0, 0, time.UTC)},
			{ID: 1, Prompt: "bus ride", Body: "not json", CreatedAt: time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)},
		},
	}
	s := NewServer(":0", store, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	rec := doJSON(t, s, http.MethodGet, "/api/diagnostics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("diagnostics status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Diagnostics []diagnosticJSON `json:"diagnostics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Diagnostics) != 2 || resp.Diagnostics[0].ID != 2 {
		t.Errorf("diagnostics = %+v", resp.Diagnostics)
	}

	limited := doJSON(t, s, http.MethodGet, "/api/diagnostics?limit=1", "")
	if err := json.Unmarshal(limited.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal limited: %v", err)
	}
	if len(resp.Diagnostics) != 1 {
		t.Errorf("limited diagnostics = %+v", resp.Diagnostics)
	}

	bad := doJSON(t, s, http.MethodGet, "/api/diagnostics?limit=0", "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", bad.Code)
	}
}

func TestDiagnosticsUnavailableForMemoryBackend(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/api/diagnostics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/api/records?q=../../etc/passwd", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
