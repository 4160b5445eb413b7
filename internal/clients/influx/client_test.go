package influx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foliosync/foliosync/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(
		WithBaseURL(server.URL),
		WithRateLimit(1000),
		WithRetry(3, time.Millisecond),
	)
}

func TestPing(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/ping" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("X-Influxdb-Version", "1.8.10")
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPing_RetriesTransientFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPing_AuthRejectionClassified(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"authorization failed"}`)
	}))

	err := client.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindAuth {
		t.Errorf("expected auth kind, got %q", kind)
	}
	if calls != 1 {
		t.Errorf("auth rejection should not be retried, got %d calls", calls)
	}
}

func TestPing_Unreachable(t *testing.T) {
	client := NewClient(
		WithBaseURL("http://127.0.0.1:1"),
		WithRateLimit(1000),
		WithRetry(2, time.Millisecond),
		WithTimeout(100*time.Millisecond),
	)

	err := client.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindConnectivity {
		t.Errorf("expected connectivity kind, got %q", kind)
	}
}

func showDatabasesResponse(names ...string) string {
	values := make([]string, 0, len(names))
	for _, n := range names {
		values = append(values, fmt.Sprintf(`["%s"]`, n))
	}
	return fmt.Sprintf(`{"results":[{"statement_id":0,"series":[{"name":"databases","columns":["name"],"values":[%s]}]}]}`,
		strings.Join(values, ","))
}

func TestEnsureDatabase_AlreadyExists(t *testing.T) {
	var statements []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		statements = append(statements, r.Form.Get("q"))
		fmt.Fprint(w, showDatabasesResponse("_internal", "portfolio"))
	}))

	if err := client.EnsureDatabase(context.Background(), "portfolio"); err != nil {
		t.Fatalf("EnsureDatabase failed: %v", err)
	}
	if len(statements) != 1 || statements[0] != "SHOW DATABASES" {
		t.Errorf("expected a single SHOW DATABASES, got %v", statements)
	}
}

func TestEnsureDatabase_CreatesMissing(t *testing.T) {
	var statements []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		statements = append(statements, r.Form.Get("q"))
		if strings.HasPrefix(r.Form.Get("q"), "CREATE") {
			fmt.Fprint(w, `{"results":[{"statement_id":0}]}`)
			return
		}
		fmt.Fprint(w, showDatabasesResponse("_internal"))
	}))

	if err := client.EnsureDatabase(context.Background(), "portfolio"); err != nil {
		t.Fatalf("EnsureDatabase failed: %v", err)
	}
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %v", statements)
	}
	if statements[1] != `CREATE DATABASE "portfolio"` {
		t.Errorf("unexpected create statement: %q", statements[1])
	}
}

func TestEnsureDatabase_AuthRejectionClassified(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"user not authorized"}`)
	}))

	err := client.EnsureDatabase(context.Background(), "portfolio")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindAuth {
		t.Errorf("expected auth kind, got %q", kind)
	}
}

func TestEnsureDatabase_StatementErrorClassifiedAsProvisioning(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"statement_id":0,"error":"too many databases"}]}`)
	}))

	err := client.EnsureDatabase(context.Background(), "portfolio")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindProvisioning {
		t.Errorf("expected provisioning kind, got %q", kind)
	}
}

func TestEnsureDatabase_EmptyName(t *testing.T) {
	err := NewClient().EnsureDatabase(context.Background(), "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindProvisioning {
		t.Errorf("expected provisioning kind, got %q", kind)
	}
}

func testPoints() []models.Point {
	return []models.Point{
		{
			Measurement: "positions",
			Tags:        map[string]string{"symbol": "AAPL"},
			Fields:      map[string]interface{}{"value": 1505.0},
		},
		{
			Measurement: "portfolio",
			Fields: map[string]interface{}{
				"total_value":    15505.0,
				"position_count": 2,
			},
		},
	}
}

func TestWritePoints(t *testing.T) {
	var body string
	var query string
	var gotAuth bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/write" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		query = r.URL.RawQuery
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		body = string(raw)
		_, _, gotAuth = r.BasicAuth()
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.WritePoints(context.Background(), "portfolio", testPoints()); err != nil {
		t.Fatalf("WritePoints failed: %v", err)
	}

	if !strings.Contains(query, "db=portfolio") || !strings.Contains(query, "precision=ns") {
		t.Errorf("unexpected query string: %q", query)
	}
	lines := strings.Split(body, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), body)
	}
	if lines[0] != "positions,symbol=AAPL value=1505" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "portfolio position_count=2i,total_value=15505" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
	if gotAuth {
		t.Error("expected no basic auth header without credentials")
	}
}

func TestWritePoints_BasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithCredentials("folio", "secret"),
		WithRateLimit(1000),
	)

	if err := client.WritePoints(context.Background(), "portfolio", testPoints()); err != nil {
		t.Fatalf("WritePoints failed: %v", err)
	}
	if !ok || user != "folio" || pass != "secret" {
		t.Errorf("expected basic auth folio/secret, got %q/%q (ok=%v)", user, pass, ok)
	}
}

func TestWritePoints_RetriesTransientFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.WritePoints(context.Background(), "portfolio", testPoints()); err != nil {
		t.Fatalf("WritePoints failed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestWritePoints_RetriesExhausted(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := client.WritePoints(context.Background(), "portfolio", testPoints())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindWriteFailed {
		t.Errorf("expected write_failed kind, got %q", kind)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWritePoints_MissingDatabaseClassified(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"database not found: \"portfolio\""}`)
	}))

	err := client.WritePoints(context.Background(), "portfolio", testPoints())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindProvisioning {
		t.Errorf("expected provisioning kind, got %q", kind)
	}
}

func TestWritePoints_BadRequestNotRetried(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"unable to parse points"}`)
	}))

	err := client.WritePoints(context.Background(), "portfolio", testPoints())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindWriteFailed {
		t.Errorf("expected write_failed kind, got %q", kind)
	}
	if calls != 1 {
		t.Errorf("bad request should not be retried, got %d calls", calls)
	}
}

func TestWritePoints_EmptyBatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))

	if err := client.WritePoints(context.Background(), "portfolio", nil); err != nil {
		t.Fatalf("WritePoints failed: %v", err)
	}
}

func TestQueryDailyMeans(t *testing.T) {
	var stmt, db string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		stmt = r.Form.Get("q")
		db = r.Form.Get("db")
		fmt.Fprint(w, `{"results":[{"statement_id":0,"series":[{"name":"portfolio","columns":["time","mean"],"values":[["2026-03-12T00:00:00Z",15000.5],["2026-03-13T00:00:00Z",null],["2026-03-14T00:00:00Z",15505.25]]}]}]}`)
	}))

	samples, err := client.QueryDailyMeans(context.Background(), "portfolio", "portfolio", "total_value", 30)
	if err != nil {
		t.Fatalf("QueryDailyMeans failed: %v", err)
	}

	expected := `SELECT mean("total_value") FROM "portfolio" WHERE time > now() - 30d GROUP BY time(1d)`
	if stmt != expected {
		t.Errorf("expected %q, got %q", expected, stmt)
	}
	if db != "portfolio" {
		t.Errorf("expected db=portfolio, got %q", db)
	}

	if len(samples) != 2 {
		t.Fatalf("expected 2 samples after skipping the empty bucket, got %d", len(samples))
	}
	if samples[0].Value != 15000.5 {
		t.Errorf("expected first value 15000.5, got %v", samples[0].Value)
	}
	if samples[1].Value != 15505.25 {
		t.Errorf("expected second value 15505.25, got %v", samples[1].Value)
	}
	if !samples[0].Time.Equal(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected first sample time: %v", samples[0].Time)
	}
}

func TestQueryDailyMeans_NoSeries(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"statement_id":0}]}`)
	}))

	samples, err := client.QueryDailyMeans(context.Background(), "portfolio", "portfolio", "total_value", 7)
	if err != nil {
		t.Fatalf("QueryDailyMeans failed: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples, got %d", len(samples))
	}
}

func TestQueryDailyMeans_MissingDatabaseClassified(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"statement_id":0,"error":"database not found: portfolio"}]}`)
	}))

	_, err := client.QueryDailyMeans(context.Background(), "portfolio", "portfolio", "total_value", 30)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindProvisioning {
		t.Errorf("expected provisioning kind, got %q", kind)
	}
}

func TestQueryDailyMeans_Unreachable(t *testing.T) {
	client := NewClient(
		WithBaseURL("http://127.0.0.1:1"),
		WithRateLimit(1000),
		WithRetry(2, time.Millisecond),
		WithTimeout(100*time.Millisecond),
	)

	_, err := client.QueryDailyMeans(context.Background(), "portfolio", "portfolio", "total_value", 30)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if kind := models.KindOf(err); kind != models.ErrorKindConnectivity {
		t.Errorf("expected connectivity kind, got %q", kind)
	}
}
