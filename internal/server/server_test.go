package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/legallex/djenwatch/internal/model"
	"github.com/legallex/djenwatch/internal/results"
	"github.com/legallex/djenwatch/internal/sched"
)

type stubReader struct {
	store map[string]*model.DailyResult
	err   error
}

func (s stubReader) Read(date model.Date) (*model.DailyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	result, ok := s.store[date.String()]
	if !ok {
		return nil, results.ErrNotFound
	}
	return result, nil
}

func (s stubReader) ListDates() ([]model.Date, error) {
	if s.err != nil {
		return nil, s.err
	}
	var dates []model.Date
	for raw := range s.store {
		d, _ := model.ParseDate(raw)
		dates = append(dates, d)
	}
	return dates, nil
}

type stubTriggerer struct {
	record *model.ExecutionRecord
	err    error
	calls  int
}

func (s *stubTriggerer) TriggerNow(_ context.Context, from, to model.Date) (*model.ExecutionRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.record != nil {
		return s.record, nil
	}
	return &model.ExecutionRecord{Date: to, Outcome: model.OutcomeSuccess}, nil
}

func newTestServer(reader ResultReader) *httptest.Server {
	return httptest.NewServer(New(reader, nil, log.New(io.Discard)).Router())
}

func newTriggerServer(reader ResultReader, tr Triggerer) *httptest.Server {
	return httptest.NewServer(New(reader, tr, log.New(io.Discard)).Router())
}

func TestListDates(t *testing.T) {
	date := model.NewDate(2026, time.August, 27)
	srv := newTestServer(stubReader{store: map[string]*model.DailyResult{
		date.String(): {Date: date},
	}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Dates []string `json:"dates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Dates) != 1 || body.Dates[0] != "2026-08-27" {
		t.Errorf("dates = %v", body.Dates)
	}
}

func TestGetResult(t *testing.T) {
	date := model.NewDate(2026, time.August, 27)
	srv := newTestServer(stubReader{store: map[string]*model.DailyResult{
		date.String(): {
			Date: date,
			Execution: model.ExecutionRecord{
				Date:    date,
				Matched: 1,
				Outcome: model.OutcomeSuccess,
			},
			Publications: []model.Publication{{ID: 1, Hash: "h1", AvailableOn: date}},
		},
	}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results/2026-08-27")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var result model.DailyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Publications) != 1 || result.Publications[0].Hash != "h1" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGetResultNotFound(t *testing.T) {
	srv := newTestServer(stubReader{store: map[string]*model.DailyResult{}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results/2026-08-27")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	// "No run yet for this date" is 404, distinct from an empty result set.
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetResultBadDate(t *testing.T) {
	srv := newTestServer(stubReader{store: map[string]*model.DailyResult{}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results/not-a-date")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(stubReader{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestTriggerRunsRequestedDate(t *testing.T) {
	tr := &stubTriggerer{}
	srv := newTriggerServer(stubReader{store: map[string]*model.DailyResult{}}, tr)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/trigger?date=2026-08-27", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if tr.calls != 1 {
		t.Fatalf("trigger calls = %d, want 1", tr.calls)
	}

	var record model.ExecutionRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatal(err)
	}
	if record.Date.String() != "2026-08-27" {
		t.Errorf("record date = %s", record.Date)
	}
}

func TestTriggerRejectedWhileRunning(t *testing.T) {
	tr := &stubTriggerer{err: sched.ErrRunInProgress}
	srv := newTriggerServer(stubReader{store: map[string]*model.DailyResult{}}, tr)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/trigger?date=2026-08-27", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestTriggerBadDate(t *testing.T) {
	tr := &stubTriggerer{}
	srv := newTriggerServer(stubReader{store: map[string]*model.DailyResult{}}, tr)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/trigger?date=nope", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if tr.calls != 0 {
		t.Fatalf("trigger calls = %d, want 0", tr.calls)
	}
}

func TestTriggerNotMountedWithoutScheduler(t *testing.T) {
	srv := newTestServer(stubReader{store: map[string]*model.DailyResult{}})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/trigger", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 or 405", resp.StatusCode)
	}
}
