package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"roomly/internal/reservations/availability"
	"roomly/internal/reservations/events"
	"roomly/internal/reservations/handler"
	"roomly/internal/reservations/repository"
	"roomly/internal/reservations/service"
	"roomly/internal/reservations/validator"
	"roomly/pkg/app"
	"roomly/pkg/client"
	"roomly/pkg/config"
	"roomly/pkg/logger"
	"sync"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *client.ReservationClient {
	t.Helper()

	cfg := &config.Config{
		Port:              "0",
		Log:               logger.Discard(),
		Client:            client.NewClient(),
		RateLimitRequests: 10000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		WriteTimeout:      time.Second,
		LockTimeout:       2 * time.Second,
		DefaultPageSize:   10,
		MaxPageSize:       100,
	}

	repo := repository.NewMemoryReservationRepository(cfg.LockTimeout)
	v := validator.NewReservationValidator(cfg.Log)
	svc := service.NewReservationService(repo, v, events.NewNoopPublisher(), cfg)
	avail := availability.NewService(repo, v, cfg)

	application := app.NewApplication()
	application.SetApp(cfg,
		handler.NewHealthHandler(repo, cfg.Log),
		handler.NewReservationHandler(svc, avail, cfg),
	)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)

	c := client.NewReservationClient(server.URL)
	if err := c.HTTP().WaitForHealthy(5 * time.Second); err != nil {
		t.Fatal(err)
	}
	return c
}

func reservationBody(roomID int64, start, end string) map[string]any {
	return map[string]any{
		"user_id":    7,
		"room_id":    roomID,
		"start_date": start,
		"end_date":   end,
	}
}

func mustCreate(t *testing.T, c *client.ReservationClient, roomID int64, start, end string) int64 {
	t.Helper()
	resp, err := c.Create(reservationBody(roomID, start, end))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create() status:\n%s", resp.ToString())
	}
	r, err := c.DecodeReservation(resp)
	if err != nil {
		t.Fatal(err)
	}
	return r.ID
}

func TestE2E_ReservationLifecycle(t *testing.T) {
	c := newTestServer(t)

	first := mustCreate(t, c, 1, "2024-01-10", "2024-01-15")
	second := mustCreate(t, c, 1, "2024-01-12", "2024-01-20")
	adjacent := mustCreate(t, c, 1, "2024-01-15", "2024-01-20")

	resp, err := c.Confirm(first)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("Confirm(first) = %v\n%s", err, resp.ToString())
	}

	resp, err = c.Confirm(second)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Confirm(second) expected 409:\n%s", resp.ToString())
	}
	body, err := client.DecodeError(resp)
	if err != nil {
		t.Fatal(err)
	}
	if body.Code != "CONFLICT" || fmt.Sprint(body.Details["conflicting_ids"]) != fmt.Sprintf("[%d]", first) {
		t.Errorf("unexpected conflict body: %+v", body)
	}

	resp, _ = c.GetByID(second)
	if r, err := c.DecodeReservation(resp); err != nil || r.Status != "pending" {
		t.Errorf("second should stay pending: %v %+v", err, r)
	}

	resp, _ = c.Confirm(adjacent)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("adjacent range should confirm:\n%s", resp.ToString())
	}

	resp, _ = c.Update(first, reservationBody(2, "2024-02-01", "2024-02-02"))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("update of confirmed should be 409:\n%s", resp.ToString())
	}

	resp, _ = c.Cancel(first)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("cancel of confirmed should be 409:\n%s", resp.ToString())
	}

	resp, _ = c.Cancel(second)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cancel of pending should succeed:\n%s", resp.ToString())
	}
	resp, _ = c.Cancel(second)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double cancel should be 409:\n%s", resp.ToString())
	}

	resp, _ = c.CheckAvailability(1, "2024-01-11", "2024-01-12")
	if a, err := c.DecodeAvailability(resp); err != nil || a.Available {
		t.Errorf("room 1 should be busy: %v %+v", err, a)
	}
	resp, _ = c.CheckAvailability(1, "2024-01-20", "2024-01-25")
	if a, err := c.DecodeAvailability(resp); err != nil || !a.Available {
		t.Errorf("room 1 should be free after the 20th: %v %+v", err, a)
	}

	roomID := int64(1)
	resp, _ = c.List(&roomID, nil, 2, 0)
	page, err := c.DecodeReservationPage(resp)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 3 || len(page.Data) != 2 {
		t.Errorf("unexpected page: total=%d len=%d", page.TotalCount, len(page.Data))
	}
}

func TestE2E_ConcurrentConfirm(t *testing.T) {
	c := newTestServer(t)

	const contenders = 8
	ids := make([]int64, contenders)
	for i := range ids {
		ids[i] = mustCreate(t, c, 5, "2024-05-01", "2024-05-10")
	}

	var wg sync.WaitGroup
	codes := make([]int, contenders)
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Confirm(id)
			if err != nil {
				t.Errorf("Confirm(%d) error = %v", id, err)
				return
			}
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	winners := 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			winners++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if winners != 1 {
		t.Errorf("%d confirms succeeded, want 1", winners)
	}
}

func TestE2E_InputErrors(t *testing.T) {
	c := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "client chosen id", body: map[string]any{"id": 5, "user_id": 1, "room_id": 1, "start_date": "2024-01-10", "end_date": "2024-01-11"}},
		{name: "client chosen status", body: map[string]any{"status": "confirmed", "user_id": 1, "room_id": 1, "start_date": "2024-01-10", "end_date": "2024-01-11"}},
		{name: "inverted dates", body: reservationBody(1, "2024-01-11", "2024-01-10")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.Create(tt.body)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400:\n%s", resp.ToString())
			}
		})
	}

	resp, _ := c.CreateRaw([]byte(`{"user_id":`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed JSON expected 400:\n%s", resp.ToString())
	}

	resp, _ = c.GetByID(404)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing reservation expected 404:\n%s", resp.ToString())
	}
}

func TestE2E_IdempotentCreate(t *testing.T) {
	c := newTestServer(t)

	body := reservationBody(9, "2024-06-01", "2024-06-03")
	first, err := c.CreateWithIdempotencyKey(body, "create-once")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.CreateWithIdempotencyKey(body, "create-once")
	if err != nil {
		t.Fatal(err)
	}

	a, _ := c.DecodeReservation(first)
	b, _ := c.DecodeReservation(second)
	if a == nil || b == nil || a.ID != b.ID {
		t.Fatalf("replayed create should return the same reservation:\n%s\n%s", first.ToString(), second.ToString())
	}
	if second.Header.Get("Idempotent-Replayed") != "true" {
		t.Error("replay header missing")
	}
}

func TestE2E_UpdateRejectedInput(t *testing.T) {
	c := newTestServer(t)
	id := mustCreate(t, c, 1, "2024-01-10", "2024-01-15")

	resp, err := c.UpdateRaw(id, []byte(`{"room_id":`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed update expected 400:\n%s", resp.ToString())
	}

	if resp, _ := c.Confirm(id); resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm:\n%s", resp.ToString())
	}

	resp, _ = c.UpdateRaw(id, []byte(`{"user_id":7,"room_id":2,"start_date":"2024-02-01","end_date":"2024-02-03"}`))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("update of confirmed expected 409:\n%s", resp.ToString())
	}
	body, err := client.DecodeError(resp)
	if err != nil || body.Code != "FAILED_PRECONDITION" {
		t.Errorf("error body = %+v, %v", body, err)
	}

	resp, _ = c.GetByID(id)
	r, err := c.DecodeReservation(resp)
	if err != nil {
		t.Fatal(err)
	}
	if r.RoomID != 1 || r.StartDate != "2024-01-10" || r.Status != "confirmed" {
		t.Errorf("confirmed reservation changed: %+v", r)
	}
}

func TestE2E_ListPageOutOfRange(t *testing.T) {
	c := newTestServer(t)
	mustCreate(t, c, 1, "2024-01-10", "2024-01-15")

	resp, err := c.HTTP().GET("/reservation?page_size=3&page_number=4611686018427387904")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400:\n%s", resp.ToString())
	}

	resp, _ = c.GetByID(1)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("server unusable after out-of-range page:\n%s", resp.ToString())
	}
}

func TestE2E_UnknownRoute(t *testing.T) {
	c := newTestServer(t)

	resp, err := c.HTTP().GET("/rooms")
	if err != nil {
		t.Fatal(err)
	}
	body, err := client.DecodeError(resp)
	if resp.StatusCode != http.StatusNotFound || err != nil || body.Code != "NOT_FOUND" {
		t.Errorf("unknown route:\n%s", resp.ToString())
	}
}
