package ginserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/dto"
	bookingapp "courtbook/internal/app/handlers/booking"
	"courtbook/internal/app/middleware"
	"courtbook/internal/app/queries"
	domaincourts "courtbook/internal/domain/courts"
	"courtbook/internal/infra/broadcast"
	"courtbook/internal/infra/obs"
	"courtbook/internal/infra/storage/memory"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
)

type sweeperStub struct{ calls int }

func (s *sweeperStub) Sweep(ctx context.Context) (dto.SweepResult, error) {
	s.calls++
	return dto.SweepResult{Invoices: []string{}}, nil
}

func newTestRouter(t *testing.T, hub *broadcast.Hub, sweeper Sweeper) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	factory := memory.Factory{
		Bookings: memory.NewBookingRepository(),
		Courts:   memory.NewCourtCatalog(domaincourts.Court{ID: 3, HourlyRate: 50_000, Active: true}),
		Vouchers: memory.NewVoucherCatalog(),
	}
	clock := func() time.Time { return testNow }

	cmdBus := commands.NewInMemoryBus()
	update := &bookingapp.UpdateBookingStatusHandler{UoWFactory: factory, Clock: clock}
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.CreateBookingResult](cmdBus, bookingapp.CreateBookingKey,
		&bookingapp.CreateBookingHandler{UoWFactory: factory, Clock: clock})
	commands.RegisterHandler[bookingapp.UpdateBookingStatusCommand, dto.Booking](cmdBus, bookingapp.UpdateBookingStatusKey, update)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.GetBookingQuery, dto.Booking](queryBus, bookingapp.GetBookingKey, &bookingapp.GetBookingHandler{UoWFactory: factory})
	queries.RegisterHandler[bookingapp.ListUserBookingsQuery, dto.BookingCollection](queryBus, bookingapp.ListUserBookingsKey, &bookingapp.ListUserBookingsHandler{UoWFactory: factory})
	queries.RegisterHandler[bookingapp.AvailableSlotsQuery, []dto.DaySlot](queryBus, bookingapp.AvailableSlotsKey, &bookingapp.AvailableSlotsHandler{UoWFactory: factory})

	cmds := middleware.ChainCommands(cmdBus, middleware.Validation())
	qs := middleware.ChainQueries(queryBus, middleware.QueryValidation())

	h := Handlers{
		Booking:        BookingHandler{Commands: cmds, Queries: qs},
		Slots:          SlotsHandler{Queries: qs},
		AuthMiddleware: AuthMiddleware{Secret: testSecret}.Handle,
	}
	if hub != nil {
		h.Events = EventsHandler{Hub: hub, KeepAlive: time.Hour}
	}
	if sweeper != nil {
		h.Admin = AdminHandler{Sweeper: sweeper}
	}
	return NewRouter(obs.Middleware{}, obs.HealthHandlers{}, h)
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, userID, role)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return "Bearer " + tok
}

func do(router http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const createBody = `{"courtId":3,"date":"2026-03-14","timeSlots":["14:00 - 15:00","15:00 - 16:00"],"paymentMethod":"qris"}`

func TestCreateBookingEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)
	customer := token(t, 7, RoleCustomer)

	if w := do(router, http.MethodPost, "/api/v1/bookings", "", createBody); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create = %d, want 401", w.Code)
	}
	if w := do(router, http.MethodPost, "/api/v1/bookings", "Bearer nonsense", createBody); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token create = %d, want 401", w.Code)
	}

	w := do(router, http.MethodPost, "/api/v1/bookings", customer, createBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body.String())
	}
	var created dto.CreateBookingResult
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.TotalPrice != 105_000 || created.InvoiceNumber == "" {
		t.Errorf("created = %+v", created)
	}

	w = do(router, http.MethodPost, "/api/v1/bookings", token(t, 8, RoleCustomer),
		`{"courtId":3,"date":"2026-03-14","timeSlots":["13:00 - 14:00","14:00 - 15:00"]}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("conflicting create = %d: %s", w.Code, w.Body.String())
	}
	var conflict struct {
		ConflictingSlots []string `json:"conflictingSlots"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &conflict)
	if len(conflict.ConflictingSlots) != 1 || conflict.ConflictingSlots[0] != "14:00" {
		t.Errorf("conflictingSlots = %v", conflict.ConflictingSlots)
	}

	w = do(router, http.MethodPost, "/api/v1/bookings", customer, `{"courtId":3,"date":"2026-03-14","timeSlots":["14:00","16:00"]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-contiguous create = %d, want 400", w.Code)
	}
	w = do(router, http.MethodPost, "/api/v1/bookings", customer, `{"courtId":99,"date":"2026-03-14","timeSlots":["10:00"]}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown court create = %d, want 404", w.Code)
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)
	customer := token(t, 7, RoleCustomer)
	w := do(router, http.MethodPost, "/api/v1/bookings", customer, createBody)
	var created dto.CreateBookingResult
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	path := "/api/v1/bookings/" + created.InvoiceNumber + "/status"

	w = do(router, http.MethodPut, path, customer, `{"status":"completed","totalAmount":105000,"serviceFee":5000}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("mixed pricing = %d, want 400", w.Code)
	}
	w = do(router, http.MethodPut, path, token(t, 8, RoleCustomer), `{"status":"completed"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign update = %d, want 404", w.Code)
	}

	w = do(router, http.MethodPut, path, customer, `{"status":"completed","paymentMethod":"qris"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("pay = %d: %s", w.Code, w.Body.String())
	}
	var got dto.Booking
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Status != "confirmed" || got.PaymentStatus != "paid" || got.FinalTotal != 105_000 {
		t.Errorf("after payment = %s/%s/%d", got.Status, got.PaymentStatus, got.FinalTotal)
	}

	admin := token(t, 1, RoleAdmin)
	if w := do(router, http.MethodPut, path, admin, `{"status":"cancelled"}`); w.Code != http.StatusOK {
		t.Fatalf("admin cancel = %d: %s", w.Code, w.Body.String())
	}
	w = do(router, http.MethodPut, path, admin, `{"status":"completed"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("update terminal = %d, want 409", w.Code)
	}
	var terminal struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &terminal)
	if terminal.Status != "cancelled" {
		t.Errorf("terminal body = %s", w.Body.String())
	}

	w = do(router, http.MethodGet, "/api/v1/bookings/"+created.InvoiceNumber, customer, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	w = do(router, http.MethodGet, "/api/v1/me/bookings", customer, "")
	var list dto.BookingCollection
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || len(list.Items) != 1 || list.Items[0].Status != "cancelled" {
		t.Errorf("list = %d %s", w.Code, w.Body.String())
	}
}

func TestSlotsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)
	do(router, http.MethodPost, "/api/v1/bookings", token(t, 7, RoleCustomer), createBody)

	w := do(router, http.MethodGet, "/api/v1/slots?courtId=3&date=2026-03-14", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("slots = %d: %s", w.Code, w.Body.String())
	}
	var slots []dto.DaySlot
	_ = json.Unmarshal(w.Body.Bytes(), &slots)
	booked := map[string]bool{}
	for _, s := range slots {
		if s.Status == "booked" {
			booked[s.Time] = true
		}
	}
	if len(booked) != 2 || !booked["14:00"] || !booked["15:00"] {
		t.Errorf("booked = %v", booked)
	}

	tests := []struct {
		name  string
		query string
	}{
		{name: "missing court", query: "date=2026-03-14"},
		{name: "bad date", query: "courtId=3&date=tomorrow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(router, http.MethodGet, "/api/v1/slots?"+tt.query, "", ""); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestAdminSweepRequiresAdmin(t *testing.T) {
	sweeper := &sweeperStub{}
	router := newTestRouter(t, nil, sweeper)

	if w := do(router, http.MethodPost, "/api/v1/admin/sweeps", token(t, 7, RoleCustomer), ""); w.Code != http.StatusForbidden {
		t.Errorf("customer sweep = %d, want 403", w.Code)
	}
	if w := do(router, http.MethodPost, "/api/v1/admin/sweeps", token(t, 1, RoleAdmin), ""); w.Code != http.StatusOK {
		t.Errorf("admin sweep = %d, want 200", w.Code)
	}
	if sweeper.calls != 1 {
		t.Errorf("sweeper calls = %d, want 1", sweeper.calls)
	}
	if w := do(router, http.MethodGet, "/livez", "", ""); w.Code != http.StatusOK {
		t.Errorf("livez = %d", w.Code)
	}
}

func TestEventStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := broadcast.NewHub(4, nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(newTestRouter(t, hub, nil))
	defer srv.Close()

	reqCtx, stop := context.WithCancel(ctx)
	defer stop()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, _ := hub.Subscribers(ctx)
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := hub.Publish(ctx, broadcast.Message{Type: broadcast.TypeBookingExpired, Payload: broadcast.BookingPayload{InvoiceNumber: "INV-1"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before the message arrived")
			}
			if strings.HasPrefix(line, "data:") && strings.Contains(line, `"BOOKING_EXPIRED"`) {
				if !strings.Contains(line, `"invoiceNumber":"INV-1"`) {
					t.Errorf("payload = %s", line)
				}
				return
			}
		case <-timeout:
			t.Fatal("no BOOKING_EXPIRED message received")
		}
	}
}
