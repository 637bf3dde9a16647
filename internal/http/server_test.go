package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"libreria/internal/auth"
	"libreria/internal/core"
	"libreria/internal/log"
	"libreria/internal/services"
	"libreria/internal/sheets/memory"
)

const testPassword = "kiosco-2024"

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type failingStore struct{ err error }

func (f failingStore) LoadAll(context.Context) ([]core.RawRow, error) { return nil, f.err }
func (f failingStore) Append(context.Context, core.Row) error         { return f.err }
func (f failingStore) DeleteByDate(context.Context, core.Date) error  { return f.err }
func (f failingStore) Ping(context.Context) error                     { return f.err }

func newTestServer(t *testing.T, ledger *services.LedgerService, deps Deps) *Server {
	t.Helper()
	a, err := auth.New(testPassword, "", "test-secret")
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	deps.Ledger = ledger
	deps.Auth = a
	deps.Now = func() time.Time { return fixedNow }
	deps.Logger = log.New(log.Config{Level: slog.LevelError, Output: io.Discard})

	s, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func memoryServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	return newTestServer(t, services.NewLedgerService(store, nil), Deps{Health: store}), store
}

func serve(s *Server, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	rec := serve(s, postForm("/login", url.Values{"password": {testPassword}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d", rec.Code)
	}
	c := cookieNamed(rec, auth.CookieName)
	if c == nil {
		t.Fatal("login did not set a session cookie")
	}
	return c
}

func recordForm(date string) url.Values {
	return url.Values{
		"date":           {date},
		"cash_sales":     {"6000"},
		"card_sales":     {"4000"},
		"margin_pct":     {"40"},
		"hours_worked":   {"2"},
		"hourly_rate":    {"1000"},
		"copy_count":     {"0"},
		"copy_unit_cost": {"10"},
		"notes":          {"feriado"},
	}
}

func TestHealthAndReady(t *testing.T) {
	s, _ := memoryServer(t)

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rec.Code)
	}

	down := failingStore{err: errors.New("sheets unreachable")}
	s2 := newTestServer(t, services.NewLedgerService(down, nil), Deps{Health: down})
	if rec := serve(s2, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store: expected 503, got %d", rec.Code)
	}
}

func TestIndexShowsLoginWhenUnauthenticated(t *testing.T) {
	s, _ := memoryServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="password"`) {
		t.Fatalf("expected login form, got %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected security headers")
	}
}

func TestLogin(t *testing.T) {
	s, _ := memoryServer(t)

	rec := serve(s, postForm("/login", url.Values{"password": {"wrong"}}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Contraseña incorrecta") {
		t.Errorf("expected error message, got %s", rec.Body.String())
	}
	if cookieNamed(rec, auth.CookieName) != nil {
		t.Error("wrong password must not set a session")
	}

	c := login(t, s)
	if c.MaxAge != 0 || !c.Expires.IsZero() {
		t.Errorf("session cookie must not persist: %+v", c)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil), c)
	if !strings.Contains(rec.Body.String(), "Carga diaria") {
		t.Fatalf("expected dashboard after login, got %s", rec.Body.String())
	}
}

func TestLoginRateLimited(t *testing.T) {
	store := memory.New()
	s := newTestServer(t, services.NewLedgerService(store, nil), Deps{LoginAttemptsPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rec := serve(s, postForm("/login", url.Values{"password": {"nope"}})); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := serve(s, postForm("/login", url.Values{"password": {testPassword}}))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestTrustedProxiesSeparateClients(t *testing.T) {
	tests := []struct {
		name    string
		proxies []string
		second  int
	}{
		{name: "untrusted proxy shares one budget", second: http.StatusTooManyRequests},
		{name: "trusted proxy forwards client ip", proxies: []string{"203.0.113.0/24"}, second: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			s := newTestServer(t, services.NewLedgerService(store, nil), Deps{LoginAttemptsPerMinute: 1, TrustedProxies: tt.proxies})

			codes := make([]int, 0, 2)
			for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
				req := postForm("/login", url.Values{"password": {"nope"}})
				req.RemoteAddr = "203.0.113.5:40000"
				req.Header.Set("X-Forwarded-For", client)
				codes = append(codes, serve(s, req).Code)
			}
			if codes[0] != http.StatusUnauthorized || codes[1] != tt.second {
				t.Fatalf("codes = %v, want [401 %d]", codes, tt.second)
			}
		})
	}
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	_, err := NewServer(":0", Deps{
		TrustedProxies: []string{"not-a-cidr"},
		Logger:         log.New(log.Config{Level: slog.LevelError, Output: io.Discard}),
	})
	if err == nil || !strings.Contains(err.Error(), "not-a-cidr") {
		t.Fatalf("expected CIDR error, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	s, _ := memoryServer(t)
	c := login(t, s)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/logout", nil), c)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	cleared := cookieNamed(rec, auth.CookieName)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected session cookie to be cleared, got %+v", cleared)
	}
}

func TestProtectedRoutesRedirect(t *testing.T) {
	s, store := memoryServer(t)

	for _, req := range []*http.Request{
		postForm("/records", recordForm("2024-03-15")),
		postForm("/records/delete", url.Values{"date": {"2024-03-15"}}),
		httptest.NewRequest(http.MethodGet, "/export.xlsx", nil),
	} {
		rec := serve(s, req)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
			t.Errorf("%s %s: expected redirect to /, got %d %q", req.Method, req.URL.Path, rec.Code, rec.Header().Get("Location"))
		}
	}
	if store.Len() != 0 {
		t.Fatalf("unauthenticated requests must not write, store has %d rows", store.Len())
	}
}

func TestEmptyDashboard(t *testing.T) {
	s, _ := memoryServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil), login(t, s))

	body := rec.Body.String()
	for _, want := range []string{"HOY (15/03)", "Todavía no hay registros", "SIN RESULTADO", `value="50"`, `value="2000"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in empty dashboard", want)
		}
	}
}

func TestCreateRecord(t *testing.T) {
	s, store := memoryServer(t)
	session := login(t, s)

	rec := serve(s, postForm("/records", recordForm("2024-03-15")), session)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored row, got %d", store.Len())
	}
	fl := cookieNamed(rec, flashCookie)
	if fl == nil {
		t.Fatal("expected flash cookie")
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil), session, fl)
	body := rec.Body.String()
	for _, want := range []string{"GANANCIA $ 2.000", "$ 10.000", "feriado", "15/03/2024", "guardado"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in dashboard", want)
		}
	}
	if strings.Contains(body, "Servicio de copias") {
		t.Error("billing block must only show in the fiscal view")
	}
}

func TestDashboardShowsCostColumns(t *testing.T) {
	s, _ := memoryServer(t)
	session := login(t, s)

	form := recordForm("2024-03-15")
	form.Set("cash_sales", "7000")
	form.Set("card_sales", "3000")
	form.Set("copy_count", "350")
	if rec := serve(s, postForm("/records", form), session); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}

	body := serve(s, httptest.NewRequest(http.MethodGet, "/", nil), session).Body.String()
	for _, want := range []string{
		"<th>Costo Rep.</th>",
		"<th>Costo copias</th>",
		"<td>$ 6.000</td>", // cost of goods at 40% margin
		"<td>$ 3.500</td>", // 350 copies at $ 10
		"<td>350</td>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in dashboard", want)
		}
	}
}

func TestCreateRecordRejectsInvalidInput(t *testing.T) {
	s, store := memoryServer(t)
	session := login(t, s)

	form := recordForm("2024-03-15")
	form.Set("margin_pct", "95")
	form.Set("cash_sales", "mucho")

	rec := serve(s, postForm("/records", form), session)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Margen debe estar entre 10 y 90", "Venta en efectivo no es un número"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}
	if store.Len() != 0 {
		t.Fatal("invalid input must not be stored")
	}
}

func TestCreateRecordRejectsNonFiniteAndFractionalInput(t *testing.T) {
	tests := []struct {
		field, value, problem string
	}{
		{"cash_sales", "inf", "Venta en efectivo no es un número"},
		{"card_sales", "NaN", "Venta MP no es un número"},
		{"margin_pct", "90.9", "Margen debe ser un número entero"},
		{"copy_count", "-0.5", "Cantidad de copias debe ser un número entero"},
	}
	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			s, store := memoryServer(t)
			form := recordForm("2024-03-15")
			form.Set(tt.field, tt.value)

			rec := serve(s, postForm("/records", form), login(t, s))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.problem) {
				t.Errorf("expected %q in response", tt.problem)
			}
			if store.Len() != 0 {
				t.Fatal("rejected input must not be stored")
			}
		})
	}
}

func TestCreateRecordThousandsComma(t *testing.T) {
	s, store := memoryServer(t)
	form := recordForm("2024-03-15")
	form.Set("cash_sales", "$1,234.00")
	form.Set("card_sales", "0")

	if rec := serve(s, postForm("/records", form), login(t, s)); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	rows, _ := store.LoadAll(context.Background())
	recs, err := core.RecordsFromRows(rows)
	if err != nil || len(recs) != 1 || recs[0].CashSales != 1234 {
		t.Fatalf("expected cash sales 1234, got %+v err=%v", recs, err)
	}
}

func TestDeleteRecord(t *testing.T) {
	s, store := memoryServer(t)
	session := login(t, s)
	serve(s, postForm("/records", recordForm("2024-03-15")), session)

	rec := serve(s, postForm("/records/delete", url.Values{"date": {"2024-03-20"}}), session)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if store.Len() != 1 {
		t.Fatal("deleting an absent date must not change the store")
	}
	page := serve(s, httptest.NewRequest(http.MethodGet, "/", nil), session, cookieNamed(rec, flashCookie))
	if !strings.Contains(page.Body.String(), "No hay registros con fecha 20/03/2024") {
		t.Errorf("expected not-found warning, got %s", page.Body.String())
	}

	rec = serve(s, postForm("/records/delete", url.Values{"date": {"2024-03-15"}, "return": {"filter=all"}}), session)
	if loc := rec.Header().Get("Location"); loc != "/?filter=all" {
		t.Errorf("expected redirect back to the filtered view, got %q", loc)
	}
	if store.Len() != 0 {
		t.Fatal("expected the record to be deleted")
	}
}

func TestDashboardFilters(t *testing.T) {
	s, _ := memoryServer(t)
	session := login(t, s)
	for _, d := range []string{"2024-03-15", "2024-03-10", "2024-02-25"} {
		serve(s, postForm("/records", recordForm(d)), session)
	}

	tests := []struct {
		name  string
		query string
		want  []string
		not   []string
	}{
		{"week", "filter=week", []string{"ÚLTIMOS 7 DÍAS", "10/03/2024", "15/03/2024"}, []string{"25/02/2024"}},
		{"range", "filter=range&from=2024-02-20&to=2024-02-28", []string{"DEL", "25/02/2024"}, []string{"15/03/2024"}},
		{"inverted range", "filter=range&from=2024-03-10&to=2024-03-01", []string{"Filtro inválido"}, []string{"GANANCIA"}},
		{"bad date", "filter=range&from=ayer", []string{"Filtro inválido"}, nil},
		{"fiscal", "filter=fiscal", []string{"PERIODO 2024-03 (Cierre 21)", "Servicio de copias", "Faltan 20.000 copias"}, nil},
		{"all", "filter=all", []string{"25/02/2024", "10/03/2024", "15/03/2024"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := serve(s, httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil), session).Body.String()
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("expected %q", w)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(body, n) {
					t.Errorf("did not expect %q", n)
				}
			}
		})
	}
}

func TestDashboardLoadFailure(t *testing.T) {
	s := newTestServer(t, services.NewLedgerService(failingStore{err: errors.New("quota exceeded")}, nil), Deps{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil), login(t, s))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No se pudieron leer los registros") {
		t.Errorf("expected error page, got %s", rec.Body.String())
	}
}

func TestExport(t *testing.T) {
	s, _ := memoryServer(t)
	session := login(t, s)
	serve(s, postForm("/records", recordForm("2024-03-15")), session)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/export.xlsx?filter=all", nil), session)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("expected a zip container")
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/export.xlsx?filter=range&from=2024-03-10&to=2024-03-01", nil), session)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range export: expected 400, got %d", rec.Code)
	}
}

func TestSuspiciousRequestsAreHidden(t *testing.T) {
	s, _ := memoryServer(t)
	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/.env", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestParseFilter(t *testing.T) {
	today := core.NewDate(2024, 3, 15)
	tests := []struct {
		query   string
		want    core.Filter
		wantErr bool
	}{
		{"", core.Filter{Mode: core.FilterToday}, false},
		{"filter=week", core.Filter{Mode: core.FilterLast7Days}, false},
		{"filter=range", core.Filter{Mode: core.FilterCustomRange, From: core.NewDate(2024, 2, 14), To: today}, false},
		{"filter=range&from=2024-03-01&to=2024-03-05", core.Filter{Mode: core.FilterCustomRange, From: core.NewDate(2024, 3, 1), To: core.NewDate(2024, 3, 5)}, false},
		{"filter=fiscal&period=2024-03+(Cierre+21)", core.Filter{Mode: core.FilterFiscalMonth, Period: "2024-03 (Cierre 21)"}, false},
		{"filter=range&to=mañana", core.Filter{}, true},
		{"filter=yearly", core.Filter{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := parseFilter(q, today)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Mode != tt.want.Mode || !got.From.Equal(tt.want.From) || !got.To.Equal(tt.want.To) || got.Period != tt.want.Period {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFilterQueryRoundTrip(t *testing.T) {
	today := core.NewDate(2024, 3, 15)
	f := core.Filter{Mode: core.FilterCustomRange, From: core.NewDate(2024, 3, 1), To: core.NewDate(2024, 3, 9)}
	got, err := parseFilter(filterQuery(f), today)
	if err != nil || !got.From.Equal(f.From) || !got.To.Equal(f.To) {
		t.Fatalf("round trip: got %+v err=%v", got, err)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatMoney(1234567.4), "$ 1.234.567"},
		{formatMoney(0), "$ 0"},
		{formatMoney(-500), "$ -500"},
		{formatCount(20000), "20.000"},
		{formatDate(core.NewDate(2024, 3, 5)), "05/03/2024"},
		{pnlClass(-1), "loss"},
		{pnlClass(0), "even"},
		{sanitizeInput("  hola\x00 "), "hola"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, NotificationWarning, "No hay registros | revisar")
	c := cookieNamed(rec, flashCookie)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got := popFlash(httptest.NewRecorder(), req)
	if got == nil || got.Type != NotificationWarning || got.Message != "No hay registros | revisar" {
		t.Fatalf("unexpected flash %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "not-base64!"})
	if popFlash(httptest.NewRecorder(), req) != nil {
		t.Fatal("garbage flash must be ignored")
	}
}
