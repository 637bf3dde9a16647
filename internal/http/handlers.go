package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"libreria/internal/auth"
	"libreria/internal/core"
	"libreria/internal/export"
	"libreria/internal/log"
	"libreria/internal/services"
	"libreria/internal/sheets"
)

type loginPage struct {
	Error string
}

type dashboardPage struct {
	View        *services.DashboardView
	Flash       *flash
	Today       core.Date
	FilterModes []filterOption
	ExportURL   template.URL
	// ReturnQuery keeps the current filter across a delete.
	ReturnQuery string
	// FormError lists problems of a rejected submission.
	FormError []string
}

type filterOption struct {
	Mode  core.FilterMode
	Label string
}

var filterOptions = []filterOption{
	{core.FilterToday, "Hoy"},
	{core.FilterLast7Days, "Últimos 7 días"},
	{core.FilterCustomRange, "Rango"},
	{core.FilterFiscalMonth, "Mes fiscal"},
	{core.FilterAll, "Todo"},
}

type errorPage struct {
	Message string
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

// render executes a template into a buffer so a failing template never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template render failed",
			log.FieldOperation, log.OpRender, "template", name, log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "Failed to load records",
		log.FieldOperation, log.OpLoad, log.FieldError, err)
	s.render(w, r, http.StatusInternalServerError, "error.html", errorPage{
		Message: "No se pudieron leer los registros. Revisá la conexión con la planilla y recargá la página.",
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	switch sess := s.auth.Resolve(r).(type) {
	case auth.Authenticated:
		s.handleDashboard(w, r, sess)
	default:
		s.render(w, r, http.StatusOK, "login.html", loginPage{})
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ auth.Authenticated) {
	s.renderDashboard(w, r, http.StatusOK, nil)
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, formErr []string) {
	today := s.today()
	f, parseErr := parseFilter(r.URL.Query(), today)

	view, err := s.ledger.Dashboard(r.Context(), f, today)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if parseErr != nil {
		view.InvalidFilter = parseErr
		view.Records = []core.DailyRecord{}
		view.Summary = core.Summary{}
		view.Billing = nil
	}

	q := filterQuery(view.Filter).Encode()
	s.render(w, r, status, "dashboard.html", dashboardPage{
		View:        view,
		Flash:       popFlash(w, r),
		Today:       today,
		FilterModes: filterOptions,
		ExportURL:   template.URL("/export.xlsx?" + q),
		ReturnQuery: q,
		FormError:   formErr,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", loginPage{Error: "Formulario inválido"})
		return
	}
	sess, err := s.auth.Login(w, r, r.PostForm.Get("password"))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to issue session",
			log.FieldOperation, log.OpLogin, log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !auth.IsAuthenticated(sess) {
		s.logger.WarnContext(r.Context(), "Login rejected",
			log.FieldOperation, log.OpLogin, log.FieldClientIP, s.detector.ExtractClientIP(r))
		s.render(w, r, http.StatusUnauthorized, "login.html", loginPage{Error: "Contraseña incorrecta"})
		return
	}
	s.logger.InfoContext(r.Context(), "Login accepted", log.FieldOperation, log.OpLogin)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLoginLimited(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusTooManyRequests, "login.html", loginPage{
		Error: "Demasiados intentos. Esperá un minuto y probá de nuevo.",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request, _ auth.Authenticated) {
	in, err := parseRecordForm(r)
	if err != nil {
		var ie *services.InputError
		if errors.As(err, &ie) {
			s.logger.InfoContext(r.Context(), "Record rejected",
				log.FieldOperation, log.OpValidate, "problems", strings.Join(ie.Problems, "; "))
			s.renderDashboard(w, r, http.StatusUnprocessableEntity, ie.Problems)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	rec, err := s.ledger.Record(r.Context(), in)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to save record",
			log.FieldOperation, log.OpAppend, log.FieldDate, in.Date.String(), log.FieldError, err)
		setFlash(w, NotificationError, "No se pudo guardar el registro. Probá de nuevo.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	setFlash(w, NotificationSuccess, fmt.Sprintf("Registro del %s guardado. Ganancia neta %s.",
		formatDate(rec.Date), formatMoney(rec.NetProfit)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request, _ auth.Authenticated) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	d, err := core.ParseDate(sanitizeInput(r.PostForm.Get("date")))
	if err != nil {
		setFlash(w, NotificationError, "Fecha inválida.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	back := "/"
	if q := sanitizeInput(r.PostForm.Get("return")); strings.HasPrefix(q, "filter=") {
		back = "/?" + q
	}

	switch err := s.ledger.Delete(r.Context(), d); {
	case err == nil:
		setFlash(w, NotificationSuccess, "Registro del "+formatDate(d)+" eliminado.")
	case errors.Is(err, sheets.ErrNotFound):
		setFlash(w, NotificationWarning, "No hay registros con fecha "+formatDate(d)+".")
	default:
		s.logger.ErrorContext(r.Context(), "Failed to delete record",
			log.FieldOperation, log.OpDelete, log.FieldDate, d.String(), log.FieldError, err)
		setFlash(w, NotificationError, "No se pudo eliminar el registro.")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, _ auth.Authenticated) {
	today := s.today()
	f, err := parseFilter(r.URL.Query(), today)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := s.ledger.Dashboard(r.Context(), f, today)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if view.InvalidFilter != nil {
		http.Error(w, view.InvalidFilter.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	rep := export.Report{Title: view.Title, Records: view.Records, Summary: view.Summary, Billing: view.Billing}
	if err := export.WriteXLSX(&buf, rep); err != nil {
		s.logger.ErrorContext(r.Context(), "Export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="libreria-%s.xlsx"`, today))
	_, _ = w.Write(buf.Bytes())
}
