package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/example/menu-scheduler/internal/auth"
	"github.com/example/menu-scheduler/internal/config"
	"github.com/example/menu-scheduler/internal/history"
	"github.com/example/menu-scheduler/internal/merchant"
	"github.com/example/menu-scheduler/internal/report"
	"github.com/example/menu-scheduler/internal/schedule"
	"github.com/example/menu-scheduler/internal/scheduler"
)

//go:embed templates/*.html static/*
var fs embed.FS

// RunLister reads recent runs for the dashboard.
type RunLister interface {
	Recent(ctx context.Context, merchant string, limit int) ([]history.Run, error)
}

type Server struct {
	Auth      *auth.Store
	Merchants *merchant.Registry
	Runner    *scheduler.Runner
	History   RunLister
	Logger    *zap.Logger

	// LoginLimit caps login attempts per IP per minute. Zero means 10.
	LoginLimit int
}

type eventView struct {
	Name        string
	Description string
	NextFire    string
}

type merchantView struct {
	Key       string
	Name      string
	LocalTime string
	Today     string
	Tomorrow  string
	Events    []eventView
}

type tmplData struct {
	Title string
	User  string
	Flash string

	Merchants []merchantView
	Runs      []history.Run
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	limit := s.LoginLimit
	if limit <= 0 {
		limit = 10
	}
	mux.Handle("/login", httprate.LimitByIP(limit, time.Minute)(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("GET /{$}", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("GET /plan/{merchant}/{event}", s.Auth.RequireAuth(http.HandlerFunc(s.handlePlan)))
	mux.Handle("POST /run/{merchant}/{event}", s.Auth.RequireAuth(http.HandlerFunc(s.handleRun)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	now := time.Now()

	var views []merchantView
	for _, m := range s.Merchants.All() {
		moment := m.Resolver.Resolve(now)
		v := merchantView{
			Key:       m.Key,
			Name:      m.Name,
			LocalTime: moment.Instant.Format("Mon 2006-01-02 15:04 MST"),
			Today:     moment.Today.Title(),
			Tomorrow:  moment.Tomorrow.Title(),
		}
		for _, name := range m.Rules.EventNames() {
			ev := eventView{Name: name, Description: m.Rules.Events[name].Description}
			if next, ok := m.NextFire(name, now); ok {
				ev.NextFire = next.Format("Mon 15:04 MST")
			}
			v.Events = append(v.Events, ev)
		}
		views = append(views, v)
	}

	data := tmplData{Title: "Merchants", User: sess.Username, Merchants: views}
	if s.History != nil {
		runs, err := s.History.Recent(r.Context(), "", 25)
		if err != nil {
			s.logger().Warn("list recent runs", zap.Error(err))
			data.Flash = "Run history is unavailable"
		}
		data.Runs = runs
	}
	s.render(w, "templates/dashboard.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		sess, err := s.Auth.Authenticate(r.Context(), username, r.FormValue("password"))
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				s.logger().Error("authenticate", zap.String("username", username), zap.Error(err))
			}
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, sess); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	m, err := s.Merchants.Get(r.PathValue("merchant"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var at time.Time
	if v := r.URL.Query().Get("at"); v != "" {
		if at, err = time.Parse(time.RFC3339, v); err != nil {
			http.Error(w, "at must be an RFC3339 time", http.StatusBadRequest)
			return
		}
	}

	plan, err := s.Runner.Plan(m, r.PathValue("event"), at)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rep := report.Planned(plan)
	rep.Merchant = m.Key
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	m, err := s.Merchants.Get(r.PathValue("merchant"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, _ := auth.SessionFromContext(r.Context())
	req := scheduler.Request{
		Merchant: m,
		Event:    r.PathValue("event"),
		DryRun:   r.FormValue("dry_run") == "1" || r.FormValue("dry_run") == "true",
	}
	s.logger().Info("manual run", zap.String("user", sess.Username), zap.String("merchant", m.Key),
		zap.String("event", req.Event), zap.Bool("dry_run", req.DryRun))

	rep, err := s.Runner.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if rep.Err() != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, rep)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		unknown *schedule.UnknownEventError
		cfgErr  *config.ConfigurationError
		status  = http.StatusInternalServerError
	)
	switch {
	case errors.As(err, &unknown):
		status = http.StatusNotFound
	case errors.As(err, &cfgErr) && cfgErr.Key == "merchant":
		status = http.StatusNotFound
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.Is(err, scheduler.ErrBusy):
		status = http.StatusConflict
	default:
		s.logger().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
