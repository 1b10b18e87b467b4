package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/health"
	apimw "github.com/hamed0406/healthwatch/internal/httpapi/middleware"
	"github.com/hamed0406/healthwatch/internal/reachability"
	"github.com/hamed0406/healthwatch/internal/repo"
)

type Server struct {
	Logger    *zap.Logger
	Registry  *health.Registry
	Results   repo.ResultStore
	Suppliers *reachability.Suppliers
	Gatherer  prometheus.Gatherer

	mu        sync.Mutex
	snapshots map[string]*reachability.StaticSnapshot
}

func NewServer(l *zap.Logger, reg *health.Registry, rs repo.ResultStore, sup *reachability.Suppliers, g prometheus.Gatherer) *Server {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Server{
		Logger:    l,
		Registry:  reg,
		Results:   rs,
		Suppliers: sup,
		Gatherer:  g,
		snapshots: make(map[string]*reachability.StaticSnapshot),
	}
}

// RouterOptions configures access control of the API routes.
type RouterOptions struct {
	Keys           apimw.Keys
	AllowedOrigins []string // empty allows every origin
	PublicRPM      int
	PublicBurst    int
}

func (s *Server) Router(o RouterOptions) http.Handler {
	r := chi.NewRouter()
	if len(o.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/healthcheck", s.handleHealthcheck)
	r.Get("/healthcheck/{name}", s.handleHealthcheckOne)
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(api chi.Router) {
		api.Use(apimw.RateLimit(o.PublicRPM, o.PublicBurst))

		api.Group(func(pub chi.Router) {
			pub.Use(apimw.RequireAny(o.Keys))
			pub.Get("/checks", s.handleLatest)
			pub.Get("/checks/{name}/history", s.handleHistory)
		})

		api.Group(func(adm chi.Router) {
			adm.Use(apimw.RequireAdmin(o.Keys))
			adm.Put("/hostsources/{name}", s.handlePutHostSource)
			adm.Delete("/hostsources/{name}", s.handleDeleteHostSource)
		})
	})

	return r
}

// handleHealthcheck evaluates every registered check: 200 when all are
// healthy, 500 otherwise.
func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	verdicts := s.Registry.RunAll(r.Context())
	status := http.StatusOK
	if !health.AllHealthy(verdicts) {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, verdicts)
}

func (s *Server) handleHealthcheckOne(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.Registry.Run(r.Context(), name)
	if errors.Is(err, health.ErrUnknownCheck) {
		writeError(w, http.StatusNotFound, "unknown check")
		return
	}
	status := http.StatusOK
	if !v.Healthy {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, v)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		s.Logger.Error("latest_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	if rows == nil {
		rows = []domain.VerdictRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	rows, err := s.Results.History(r.Context(), name, limit)
	if err != nil {
		s.Logger.Error("history_error", zap.String("check", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	if rows == nil {
		rows = []domain.VerdictRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type hostPayload struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// handlePutHostSource replaces the host snapshot of a DYNAMIC check. The
// check does not have to be registered yet. A name already fed by another
// supplier is refused with 409.
func (s *Server) handlePutHostSource(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	var payload []hostPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	hosts := make([]reachability.HostTarget, 0, len(payload))
	for _, p := range payload {
		addr := strings.TrimSpace(p.Address)
		if addr == "" || p.Port < 1 || p.Port > 65535 {
			writeError(w, http.StatusBadRequest, "every host needs an address and a port in 1-65535")
			return
		}
		hosts = append(hosts, reachability.HostTarget{Address: addr, Port: p.Port})
	}

	s.mu.Lock()
	snap, ok := s.snapshots[name]
	if !ok {
		if _, taken := s.Suppliers.Lookup(name); taken {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "host source is managed elsewhere")
			return
		}
		snap = reachability.NewStaticSnapshot(nil)
		s.snapshots[name] = snap
		s.Suppliers.Register(name, snap.Supplier())
	}
	snap.Set(hosts)
	s.mu.Unlock()

	s.Logger.Info("host_source_replaced", zap.String("check", name), zap.Int("hosts", len(hosts)))
	writeJSON(w, http.StatusOK, map[string]any{"check": name, "hosts": len(hosts)})
}

// handleDeleteHostSource removes a snapshot created through this API.
// Suppliers bound elsewhere, such as Redis snapshots, are left alone.
func (s *Server) handleDeleteHostSource(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	s.mu.Lock()
	_, ok := s.snapshots[name]
	if ok {
		delete(s.snapshots, name)
		s.Suppliers.Unregister(name)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no host source set through the API")
		return
	}
	s.Logger.Info("host_source_removed", zap.String("check", name))
	w.WriteHeader(http.StatusNoContent)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return repo.DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	if n > 1000 {
		n = 1000
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
