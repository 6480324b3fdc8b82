// Package httpgateway exposes a running SD Server/Client pair over a
// small JSON HTTP API, grounded on pkg/gateway/http's ServeMux-plus-
// route-table gateway shape (itself implementing CiA 309-5's CANopen-
// over-HTTP gateway) - adapted here from CANopen SDO/NMT commands to
// SOME/IP service discovery introspection and find_service triggers.
package httpgateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/waheedejaz/opensomeip/pkg/sd"
)

// Server is a read-mostly debug/ops surface over an sd.Server and/or
// sd.Client: list what's offered, list what's known, and trigger a
// find_service. Either collaborator may be nil.
type Server struct {
	server   *sd.Server
	client   *sd.Client
	logger   *slog.Logger
	serveMux *http.ServeMux
}

// NewServer wires routes for whichever of server/client is non-nil.
func NewServer(server *sd.Server, client *sd.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "[HTTP-GATEWAY]")

	g := &Server{server: server, client: client, logger: logger, serveMux: http.NewServeMux()}
	g.serveMux.HandleFunc("/services", g.handleServices)
	g.serveMux.HandleFunc("/instances", g.handleInstances)
	g.serveMux.HandleFunc("/find", g.handleFind)

	logger.Info("initializing SOME/IP debug HTTP gateway")
	return g
}

// ListenAndServe blocks, serving the gateway's routes on addr.
func (g *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, g.serveMux)
}

func (g *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed encoding response", "err", err)
	}
}

// handleServices lists every service currently offered by server.
func (g *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	if g.server == nil {
		http.Error(w, "no SD server attached to this gateway", http.StatusNotImplemented)
		return
	}
	g.writeJSON(w, http.StatusOK, g.server.Offered())
}

// handleInstances lists every remote service instance client currently
// believes is available.
func (g *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	if g.client == nil {
		http.Error(w, "no SD client attached to this gateway", http.StatusNotImplemented)
		return
	}
	g.writeJSON(w, http.StatusOK, g.client.Instances())
}

// handleFind triggers a find_service for ?service=0x1111 (or decimal) and
// returns 202 immediately with the parsed service id and a status string;
// it does not list known instances. The caller polls
// /instances afterward to observe the async result of this find.
func (g *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if g.client == nil {
		http.Error(w, "no SD client attached to this gateway", http.StatusNotImplemented)
		return
	}
	serviceId, err := parseServiceId(r.URL.Query().Get("service"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	timeout := 2 * time.Second
	if raw := r.URL.Query().Get("timeout_ms"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}

	g.client.FindService(serviceId, timeout)
	g.writeJSON(w, http.StatusAccepted, map[string]any{"service_id": serviceId, "status": "find_service issued"})
}

func parseServiceId(raw string) (uint16, error) {
	raw = strings.TrimSpace(raw)
	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		raw, base = raw[2:], 16
	}
	v, err := strconv.ParseUint(raw, base, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
