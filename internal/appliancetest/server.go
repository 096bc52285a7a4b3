// Package appliancetest runs an in-process AppResponse look-alike for tests.
// It implements the token, info, collection, bulk_delete and merge endpoints,
// records every request, and can be told to fail any endpoint with a status.
package appliancetest

import (
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rflorenc/arcfg/internal/models"
)

// Request is one call received by the server.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Body          []byte
}

// Server is a fake appliance listening on TLS.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string]string            // username -> password
	tokens      map[string]string            // token -> username
	collections map[string][]json.RawMessage // collection path -> items
	failures    map[string]failure           // "METHOD path" -> forced reply
	requests    []Request
	swVersion   string
}

type failure struct {
	status int
	body   string
}

// New starts a server that accepts the given username/password pair.
// The server is closed when the test ends.
func New(t testing.TB, username, password string) *Server {
	t.Helper()
	s := &Server{
		users:       map[string]string{username: password},
		tokens:      make(map[string]string),
		collections: make(map[string][]json.RawMessage),
		failures:    make(map[string]failure),
		swVersion:   "11.13.0",
	}
	s.Server = httptest.NewTLSServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Post("/api/mgmt.aaa/2.0/token", s.handleToken)
	r.Get("/api/common/1.0/info", s.handleInfo)

	r.Route("/api/{namespace}/{version}/{resource}", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/", s.handleList)
		r.Post("/bulk_delete", s.handleBulkDelete)
		r.Post("/merge", s.handleMerge)
	})
	return r
}

// Connection returns a connection to this server that trusts its certificate.
func (s *Server) Connection(username, password string) *models.Connection {
	host, portStr, _ := net.SplitHostPort(s.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: s.Certificate().Raw})
	return &models.Connection{
		Name:     "fake-" + portStr,
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		CACert:   string(caPEM),
	}
}

// SetVersion sets the sw_version reported by the info endpoint.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swVersion = v
}

// Seed replaces the stored collection for an object type.
func (s *Server) Seed(ot models.ObjectType, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		raw = append(raw, json.RawMessage(it))
	}
	s.collections[ot.CollectionPath()] = raw
}

// Items returns the stored collection for an object type.
func (s *Server) Items(ot models.ObjectType) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[ot.CollectionPath()]
	out := make([]json.RawMessage, len(items))
	copy(out, items)
	return out
}

// Fail makes every request to method+path answer with status and body.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

// Recover undoes Fail for method+path.
func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// Requests returns the calls received so far, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Paths returns "METHOD path" for every call received so far.
func (s *Server) Paths() []string {
	var out []string
	for _, r := range s.Requests() {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

// LastBody returns the body of the most recent request to method+path.
func (s *Server) LastBody(method, path string) []byte {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i].Body
		}
	}
	return nil
}

func (s *Server) newToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := uuid.New().String()
	s.tokens[tok] = username
	return tok
}

func (s *Server) validToken(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[tok]
	return ok
}

func (s *Server) checkPassword(username, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	want, ok := s.users[username]
	return ok && want == password
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, id, text string) {
	writeJSON(w, status, map[string]string{
		"error_id":   id,
		"error_text": text,
	})
}

// bodyKey mirrors the appliance: web-app rules are merged under "rules".
func bodyKey(resource string) string {
	if resource == "wta_webapps" {
		return "rules"
	}
	return "items"
}

func (s *Server) String() string {
	return fmt.Sprintf("appliancetest.Server(%s)", s.URL)
}
