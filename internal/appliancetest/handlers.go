package appliancetest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// record stores every request before it is routed.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// injectFailures answers with a forced status when one is configured.
func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			w.WriteHeader(f.status)
			w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tok == "" || !s.validToken(tok) {
			writeError(w, http.StatusUnauthorized, "AUTH_INVALID_SESSION", "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GenerateRefreshToken bool `json:"generate_refresh_token"`
		UserCredentials      struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"user_credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if !s.checkPassword(req.UserCredentials.Username, req.UserCredentials.Password) {
		writeError(w, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "invalid username or password")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"access_token": s.newToken(req.UserCredentials.Username),
		"token_type":   "bearer",
		"expires_at":   1893456000,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.swVersion
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{
		"device_name": "appliancetest",
		"model":       "SCAN-VIRTUAL",
		"sw_version":  v,
	})
}

func collectionPath(r *http.Request) string {
	return "/api/" + chi.URLParam(r, "namespace") + "/" + chi.URLParam(r, "version") + "/" + chi.URLParam(r, "resource")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items, ok := s.collections[collectionPath(r)]
	s.mu.Unlock()
	if !ok {
		items = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeleteAll bool `json:"delete_all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if !req.DeleteAll {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "only delete_all is supported")
		return
	}
	s.mu.Lock()
	s.collections[collectionPath(r)] = []json.RawMessage{}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req map[string][]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	key := bodyKey(chi.URLParam(r, "resource"))
	items, ok := req[key]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing "+key)
		return
	}
	path := collectionPath(r)
	s.mu.Lock()
	s.collections[path] = append(s.collections[path], items...)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
