package server

import (
	"net/http"

	"github.com/mateit-cloudware/agent-secrets/internal/auth"
)

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	protected := auth.Required(s.signer)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	s.mux.Handle("/api/encrypt", protected(http.HandlerFunc(s.handleEncrypt)))
	s.mux.Handle("/api/decrypt", protected(http.HandlerFunc(s.handleDecrypt)))
	s.mux.Handle("/api/migrate", protected(adminOnly(http.HandlerFunc(s.handleMigrate))))
	s.mux.Handle("/api/rotate", protected(adminOnly(http.HandlerFunc(s.handleRotate))))
	s.mux.Handle("/api/rotation-history", protected(http.HandlerFunc(s.handleRotationHistory)))
	s.mux.Handle("/api/audit", protected(http.HandlerFunc(s.handleAudit)))

	s.mux.Handle("/api/settings", protected(http.HandlerFunc(s.handleSettings)))
	s.mux.Handle("/api/settings/", protected(http.HandlerFunc(s.handleSettingByKey)))
	s.mux.Handle("/api/credentials", protected(http.HandlerFunc(s.handleCredentials)))
	s.mux.Handle("/api/credentials/", protected(http.HandlerFunc(s.handleCredentialByProvider)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
