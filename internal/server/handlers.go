package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mateit-cloudware/agent-secrets/internal/auth"
	"github.com/mateit-cloudware/agent-secrets/internal/credentials"
	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
	"github.com/mateit-cloudware/agent-secrets/internal/settings"
)

type encryptReq struct {
	Plaintext string `json:"plaintext"`
	UsePBKDF2 bool   `json:"usePbkdf2"`
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req encryptReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	env, err := s.svc.Encrypt(req.Plaintext, req.UsePBKDF2)
	if err != nil {
		s.writeCryptoError(w, err)
		return
	}
	writeJSON(w, map[string]string{"envelope": env})
}

type decryptReq struct {
	Envelope  string `json:"envelope"`
	UsePBKDF2 bool   `json:"usePbkdf2"`
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.rlDecrypt.allow(getClientIP(r)) {
		tooMany(w, 1)
		return
	}
	var req decryptReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	pt, err := s.svc.Decrypt(req.Envelope, req.UsePBKDF2)
	if err != nil {
		s.writeCryptoError(w, err)
		return
	}
	writeJSON(w, map[string]string{"plaintext": pt})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	out, err := s.svc.MigrateToV2(req.Value)
	if err != nil {
		s.writeCryptoError(w, err)
		return
	}
	s.trail.Append("migration.completed", 1)
	writeJSON(w, map[string]any{"value": out, "migrated": out != req.Value})
}

type rotateReq struct {
	Items     []crypto.RotateItem `json:"items"`
	NewSecret string              `json:"newKeySecret"`
	// RotateCredentials additionally re-encrypts the stored credential
	// corpus and persists the result.
	RotateCredentials bool `json:"rotateCredentials"`
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, _ := auth.FromContext(r.Context())
	if !s.rlRotate.allow(claims.Sub) {
		tooMany(w, 60)
		return
	}
	var req rotateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.NewSecret == "" {
		writeError(w, http.StatusBadRequest, "newKeySecret required")
		return
	}

	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()

	s.trail.Append("rotation.started", len(req.Items))
	var res crypto.RotateResult
	if req.RotateCredentials {
		var err error
		res, err = s.creds.Reencrypt(r.Context(), req.NewSecret)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else {
		res = s.svc.RotateKey(req.Items, req.NewSecret)
	}
	if res.Success {
		s.trail.Append("rotation.completed", res.ItemsProcessed)
	} else {
		s.trail.Append("rotation.partial", len(res.Errors))
	}
	s.logger.Printf("rotation: %d items, %d errors", res.ItemsProcessed, len(res.Errors))
	writeJSON(w, res)
}

func (s *Server) handleRotationHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.svc.RotationHistory())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.trail.Verify(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, s.trail.Entries())
}

// ---------- settings ----------

type settingReq struct {
	Key   string        `json:"key"`
	Type  settings.Type `json:"type"`
	Value string        `json:"value"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.settings.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, list)
	case http.MethodPost:
		var req settingReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Type == "" {
			req.Type = settings.TypeString
		}
		if err := s.settings.Set(r.Context(), req.Key, req.Type, req.Value); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"key": req.Key})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSettingByKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/settings/")
	if key == "" || strings.Contains(key, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		st, err := s.settings.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, settings.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.writeCryptoError(w, err)
			return
		}
		writeJSON(w, st)
	case http.MethodDelete:
		if err := s.settings.Delete(r.Context(), key); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---------- credentials ----------

type credentialReq struct {
	Provider string            `json:"provider"`
	Fields   map[string]string `json:"fields"`
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		providers, err := s.creds.Providers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, providers)
	case http.MethodPost:
		var req credentialReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if err := s.creds.Save(r.Context(), req.Provider, req.Fields); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"provider": req.Provider})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCredentialByProvider(w http.ResponseWriter, r *http.Request) {
	provider := strings.TrimPrefix(r.URL.Path, "/api/credentials/")
	if provider == "" || strings.Contains(provider, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		creds, err := s.creds.Load(r.Context(), provider)
		if err != nil {
			if errors.Is(err, credentials.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.writeCryptoError(w, err)
			return
		}
		// mask field values for display; consumers that need raw values
		// decrypt through the core, not through this admin surface
		masked := make(map[string]string, len(creds))
		for k, v := range creds {
			masked[k] = crypto.Mask(v, 4)
		}
		writeJSON(w, masked)
	case http.MethodDelete:
		if err := s.creds.Delete(r.Context(), provider); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// writeCryptoError maps the core's error taxonomy onto HTTP statuses
// without widening the decryption oracle: auth failures stay opaque.
func (s *Server) writeCryptoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crypto.ErrMalformedEnvelope):
		writeError(w, http.StatusBadRequest, crypto.ErrMalformedEnvelope.Error())
	case errors.Is(err, crypto.ErrAuthFailed):
		writeError(w, http.StatusUnprocessableEntity, crypto.ErrAuthFailed.Error())
	case errors.Is(err, crypto.ErrNoMasterSecret):
		writeError(w, http.StatusServiceUnavailable, crypto.ErrNoMasterSecret.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
