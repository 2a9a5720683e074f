package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mateit-cloudware/agent-secrets/internal/audit"
	"github.com/mateit-cloudware/agent-secrets/internal/auth"
	"github.com/mateit-cloudware/agent-secrets/internal/credentials"
	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
	"github.com/mateit-cloudware/agent-secrets/internal/settings"
	"github.com/mateit-cloudware/agent-secrets/internal/storage"
)

// Server exposes the encryption core and its two storage consumers over an
// authenticated admin HTTP API.
type Server struct {
	cfg    Config
	mux    *http.ServeMux
	logger *log.Logger
	signer *auth.JWTSigner

	svc      *crypto.Service
	settings *settings.Store
	creds    *credentials.Store
	trail    *audit.Log

	// rotateMu serializes rotations: the key swap must not interleave with
	// a second batch.
	rotateMu sync.Mutex

	rlDecrypt *multiLimiter
	rlRotate  *multiLimiter
}

func New(ctx context.Context, cfg Config, keys *crypto.KeyManager) (*Server, error) {
	cfg.setDefaults()

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	settingsStore, credStore, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc := crypto.NewService(keys)
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    log.New(os.Stdout, "[secretsd] ", log.LstdFlags|log.Lshortfile),
		signer:    auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL),
		svc:       svc,
		settings:  settings.NewStore(svc, settingsStore),
		creds:     credentials.NewStore(svc, credStore),
		trail:     audit.New(),
		rlDecrypt: newMultiLimiter(rate.Limit(50), 100, 10*time.Minute),
		rlRotate:  newMultiLimiter(rate.Limit(0.1), 1, time.Hour),
	}
	s.routes()
	return s, nil
}

func buildStores(ctx context.Context, cfg Config) (storage.ValueStore, storage.ValueStore, error) {
	if cfg.MongoURI == "" {
		return storage.NewFileValueStore(filepath.Join(cfg.DataDir, "settings")),
			storage.NewFileValueStore(filepath.Join(cfg.DataDir, "credentials")), nil
	}
	settingsStore, err := storage.NewMongoValueStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.SettingsColl)
	if err != nil {
		return nil, nil, err
	}
	credStore, err := storage.NewMongoValueStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.CredentialsColl)
	if err != nil {
		return nil, nil, err
	}
	return settingsStore, credStore, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

// Signer is exposed so the daemon can mint a bootstrap admin token at boot.
func (s *Server) Signer() *auth.JWTSigner { return s.signer }

func (s *Server) ListenAndServe() error {
	s.logger.Printf("listening on %s", s.cfg.ListenAddr)
	return http.ListenAndServe(s.cfg.ListenAddr, s.mux)
}
