package main

import (
	"context"
	"log"

	"github.com/mateit-cloudware/agent-secrets/internal/auth"
	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
	"github.com/mateit-cloudware/agent-secrets/internal/platform"
	"github.com/mateit-cloudware/agent-secrets/internal/server"
)

func main() {
	if err := platform.DisableCoreDumps(); err != nil {
		log.Printf("secretsd: disable core dumps: %v", err)
	}

	cfg := server.ConfigFromEnv()

	keys, err := crypto.NewKeyManagerFromEnv(cfg.SecretSources...)
	if err != nil {
		log.Fatalf("secretsd: %v (set one of %v)", err, crypto.DefaultSecretSources)
	}

	srv, err := server.New(context.Background(), cfg, keys)
	if err != nil {
		log.Fatalf("secretsd: %v", err)
	}

	// Signing keys are generated per process, so mint a bootstrap admin
	// token at boot; services exchange it for scoped tokens out of band.
	tok, exp, err := srv.Signer().IssueToken("bootstrap", []auth.Role{auth.RoleAdmin, auth.RoleService})
	if err != nil {
		log.Fatalf("secretsd: issue bootstrap token: %v", err)
	}
	log.Printf("bootstrap admin token (expires %s): %s", exp.Format("15:04:05"), tok)

	log.Fatal(srv.ListenAndServe())
}
