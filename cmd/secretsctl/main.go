package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
)

func main() {
	// ---- encrypt ----
	encCmd := flag.NewFlagSet("encrypt", flag.ExitOnError)
	encValue := encCmd.String("value", "", "plaintext to encrypt")
	encPBKDF2 := encCmd.Bool("pbkdf2", false, "use password-based key derivation")

	// ---- decrypt ----
	decCmd := flag.NewFlagSet("decrypt", flag.ExitOnError)
	decValue := decCmd.String("value", "", "envelope to decrypt")
	decPBKDF2 := decCmd.Bool("pbkdf2", false, "use password-based key derivation")

	// ---- migrate ----
	migCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migValue := migCmd.String("value", "", "stored value to migrate to the current format")

	// ---- rotate ----
	rotCmd := flag.NewFlagSet("rotate", flag.ExitOnError)
	rotIn := rotCmd.String("in", "", "JSON file of [{id, encryptedData}] items")
	rotOut := rotCmd.String("out", "", "output file for re-encrypted items (default stdout)")
	rotSecret := rotCmd.String("new-secret", "", "new master secret")

	// ---- token / uuid / genkey ----
	tokCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokBytes := tokCmd.Int("bytes", 32, "token length in bytes")

	// ---- mask ----
	maskCmd := flag.NewFlagSet("mask", flag.ExitOnError)
	maskValue := maskCmd.String("value", "", "secret to mask for display")
	maskTail := maskCmd.Int("tail", 4, "visible tail characters")

	// ---- hash ----
	hashCmd := flag.NewFlagSet("hash", flag.ExitOnError)
	hashValue := hashCmd.String("value", "", "value to hash")
	hashAlgo := hashCmd.String("algo", "sha256", "sha256, sha512 or hmac")

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "encrypt":
		_ = encCmd.Parse(os.Args[2:])
		svc := mustService()
		out, err := svc.Encrypt(*encValue, *encPBKDF2)
		dieIf(err)
		fmt.Println(out)

	case "decrypt":
		_ = decCmd.Parse(os.Args[2:])
		svc := mustService()
		out, err := svc.Decrypt(*decValue, *decPBKDF2)
		dieIf(err)
		fmt.Println(out)

	case "migrate":
		_ = migCmd.Parse(os.Args[2:])
		svc := mustService()
		out, err := svc.MigrateToV2(*migValue)
		dieIf(err)
		fmt.Println(out)

	case "rotate":
		_ = rotCmd.Parse(os.Args[2:])
		dieIf(cmdRotate(*rotIn, *rotOut, *rotSecret))

	case "token":
		_ = tokCmd.Parse(os.Args[2:])
		tok, err := crypto.SecureToken(*tokBytes)
		dieIf(err)
		fmt.Println(tok)

	case "uuid":
		fmt.Println(crypto.NewUUID())

	case "genkey":
		key, err := crypto.GenerateKey()
		dieIf(err)
		fmt.Println(key)

	case "mask":
		_ = maskCmd.Parse(os.Args[2:])
		fmt.Println(crypto.Mask(*maskValue, *maskTail))

	case "hash":
		_ = hashCmd.Parse(os.Args[2:])
		switch *hashAlgo {
		case "sha256":
			fmt.Println(crypto.SHA256Hex(*hashValue))
		case "sha512":
			fmt.Println(crypto.SHA512Hex(*hashValue))
		case "hmac":
			svc := mustService()
			out, err := svc.HMACHex(*hashValue)
			dieIf(err)
			fmt.Println(out)
		default:
			dieIf(fmt.Errorf("unknown algo: %s", *hashAlgo))
		}

	default:
		usage()
	}
}

func usage() {
	fmt.Print(`secretsctl commands:

  encrypt --value <plaintext> [--pbkdf2]
  decrypt --value <envelope> [--pbkdf2]
  migrate --value <stored value>
  rotate  --in items.json --new-secret <secret> [--out rotated.json]
  token   [--bytes 32]
  uuid
  genkey
  mask    --value <secret> [--tail 4]
  hash    --value <data> [--algo sha256|sha512|hmac]

The master secret is read from the environment (ENCRYPTION_MASTER_KEY,
SECRETS_ENCRYPTION_KEY or APP_SECRET_KEY, in that order).

Examples:
  secretsctl encrypt --value sk-live-abc --pbkdf2
  secretsctl rotate --in items.json --new-secret "$(secretsctl genkey)"
`)
}

func mustService() *crypto.Service {
	keys, err := crypto.NewKeyManagerFromEnv()
	dieIf(err)
	return crypto.NewService(keys)
}

func cmdRotate(inPath, outPath, newSecret string) error {
	if inPath == "" {
		return fmt.Errorf("--in required")
	}
	if newSecret == "" {
		return fmt.Errorf("--new-secret required")
	}
	b, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	var items []crypto.RotateItem
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}

	svc := mustService()
	res := svc.RotateKey(items, newSecret)

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if outPath == "" {
		fmt.Println(string(out))
	} else {
		if err := os.WriteFile(outPath, out, 0600); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "rotated %d items, %d errors\n", res.ItemsProcessed, len(res.Errors))
	if !res.Success {
		return fmt.Errorf("rotation completed with errors")
	}
	return nil
}

func dieIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
