package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"payos.backend/internal/config"
	"payos.backend/internal/domain/entities"
	domainproviders "payos.backend/internal/domain/providers"
	"payos.backend/internal/infrastructure/datasources/postgres"
	"payos.backend/internal/infrastructure/providers"
	"payos.backend/internal/infrastructure/repositories"
	"payos.backend/pkg/crypto"
	"payos.backend/pkg/utils"
)

const masterKeyBytes = 32

type credentialStore interface {
	Upsert(ctx context.Context, cred *entities.ProviderCredential) error
}

type sealDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(cfg *config.Config) (credentialStore, io.Closer, error)
	in      io.Reader
	out     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultSealDeps() sealDeps {
	return sealDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(cfg *config.Config) (credentialStore, io.Closer, error) {
			sqlDB, err := postgres.NewConnection(cfg.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect db: %w", err)
			}
			db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{})
			if err != nil {
				_ = sqlDB.Close()
				return nil, nil, fmt.Errorf("failed to init gorm: %w", err)
			}
			return repositories.NewCredentialRepository(db), sqlDB, nil
		},
		in:  os.Stdin,
		out: os.Stdout,
	}
}

// validateCredentials checks the payload decodes into the provider's
// credential shape before it is encrypted.
func validateCredentials(handlerType string, payload []byte) error {
	switch handlerType {
	case domainproviders.FamilyStripe:
		var creds providers.StripeCredentials
		if err := json.Unmarshal(payload, &creds); err != nil {
			return fmt.Errorf("invalid stripe credentials: %w", err)
		}
		if strings.TrimSpace(creds.SecretKey) == "" {
			return fmt.Errorf("stripe credentials require secretKey")
		}
	case domainproviders.FamilyCircle:
		var creds providers.CircleCredentials
		if err := json.Unmarshal(payload, &creds); err != nil {
			return fmt.Errorf("invalid circle credentials: %w", err)
		}
		if strings.TrimSpace(creds.APIKey) == "" {
			return fmt.Errorf("circle credentials require apiKey")
		}
	default:
		return fmt.Errorf("unsupported handler type %q (allowed: %s, %s)", handlerType, domainproviders.FamilyStripe, domainproviders.FamilyCircle)
	}
	return nil
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func runSeal(args []string, deps sealDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.prepare == nil {
		deps.prepare = defaultSealDeps().prepare
	}
	if deps.in == nil {
		deps.in = os.Stdin
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	fs := flag.NewFlagSet("credential-seal", flag.ContinueOnError)
	genKey := fs.Bool("generate-master-key", false, "print a new CREDENTIAL_MASTER_KEY and exit")
	tenantFlag := fs.String("tenant", "", "tenant id (required)")
	typeFlag := fs.String("type", "", "provider family: stripe or circle (required)")
	fileFlag := fs.String("file", "-", "credential JSON file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *genKey {
		key, err := crypto.GenerateRandomToken(masterKeyBytes)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(deps.out, "CREDENTIAL_MASTER_KEY=%s\n", key)
		return nil
	}

	tenantID := strings.TrimSpace(*tenantFlag)
	if tenantID == "" {
		return fmt.Errorf("--tenant is required")
	}
	handlerType := strings.ToLower(strings.TrimSpace(*typeFlag))

	payload, err := readPayload(*fileFlag, deps.in)
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := validateCredentials(handlerType, payload); err != nil {
		return err
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := deps.loadCfg()

	cipher, err := crypto.NewCredentialCipher(cfg.Security.CredentialMasterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}
	ciphertext, err := cipher.Encrypt(tenantID, handlerType, payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	store, closer, err := deps.prepare(cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	cred := &entities.ProviderCredential{
		ID:          utils.GenerateUUIDv7().String(),
		TenantID:    tenantID,
		HandlerType: handlerType,
		Ciphertext:  ciphertext,
	}
	if err := store.Upsert(context.Background(), cred); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	_, _ = fmt.Fprintln(deps.out, "Stored encrypted credentials")
	_, _ = fmt.Fprintf(deps.out, "tenant_id=%s\n", tenantID)
	_, _ = fmt.Fprintf(deps.out, "handler_type=%s\n", handlerType)
	return nil
}

func main() {
	if err := runSeal(os.Args[1:], defaultSealDeps()); err != nil {
		log.Fatal(err)
	}
}
