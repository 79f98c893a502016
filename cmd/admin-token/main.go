package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"payos.backend/internal/config"
	"payos.backend/pkg/jwt"
)

type adminTokenDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	out     io.Writer
}

func defaultAdminTokenDeps() adminTokenDeps {
	return adminTokenDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		out:     os.Stdout,
	}
}

func parseOperator(operator string) (string, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", fmt.Errorf("--operator is required")
	}
	return operator, nil
}

func runAdminToken(args []string, deps adminTokenDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	fs := flag.NewFlagSet("admin-token", flag.ContinueOnError)
	operatorFlag := fs.String("operator", "", "operator identity embedded as the token subject")
	tenantFlag := fs.String("tenant", "", "issue a TENANT token for this tenant instead of an ADMIN token")
	expiryFlag := fs.Duration("expiry", 0, "token lifetime (defaults to JWT_EXPIRY)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tenant := strings.TrimSpace(*tenantFlag)
	if tenant != "" && strings.TrimSpace(*operatorFlag) != "" {
		return fmt.Errorf("--operator and --tenant are mutually exclusive")
	}
	role, subject := jwt.RoleTenant, tenant
	if tenant == "" {
		operator, err := parseOperator(*operatorFlag)
		if err != nil {
			return err
		}
		role, subject = jwt.RoleAdmin, operator
	}
	if *expiryFlag < 0 {
		return fmt.Errorf("--expiry must not be negative")
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := deps.loadCfg()
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is not configured")
	}
	expiry := cfg.JWT.Expiry
	if *expiryFlag > 0 {
		expiry = *expiryFlag
	}

	token, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, expiry).GenerateToken(subject, role)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	_, _ = fmt.Fprintf(deps.out, "Issued %s token\n", role)
	if role == jwt.RoleTenant {
		_, _ = fmt.Fprintf(deps.out, "tenant=%s\n", subject)
	} else {
		_, _ = fmt.Fprintf(deps.out, "operator=%s\n", subject)
	}
	_, _ = fmt.Fprintf(deps.out, "expires_in=%s\n", expiry.Round(time.Second))
	_, _ = fmt.Fprintf(deps.out, "%s_TOKEN=%s\n", role, token)
	return nil
}

func main() {
	if err := runAdminToken(os.Args[1:], defaultAdminTokenDeps()); err != nil {
		log.Fatal(err)
	}
}
