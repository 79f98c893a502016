package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"payos.backend/internal/config"
	"payos.backend/pkg/jwt"
)

func testDeps(out *bytes.Buffer, secret string) adminTokenDeps {
	return adminTokenDeps{
		loadEnv: func() error { return errors.New("no .env") },
		loadCfg: func() *config.Config {
			return &config.Config{JWT: config.JWTConfig{Secret: secret, Issuer: "payos", Expiry: time.Hour}}
		},
		out: out,
	}
}

func TestParseOperator(t *testing.T) {
	if _, err := parseOperator("  "); err == nil {
		t.Fatal("expected error for empty operator")
	}
	got, err := parseOperator(" ops@payos.dev ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ops@payos.dev" {
		t.Fatalf("expected trimmed operator got %q", got)
	}
}

func TestRunAdminToken_IssuesVerifiableToken(t *testing.T) {
	var out bytes.Buffer
	if err := runAdminToken([]string{"-operator", "ops@payos.dev", "-expiry", "10m"}, testDeps(&out, "secret")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var token string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "ADMIN_TOKEN=") {
			token = strings.TrimPrefix(line, "ADMIN_TOKEN=")
		}
	}
	if token == "" {
		t.Fatalf("token not printed: %s", out.String())
	}
	if !strings.Contains(out.String(), "expires_in=10m0s") {
		t.Fatalf("expected expiry override in output: %s", out.String())
	}

	claims, err := jwt.NewJWTService("secret", "payos", time.Hour).ValidateToken(token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if claims.Subject != "ops@payos.dev" || claims.Role != jwt.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRunAdminToken_IssuesTenantToken(t *testing.T) {
	var out bytes.Buffer
	if err := runAdminToken([]string{"-tenant", " tenant-1 "}, testDeps(&out, "secret")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Issued TENANT token") || !strings.Contains(out.String(), "tenant=tenant-1") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	var token string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "TENANT_TOKEN=") {
			token = strings.TrimPrefix(line, "TENANT_TOKEN=")
		}
	}
	claims, err := jwt.NewJWTService("secret", "payos", time.Hour).ValidateToken(token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if claims.Subject != "tenant-1" || claims.Role != jwt.RoleTenant {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if err := runAdminToken([]string{"-tenant", "tenant-1", "-operator", "ops"}, testDeps(&out, "secret")); err == nil {
		t.Fatal("expected error when both operator and tenant are set")
	}
}

func TestRunAdminToken_Errors(t *testing.T) {
	var out bytes.Buffer
	if err := runAdminToken(nil, testDeps(&out, "secret")); err == nil {
		t.Fatal("expected error when operator is missing")
	}
	if err := runAdminToken([]string{"-operator", "ops", "-expiry", "-1m"}, testDeps(&out, "secret")); err == nil {
		t.Fatal("expected error for negative expiry")
	}
	if err := runAdminToken([]string{"-operator", "ops"}, testDeps(&out, "")); err == nil {
		t.Fatal("expected error when secret is missing")
	}
	if err := runAdminToken([]string{"-unknown"}, testDeps(&out, "secret")); err == nil {
		t.Fatal("expected flag parse error")
	}
}

func TestMain_ExitsWhenOperatorMissing(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_ADMIN_TOKEN") == "1" {
		os.Args = []string{"admin-token"}
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMain_ExitsWhenOperatorMissing")
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_ADMIN_TOKEN=1")
	if err := cmd.Run(); err == nil {
		t.Fatal("expected helper process to fail when --operator is missing")
	}
}
