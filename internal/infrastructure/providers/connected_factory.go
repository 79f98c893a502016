// Package providers adapts external payment, custody and payout providers to
// the contracts in internal/domain/providers.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	domainerrors "payos.backend/internal/domain/errors"
	domain "payos.backend/internal/domain/providers"
	"payos.backend/internal/domain/repositories"
	"payos.backend/pkg/crypto"
	"payos.backend/pkg/logger"
)

var beforeClientWriteLockHook = func(string) {}

type cachedClient struct {
	version int
	client  domain.ConnectedClient
}

// ConnectedClientFactory builds and caches per-tenant provider clients from
// encrypted stored credentials. A credential rotation bumps the row version,
// which invalidates the cached client on next use.
type ConnectedClientFactory struct {
	credentials    repositories.CredentialRepository
	cipher         *crypto.CredentialCipher
	httpClient     *http.Client
	stripeBackends *stripe.Backends

	mu      sync.RWMutex
	clients map[string]cachedClient
}

// NewConnectedClientFactory creates a factory. httpClient and stripeBackends
// may be nil to use the live endpoints.
func NewConnectedClientFactory(credentials repositories.CredentialRepository, cipher *crypto.CredentialCipher, httpClient *http.Client, stripeBackends *stripe.Backends) *ConnectedClientFactory {
	return &ConnectedClientFactory{
		credentials:    credentials,
		cipher:         cipher,
		httpClient:     httpClient,
		stripeBackends: stripeBackends,
		clients:        make(map[string]cachedClient),
	}
}

func cacheKey(tenantID, handlerType string) string {
	return tenantID + "|" + handlerType
}

// Client returns the tenant's client for handlerType. It returns
// domain.ErrNoCredentials when the tenant has not connected an account.
func (f *ConnectedClientFactory) Client(ctx context.Context, tenantID, handlerType string) (domain.ConnectedClient, error) {
	handlerType = strings.ToLower(strings.TrimSpace(handlerType))
	cred, err := f.credentials.GetByTenantAndType(ctx, tenantID, handlerType)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domain.ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	key := cacheKey(tenantID, handlerType)
	f.mu.RLock()
	cached, ok := f.clients[key]
	f.mu.RUnlock()
	if ok && cached.version == cred.Version {
		return cached.client, nil
	}

	beforeClientWriteLockHook(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double check
	if cached, ok := f.clients[key]; ok && cached.version == cred.Version {
		return cached.client, nil
	}

	plain, err := f.cipher.Decrypt(tenantID, handlerType, cred.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	client, err := f.build(handlerType, plain)
	if err != nil {
		return nil, err
	}

	f.clients[key] = cachedClient{version: cred.Version, client: client}
	logger.Info(ctx, "Connected account client created",
		zap.String("tenant_id", tenantID),
		zap.String("handler_type", handlerType),
		zap.Int("credential_version", cred.Version),
	)
	return client, nil
}

func (f *ConnectedClientFactory) build(handlerType string, plain []byte) (domain.ConnectedClient, error) {
	switch handlerType {
	case domain.FamilyStripe:
		var creds StripeCredentials
		if err := json.Unmarshal(plain, &creds); err != nil {
			return nil, fmt.Errorf("invalid stripe credentials: %w", err)
		}
		return NewStripeClient(creds, f.stripeBackends)
	case domain.FamilyCircle:
		var creds CircleCredentials
		if err := json.Unmarshal(plain, &creds); err != nil {
			return nil, fmt.Errorf("invalid circle credentials: %w", err)
		}
		return NewCircleClient(creds, f.httpClient)
	}
	return nil, fmt.Errorf("unsupported connected handler type %q", handlerType)
}
