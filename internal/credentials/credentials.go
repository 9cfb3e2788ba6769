package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	serviceName    = "wizapp"
	keyCurrent     = "app:current_provider"
	keyTokenSuffix = ":tokens"
)

var ErrNotFound = errors.New("credentials: not found")

// Tokens is the token material a sign-in provider hands back.
type Tokens struct {
	IDToken      string `json:"id_token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// StoreSession saves the provider's tokens and marks it as the signed-in
// provider.
func StoreSession(provider string, tokens Tokens) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	if err := keyring.Set(serviceName, provider+keyTokenSuffix, string(raw)); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	if err := keyring.Set(serviceName, keyCurrent, provider); err != nil {
		return fmt.Errorf("store current provider: %w", err)
	}
	return nil
}

// CurrentProvider returns the provider of the last successful sign-in.
func CurrentProvider() (string, error) {
	val, err := keyring.Get(serviceName, keyCurrent)
	if err != nil {
		return "", ErrNotFound
	}
	return val, nil
}

// ClearSession forgets the signed-in provider and its tokens. It returns
// the provider that was cleared, or "" if nobody was signed in.
func ClearSession() string {
	provider, err := CurrentProvider()
	if err != nil {
		return ""
	}
	_ = keyring.Delete(serviceName, provider+keyTokenSuffix)
	_ = keyring.Delete(serviceName, keyCurrent)
	return provider
}

func StoreAppSecret(key string, value string) error {
	return keyring.Set(serviceName, "app:"+key, value)
}

func LoadAppSecret(key string) (string, error) {
	val, err := keyring.Get(serviceName, "app:"+key)
	if err != nil {
		return "", ErrNotFound
	}
	return val, nil
}
