// Package auth dispatches sign-in requests to per-provider collaborators
// and normalizes their results.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/wizmarket/wizapp/internal/credentials"
	"github.com/wizmarket/wizapp/internal/platform"
)

const (
	CodeMissingCredential   = "missing_credential"
	CodeNoIDToken           = "no_id_token"
	CodeUnsupportedProvider = "unsupported_provider"
	CodeCancelled           = "cancelled"
	CodeUnknown             = "unknown_error"
	CodeSignoutFailed       = "signout_error"

	SessionTTL = 6 * time.Hour
)

var (
	ErrUnsupportedProvider = errors.New("auth: unsupported provider")
	ErrNoIDToken           = errors.New("auth: provider returned no id token")
	ErrMissingCredential   = errors.New("auth: provider returned no credential")
)

type User struct {
	UID         string `json:"uid,omitempty"`
	ProviderID  string `json:"provider_id,omitempty"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Result is the SIGNIN_RESULT payload.
type Result struct {
	Success      bool    `json:"success"`
	Cancelled    bool    `json:"cancelled,omitempty"`
	Provider     string  `json:"provider"`
	User         *User   `json:"user,omitempty"`
	Tokens       *Tokens `json:"tokens,omitempty"`
	ExpiresAt    int64   `json:"expires_at,omitempty"`
	ErrorCode    string  `json:"error_code,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

type SignoutResult struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Variant is one sign-in provider: its collaborator plus the rule that
// turns the collaborator's identity into the web-facing profile.
type Variant struct {
	Collaborator platform.AuthProvider
	Normalize    func(platform.Identity) (User, *Tokens, error)
}

// Google signs in through a Firebase credential built from the id token, so
// a missing id token is fatal.
func Google(c platform.AuthProvider) Variant {
	return Variant{Collaborator: c, Normalize: func(id platform.Identity) (User, *Tokens, error) {
		if id.IDToken == "" {
			return User{}, nil, ErrNoIDToken
		}
		return User{
			UID:         id.UID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			PhotoURL:    id.PhotoURL,
		}, nil, nil
	}}
}

// OAuth covers providers that hand back their own access/refresh tokens
// (kakao, naver).
func OAuth(c platform.AuthProvider) Variant {
	return Variant{Collaborator: c, Normalize: func(id platform.Identity) (User, *Tokens, error) {
		if id.AccessToken == "" {
			return User{}, nil, ErrMissingCredential
		}
		providerID := id.ProviderID
		if providerID == "" {
			providerID = id.UID
		}
		user := User{
			ProviderID:  providerID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			PhotoURL:    id.PhotoURL,
		}
		return user, &Tokens{AccessToken: id.AccessToken, RefreshToken: id.RefreshToken}, nil
	}}
}

type Service struct {
	variants map[string]Variant
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(variants map[string]Variant, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	vs := make(map[string]Variant, len(variants))
	for name, v := range variants {
		if v.Collaborator == nil {
			continue
		}
		vs[strings.ToLower(name)] = v
	}
	return &Service{variants: vs, now: time.Now, logger: logger}
}

func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.variants))
	for name := range s.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SignIn always resolves to a Result, successful or not.
func (s *Service) SignIn(ctx context.Context, provider string, payload []byte) Result {
	provider = strings.ToLower(strings.TrimSpace(provider))
	res := Result{Provider: provider}

	v, ok := s.variants[provider]
	if !ok {
		return s.failure(res, ErrUnsupportedProvider)
	}

	id, err := v.Collaborator.SignIn(ctx, payload)
	if err != nil {
		return s.failure(res, err)
	}
	user, tokens, err := v.Normalize(id)
	if err != nil {
		return s.failure(res, err)
	}

	expires := s.now().Add(SessionTTL).UnixMilli()
	if err := credentials.StoreSession(provider, credentials.Tokens{
		IDToken:      id.IDToken,
		AccessToken:  id.AccessToken,
		RefreshToken: id.RefreshToken,
		ExpiresAt:    expires,
	}); err != nil {
		s.logger.Warn("failed to store sign-in tokens", "provider", provider, "err", err)
	}

	s.logger.Info("signed in", "provider", provider)
	res.Success = true
	res.User = &user
	res.Tokens = tokens
	res.ExpiresAt = expires
	return res
}

// SignOut signs out of the provider of the stored session, or of every
// provider when none is recorded.
func (s *Service) SignOut(ctx context.Context) SignoutResult {
	targets := s.Providers()
	if current := credentials.ClearSession(); current != "" {
		if _, ok := s.variants[current]; ok {
			targets = []string{current}
		}
	}

	var errs []error
	for _, name := range targets {
		err := s.variants[name].Collaborator.SignOut(ctx)
		if err != nil && !errors.Is(err, platform.ErrNotSupported) {
			s.logger.Warn("sign-out failed", "provider", name, "err", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return SignoutResult{ErrorCode: CodeSignoutFailed, Message: platform.Message(err)}
	}
	s.logger.Info("signed out", "providers", targets)
	return SignoutResult{Success: true}
}

func (s *Service) failure(res Result, err error) Result {
	res.ErrorCode = Classify(err)
	res.ErrorMessage = platform.Message(err)
	if res.ErrorCode == CodeCancelled {
		res.Cancelled = true
		s.logger.Info("sign-in cancelled", "provider", res.Provider)
	} else {
		s.logger.Warn("sign-in failed", "provider", res.Provider, "code", res.ErrorCode, "err", err)
	}
	return res
}

// Classify maps a sign-in error onto the reported error code. Codes the
// collaborator attached win over the fixed taxonomy.
func Classify(err error) string {
	switch {
	case platform.IsCancelled(err):
		return CodeCancelled
	case platform.CodeOf(err) != "":
		return platform.CodeOf(err)
	case errors.Is(err, ErrNoIDToken):
		return CodeNoIDToken
	case errors.Is(err, ErrMissingCredential):
		return CodeMissingCredential
	case errors.Is(err, ErrUnsupportedProvider), errors.Is(err, platform.ErrNotSupported):
		return CodeUnsupportedProvider
	}
	return CodeUnknown
}
