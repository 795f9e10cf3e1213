package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"maps"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/domain"
)

const maxCodeAttempts = 5

// CodeSender delivers a one-time sign-in code.
type CodeSender func(ctx context.Context, email, code string, expiresAt time.Time) error

// LocalProviderOptions configures a LocalProvider.
type LocalProviderOptions struct {
	Tokens     *auth.TokenManager
	CodeTTL    time.Duration
	BcryptCost int
	Sender     CodeSender
}

// LocalProvider is an in-process identity provider for development and tests. It issues
// HS256 tokens that embed user metadata, so a refresh after a metadata update yields a
// token carrying the new role, as the hosted provider does.
type LocalProvider struct {
	tokens     *auth.TokenManager
	codeTTL    time.Duration
	bcryptCost int
	sender     CodeSender
	now        func() time.Time

	mu      sync.Mutex
	users   map[string]*localUser
	emails  map[string]string
	codes   map[string]pendingCode
	refresh map[string]string
	revoked map[string]time.Time
}

type localUser struct {
	id       string
	email    string
	metadata map[string]any
}

type pendingCode struct {
	hash      string
	expiresAt time.Time
	attempts  int
}

// NewLocalProvider builds an empty provider.
func NewLocalProvider(opts LocalProviderOptions) *LocalProvider {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.Sender == nil {
		opts.Sender = func(context.Context, string, string, time.Time) error { return nil }
	}
	return &LocalProvider{
		tokens:     opts.Tokens,
		codeTTL:    opts.CodeTTL,
		bcryptCost: opts.BcryptCost,
		sender:     opts.Sender,
		now:        time.Now,
		users:      make(map[string]*localUser),
		emails:     make(map[string]string),
		codes:      make(map[string]pendingCode),
		refresh:    make(map[string]string),
		revoked:    make(map[string]time.Time),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *localUser) identity() domain.IdentityUser {
	return domain.IdentityUser{ID: u.id, Email: u.email, Metadata: maps.Clone(u.metadata)}
}

// SendOneTimeCode creates the user on first use and delivers a six digit code.
func (p *LocalProvider) SendOneTimeCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email required", domain.ErrInvalidCredential)
	}

	code, err := randomCode()
	if err != nil {
		return err
	}
	hash, err := auth.HashSecret(code, p.bcryptCost)
	if err != nil {
		return err
	}
	expiresAt := p.now().Add(p.codeTTL)

	p.mu.Lock()
	if _, ok := p.emails[email]; !ok {
		id := uuid.NewString()
		p.users[id] = &localUser{id: id, email: email, metadata: map[string]any{}}
		p.emails[email] = id
	}
	p.codes[email] = pendingCode{hash: hash, expiresAt: expiresAt}
	p.mu.Unlock()

	return p.sender(ctx, email, code, expiresAt)
}

// VerifyOneTimeCode exchanges a valid code for a session. A code is single use and is
// discarded after too many wrong attempts.
func (p *LocalProvider) VerifyOneTimeCode(_ context.Context, email, code string) (*domain.Session, error) {
	email = normalizeEmail(email)

	p.mu.Lock()
	pending, ok := p.codes[email]
	if ok && !p.now().Before(pending.expiresAt) {
		delete(p.codes, email)
		ok = false
	}
	p.mu.Unlock()
	if !ok {
		return nil, domain.ErrInvalidCredential
	}

	if err := auth.CompareSecret(pending.hash, strings.TrimSpace(code)); err != nil {
		p.mu.Lock()
		if current, ok := p.codes[email]; ok && current.hash == pending.hash {
			current.attempts++
			if current.attempts >= maxCodeAttempts {
				delete(p.codes, email)
			} else {
				p.codes[email] = current
			}
		}
		p.mu.Unlock()
		return nil, domain.ErrInvalidCredential
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.codes[email]; !ok || current.hash != pending.hash {
		return nil, domain.ErrInvalidCredential
	}
	delete(p.codes, email)
	return p.issueLocked(p.users[p.emails[email]])
}

// GetUser returns the user's current record, not the token's claim snapshot.
func (p *LocalProvider) GetUser(_ context.Context, accessToken string) (*domain.IdentityUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, _, err := p.userForTokenLocked(accessToken)
	if err != nil {
		return nil, err
	}
	identity := user.identity()
	return &identity, nil
}

// UpdateUserMetadata merges data into the stored metadata.
func (p *LocalProvider) UpdateUserMetadata(_ context.Context, accessToken string, data map[string]any) (*domain.IdentityUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, _, err := p.userForTokenLocked(accessToken)
	if err != nil {
		return nil, err
	}
	maps.Copy(user.metadata, data)
	identity := user.identity()
	return &identity, nil
}

// Refresh rotates the refresh token and issues a token with current metadata.
func (p *LocalProvider) Refresh(_ context.Context, refreshToken string) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.refresh[refreshToken]
	if !ok {
		return nil, domain.ErrInvalidCredential
	}
	delete(p.refresh, refreshToken)
	user, ok := p.users[userID]
	if !ok {
		return nil, domain.ErrInvalidCredential
	}
	return p.issueLocked(user)
}

// SignOut revokes the access token and every refresh token of its user.
func (p *LocalProvider) SignOut(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, claims, err := p.userForTokenLocked(accessToken)
	if err != nil {
		return err
	}
	for token, id := range p.refresh {
		if id == user.id {
			delete(p.refresh, token)
		}
	}
	now := p.now()
	for jti, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, jti)
		}
	}
	if claims.ExpiresAt != nil {
		p.revoked[claims.ID] = claims.ExpiresAt.Time
	}
	return nil
}

func (p *LocalProvider) userForTokenLocked(accessToken string) (*localUser, *auth.Claims, error) {
	claims, err := p.tokens.ParseToken(accessToken)
	if err != nil {
		return nil, nil, domain.ErrInvalidCredential
	}
	if _, revoked := p.revoked[claims.ID]; revoked {
		return nil, nil, domain.ErrInvalidCredential
	}
	user, ok := p.users[claims.Subject]
	if !ok {
		return nil, nil, domain.ErrInvalidCredential
	}
	return user, claims, nil
}

func (p *LocalProvider) issueLocked(user *localUser) (*domain.Session, error) {
	identity := user.identity()
	accessToken, expiresAt, err := p.tokens.GenerateToken(identity)
	if err != nil {
		return nil, err
	}
	refreshToken, err := randomToken()
	if err != nil {
		return nil, err
	}
	p.refresh[refreshToken] = user.id
	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         identity,
	}, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
