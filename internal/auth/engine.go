package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Brunomssil/design_platform/internal/models"
)

const (
	RefreshTokenTTL = 7 * 24 * time.Hour

	DefaultRole = "User"
)

// Engine orchestrates registration, login and refresh-token rotation. All
// durable state lives behind the injected stores, the engine itself holds
// nothing mutable.
type Engine struct {
	users  UserStore
	tokens RefreshTokenStore
	hasher CredentialHasher
	issuer TokenIssuer
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func NewEngine(users UserStore, tokens RefreshTokenStore, hasher CredentialHasher, issuer TokenIssuer) *Engine {
	return &Engine{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		issuer: issuer,
	}
}

func (e *Engine) Register(ctx context.Context, email, password string) (*models.User, error) {
	_, err := e.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, storageErr(err)
	}

	encodedHash, salt, err := e.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: encodedHash,
		PasswordSalt: salt,
		Roles:        []string{DefaultRole},
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.users.Save(ctx, user); err != nil {
		return nil, storageErr(err)
	}
	return user, nil
}

// Login verifies the credentials and issues a fresh token pair. Unknown
// email and wrong password collapse to the same error so the caller cannot
// enumerate accounts.
func (e *Engine) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if !e.hasher.Verify(password, user.PasswordHash, user.PasswordSalt) {
		return nil, ErrInvalidCredentials
	}

	return e.generatePair(ctx, user)
}

// Refresh redeems a refresh token for a new pair. A token may be redeemed
// at most once: redeeming an already used or invalidated token is treated
// as evidence of theft and revokes every token the owner holds before the
// error surfaces. The presented access token carries no authority here, the
// refresh token alone decides.
func (e *Engine) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	stored, err := e.tokens.FindByToken(ctx, refreshToken)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidOrExpiredToken
	}

	if stored.IsUsed || stored.IsInvalidated {
		return nil, e.respondToReuse(ctx, stored.UserID)
	}

	if err := e.tokens.MarkUsed(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrTokenConflict) {
			// Lost the conditional write to a concurrent redemption of the
			// same token. Same signal as a replay.
			return nil, e.respondToReuse(ctx, stored.UserID)
		}
		return nil, storageErr(err)
	}

	user, err := e.users.FindByID(ctx, stored.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}

	return e.generatePair(ctx, user)
}

// RevokeAll invalidates every refresh token the user holds. Used by logout
// and by the reuse response.
func (e *Engine) RevokeAll(ctx context.Context, userID string) error {
	if err := e.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return storageErr(err)
	}
	return nil
}

// respondToReuse runs the leak response. The revocation must complete
// before ErrTokenReuseDetected is returned, failing open here would leave
// the stolen session usable.
func (e *Engine) respondToReuse(ctx context.Context, userID string) error {
	if err := e.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return storageErr(err)
	}
	return ErrTokenReuseDetected
}

// generatePair issues the access token and refresh secret, then durably
// records the refresh token before handing it out. A token the store has
// never seen must not reach a client.
func (e *Engine) generatePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := e.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	secret, err := e.issuer.IssueRefreshSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.RefreshToken{
		Token:     secret,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}

	if err := e.tokens.Save(ctx, record); err != nil {
		return nil, storageErr(err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: secret}, nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
