package auth

import (
	"context"

	"github.com/Brunomssil/design_platform/internal/models"
)

// UserStore persists user records. Lookups return ErrUserNotFound when no
// record matches.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

// RefreshTokenStore persists refresh-token records. Records are never
// deleted, only flagged.
type RefreshTokenStore interface {
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Save(ctx context.Context, token *models.RefreshToken) error

	// MarkUsed flips is_used on the record in one conditional write. It must
	// succeed only while is_used and is_invalidated are both still false at
	// write time, and return ErrTokenConflict otherwise. Two concurrent
	// holders of the same token must never both succeed.
	MarkUsed(ctx context.Context, token string) error

	FindAllByUser(ctx context.Context, userID string) ([]models.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

type CredentialHasher interface {
	Hash(password string) (encodedHash string, salt []byte, err error)
	Verify(password, encodedHash string, salt []byte) bool
}

type TokenIssuer interface {
	IssueAccessToken(user *models.User) (string, error)
	IssueRefreshSecret() (string, error)
}
