package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Brunomssil/design_platform/internal/auth"
	"github.com/Brunomssil/design_platform/internal/models"
)

type RefreshTokenRepo struct {
	DB *gorm.DB
}

func (r *RefreshTokenRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &stored, nil
}

func (r *RefreshTokenRepo) Save(ctx context.Context, token *models.RefreshToken) error {
	if err := r.DB.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// MarkUsed is a conditional update, not a blind overwrite: the WHERE clause
// guards on both flags still being false, so of two concurrent redemptions
// of the same token only one can see a row affected.
func (r *RefreshTokenRepo) MarkUsed(ctx context.Context, token string) error {
	result := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND is_used = ? AND is_invalidated = ?", token, false, false).
		Update("is_used", true)
	if result.Error != nil {
		return fmt.Errorf("db error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return auth.ErrTokenConflict
	}
	return nil
}

func (r *RefreshTokenRepo) FindAllByUser(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	var out []models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	err := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Update("is_invalidated", true).Error
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
