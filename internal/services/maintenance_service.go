package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dfe0990ngc/pcds-student-portal/internal/models"
	"github.com/dfe0990ngc/pcds-student-portal/internal/ratelimit"
	apperrors "github.com/dfe0990ngc/pcds-student-portal/pkg/errors"
)

// MaintenanceService backs the operational cleanup endpoints.
type MaintenanceService struct {
	db      *gorm.DB
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// NewMaintenanceService wires a MaintenanceService.
func NewMaintenanceService(db *gorm.DB, limiter *ratelimit.Limiter, clock func() time.Time) (*MaintenanceService, error) {
	if db == nil {
		return nil, errors.New("maintenance service: database is required")
	}
	if limiter == nil {
		return nil, errors.New("maintenance service: rate limiter is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &MaintenanceService{db: db, limiter: limiter, now: clock}, nil
}

// ClearRateLimit drops every rate limit bucket and reports the count removed.
func (s *MaintenanceService) ClearRateLimit(ctx context.Context) (int, error) {
	count, err := s.limiter.Clear(ctx)
	if err != nil {
		return 0, apperrors.ErrInternalServer.WithInternal(err)
	}
	return count, nil
}

// ClearExpiredTokens deletes refresh token rows past their expiry and reports
// the count removed.
func (s *MaintenanceService) ClearExpiredTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("ExpiresAt <= ?", s.now()).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, apperrors.ErrInternalServer.WithInternal(result.Error)
	}
	return result.RowsAffected, nil
}
