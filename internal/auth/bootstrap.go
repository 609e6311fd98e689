package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/sales-erp-service/internal/config"
	"github.com/spec-kit/sales-erp-service/internal/domain"
	"github.com/spec-kit/sales-erp-service/internal/repository"
)

// EnsureAdminUser seeds the administrative account once at startup. The
// check-then-create is idempotent across restarts; the configured password
// is hashed before it leaves this function and is never logged.
func EnsureAdminUser(ctx context.Context, users repository.UserRepository, hasher *PasswordHasher, cfg config.AdminConfig, logger *zap.Logger) error {
	exists, err := users.ExistsByEmail(ctx, cfg.Email)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if exists {
		logger.Info("admin user present", zap.String("email", cfg.Email))
		return nil
	}

	hash, err := hasher.Hash(cfg.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &domain.User{
		FullName:       cfg.FullName,
		Email:          cfg.Email,
		PasswordHash:   hash,
		Role:           domain.RoleAdmin,
		TeamAllocation: "Administration",
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logger.Info("admin user created", zap.String("email", cfg.Email))
	return nil
}
