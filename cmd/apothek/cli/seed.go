// Package cli holds operational helpers reachable from the apothek
// binary without starting the HTTP server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/apothek-io/apothek/internal/authz"
)

// SeedSuperAdmin creates the platform operator account when no
// super_admin exists yet. Safe to run repeatedly.
func SeedSuperAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return errors.New("seed: email and password required")
	}

	var count int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM users WHERE role = $1", authz.RoleSuperAdmin).Scan(&count); err != nil {
		return fmt.Errorf("seed: count super admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed: hash password: %w", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (email, name, role, password_hash, is_manager, is_active)
		VALUES ($1, 'Platform Operator', $2, $3, FALSE, TRUE)`,
		email, authz.RoleSuperAdmin, string(hash))
	if err != nil {
		return fmt.Errorf("seed: insert super admin: %w", err)
	}
	return nil
}
