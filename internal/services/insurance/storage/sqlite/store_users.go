package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/storage"
)

// PutUser inserts or replaces one user record.
func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	userID := strings.TrimSpace(user.ID)
	name := strings.TrimSpace(user.Name)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if name == "" {
		return fmt.Errorf("user name is required")
	}
	if user.Role == 0 {
		user.Role = domain.RoleMember
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, name, role, credential)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
  name = excluded.name,
  role = excluded.role,
  credential = excluded.credential`,
		userID, name, int(user.Role), user.Credential); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser returns one user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	if err := s.ready(); err != nil {
		return domain.User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, role, credential
FROM users
WHERE id = ?`, userID)
	var user domain.User
	var role int
	if err := row.Scan(&user.ID, &user.Name, &role, &user.Credential); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, storage.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	user.Role = domain.Role(role)
	return user, nil
}

// OperatorCredential resolves the feed credential for reconciliation: the
// canonical administrator's credential when present, else any
// administrator's. The credential is never logged by callers.
func (s *Store) OperatorCredential(ctx context.Context, canonicalUserID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ready(); err != nil {
		return "", err
	}

	canonicalUserID = strings.TrimSpace(canonicalUserID)
	if canonicalUserID != "" {
		row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential FROM users
WHERE id = ? AND role = ? AND credential != ''`,
			canonicalUserID, int(domain.RoleAdmin))
		var credential string
		err := row.Scan(&credential)
		if err == nil {
			return credential, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("get operator credential: %w", err)
		}
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential FROM users
WHERE role = ? AND credential != ''
ORDER BY rowid ASC
LIMIT 1`, int(domain.RoleAdmin))
	var credential string
	if err := row.Scan(&credential); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get operator credential: %w", err)
	}
	return credential, nil
}
