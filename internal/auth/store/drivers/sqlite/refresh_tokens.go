package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/carelinkhq/carelink/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device_id, expires_at, revoked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.DeviceID,
		t.ExpiresAt.UTC(),
		mapOptionalTime(t.RevokedAt),
		now,
		now,
	)
	return mapAlreadyExists(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, device_id, expires_at, revoked_at, created_at, updated_at
		FROM refresh_tokens WHERE token_hash = ?`, hash)
	return scanRefreshToken(row)
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, userID, tokenID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), tokenID, userID,
	)
	if err != nil {
		return err
	}

	// Distinguish "no such session" from "already revoked": the former is
	// an error to the caller, the latter keeps revocation idempotent.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists int
		row := r.db.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM refresh_tokens WHERE id = ? AND user_id = ?`,
			tokenID, userID)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return mapNotFound(sql.ErrNoRows)
		}
	}
	return nil
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(
	ctx context.Context,
	userID string,
) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?, updated_at = ?
		WHERE user_id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), userID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) ListActiveByUser(
	ctx context.Context,
	userID string,
) ([]domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, device_id, expires_at, revoked_at, created_at, updated_at
		FROM refresh_tokens
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC`,
		userID, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(
	ctx context.Context,
	retention time.Duration,
) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)`,
		cutoff, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var (
		t       domain.RefreshToken
		revoked = mapOptionalTime(nil)
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.DeviceID, &t.ExpiresAt, &revoked, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.RevokedAt = mapNullTimePtr(revoked)
	return t, nil
}
