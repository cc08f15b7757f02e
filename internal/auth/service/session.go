package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/carelinkhq/carelink/internal/auth/domain"
	"github.com/carelinkhq/carelink/internal/auth/store"
	"github.com/carelinkhq/carelink/pkg/cryptox"
	"github.com/carelinkhq/carelink/pkg/idx"
	"github.com/carelinkhq/carelink/pkg/jwtx"
	"github.com/carelinkhq/carelink/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidInput       = errors.New("invalid_input")
	ErrTokenRevoked       = errors.New("token_revoked")
	ErrTokenExpired       = errors.New("token_expired")
	ErrNotFound           = errors.New("not_found")
	ErrGuardUnavailable   = errors.New("guard_unavailable")
)

// TokenBlacklist is the slice of the guard store the session service
// needs: recording revoked access tokens until their natural expiry.
type TokenBlacklist interface {
	Blacklist(ctx context.Context, tokenFP string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, tokenFP string) (bool, error)
}

// SessionService owns the account and session lifecycle: registration,
// login, refresh, logout, and per-device session management.
//
// Access tokens and refresh tokens are both RS256 JWTs from the same
// key manager, distinguished by the token_use claim. Refresh tokens are
// additionally backed by a database record (keyed by fingerprint) so
// they can be revoked before expiry; access tokens are revoked through
// the shared blacklist instead.
type SessionService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Blacklist  TokenBlacklist
	Hasher     *cryptox.Hasher

	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RegisterParams is the input for Register. Role and DeviceID are
// optional; Role defaults to caregiver and DeviceID is generated when
// the client does not supply one.
type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
	ZoneID      string
	DeviceID    string
}

// Register creates the account and signs the user straight in, returning
// the first token pair. User row and refresh record are written in one
// transaction so a half-registered account can never exist.
func (s *SessionService) Register(ctx context.Context, p RegisterParams) (*domain.TokenPair, domain.User, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.User{}, ErrInvalidInput
	}
	if len(p.Password) < 8 {
		return nil, domain.User{}, ErrInvalidInput
	}

	role := domain.Role(p.Role)
	if p.Role == "" {
		role = domain.RoleCaregiver
	}
	if !role.Valid() {
		return nil, domain.User{}, ErrInvalidInput
	}

	hash, err := s.Hasher.Hash(p.Password)
	if err != nil {
		return nil, domain.User{}, ErrInvalidInput
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(p.DisplayName),
		Role:         role,
		ZoneID:       strings.TrimSpace(p.ZoneID),
	}

	deviceID, err := normalizeDeviceID(p.DeviceID)
	if err != nil {
		return nil, domain.User{}, err
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		pair, err = s.issuePair(ctx, tx, user, deviceID, now)
		return err
	})
	if err != nil {
		return nil, domain.User{}, err
	}

	l.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)
	return pair, user, nil
}

// Login verifies the credentials and issues a fresh token pair.
//
// The unknown-email path burns a bcrypt comparison against a dummy
// digest so response timing does not reveal whether the account exists,
// and both failure modes collapse into the same ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password, deviceID string) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Hasher.VerifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		l.Info("login failed", slog.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	deviceID, err = normalizeDeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		pair, err = s.issuePair(ctx, tx, user, deviceID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Info("login succeeded", slog.String("user_id", user.ID), slog.String("device_id", deviceID))
	return pair, nil
}

// Refresh exchanges a live refresh token for a new access token.
//
// The refresh token itself is not rotated: it stays valid until it
// expires or the session is revoked. Claims for the new access token are
// re-read from the current user row, so role or zone changes take effect
// here rather than persisting from the original login.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	now := time.Now()

	claims, err := s.KeyManager.Verifier.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if err := claims.ValidateUse(jwtx.UseRefresh); err != nil {
		return nil, err
	}

	record, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Signed by us but unknown to the store: treat as revoked,
			// the record has been pruned.
			return nil, ErrTokenRevoked
		}
		return nil, err
	}

	if record.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}
	if now.After(record.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.Store.Users().GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}

	accessToken, err := s.signToken(user, record.DeviceID, jwtx.UseAccess, s.AccessTTL, now)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
		DeviceID:     record.DeviceID,
	}, nil
}

// Logout revokes the presented access token and every refresh token the
// user holds. It is idempotent: logging out twice, or with a token whose
// sessions are already revoked, still succeeds.
//
// Only a token carrying a trusted signature says whose sessions to end;
// expiry alone is tolerated so a token that just ran out still logs its
// user out. Anything else (malformed, forged, wrong issuer) is
// blacklisted under its own fingerprint and reported as success, which
// keeps response timing from revealing which byte strings parse as our
// tokens, but it must never reach the revocation store.
func (s *SessionService) Logout(ctx context.Context, rawToken string) error {
	now := time.Now()
	l := slogx.FromContext(ctx)

	claims, err := s.KeyManager.Verifier.VerifyIgnoreExpiry(rawToken)
	if err != nil {
		if blErr := s.Blacklist.Blacklist(ctx, cryptox.FingerprintToken(rawToken), s.AccessTTL); blErr != nil {
			l.Warn("blacklist of unverified token failed", slog.Any("error", blErr))
		}
		return nil
	}

	if ttl := claims.RemainingLifetime(now); ttl > 0 {
		if err := s.Blacklist.Blacklist(ctx, cryptox.FingerprintToken(rawToken), ttl); err != nil {
			l.Error("blacklist write failed", slog.Any("error", err))
			return ErrGuardUnavailable
		}
	}

	if claims.Subject == "" {
		return nil
	}

	n, err := s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, claims.Subject)
	if err != nil {
		return err
	}

	l.Info("logout",
		slog.String("user_id", claims.Subject),
		slog.Int64("sessions_revoked", n),
	)
	return nil
}

// UserInfo returns the current account row for an authenticated subject.
func (s *SessionService) UserInfo(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// Sessions lists the user's live refresh sessions, one per device login.
func (s *SessionService) Sessions(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	return s.Store.RefreshTokens().ListActiveByUser(ctx, userID)
}

// RevokeSession revokes a single refresh session by id. The lookup is
// scoped to the owning user, so a foreign session id reads as not found.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// issuePair signs an access+refresh pair and persists the refresh
// record. Runs inside the caller's transaction.
func (s *SessionService) issuePair(
	ctx context.Context,
	tx store.Store,
	user domain.User,
	deviceID string,
	now time.Time,
) (*domain.TokenPair, error) {
	accessToken, err := s.signToken(user, deviceID, jwtx.UseAccess, s.AccessTTL, now)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signToken(user, deviceID, jwtx.UseRefresh, s.RefreshTTL, now)
	if err != nil {
		return nil, err
	}

	record := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(refreshToken),
		DeviceID:  deviceID,
		ExpiresAt: now.Add(s.RefreshTTL),
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
		DeviceID:     deviceID,
	}, nil
}

func (s *SessionService) signToken(
	user domain.User,
	deviceID, use string,
	ttl time.Duration,
	now time.Time,
) (string, error) {
	claims := jwtx.NewClaims(
		user.ID, user.Email, user.Role.String(), user.ZoneID, deviceID, use,
		ttl, s.Issuer, s.Audience, now,
	)
	return s.KeyManager.Signer.Sign(claims)
}

// normalizeDeviceID returns the trimmed client-provided device id, or a
// freshly generated one when the client sent none.
func normalizeDeviceID(deviceID string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID != "" {
		return deviceID, nil
	}
	return cryptox.GenerateToken(cryptox.TokenSize128)
}
