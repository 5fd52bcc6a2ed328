package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/model"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

const minPasswordLen = 8

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	StaffID      int64
	Username     string
	AccessToken  utils.AccessToken
	RefreshToken utils.RefreshToken
}

// Accounts authenticates staff and manages their token sessions.
type Accounts struct {
	staff      *repository.StaffRepo
	tokens     *repository.TokenRepo
	secret     string
	accessTTL  int // minutes
	refreshTTL int // days
	log        *zap.Logger
}

func NewAccounts(staff *repository.StaffRepo, tokens *repository.TokenRepo, secret string, accessTTLMin, refreshTTLDays int, log *zap.Logger) *Accounts {
	return &Accounts{staff: staff, tokens: tokens, secret: secret, accessTTL: accessTTLMin, refreshTTL: refreshTTLDays, log: log}
}

// Login checks username and password. Unknown users, wrong passwords and
// corrupt stored hashes all yield ErrInvalidCredentials. password is zeroed
// before returning.
func (s *Accounts) Login(ctx context.Context, username string, password []byte) (model.Staff, error) {
	defer utils.Wipe(password)

	st, err := s.staff.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Staff{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Staff{}, err
	}
	if !utils.CheckPassword(password, st.HashedPassword) {
		return model.Staff{}, ErrInvalidCredentials
	}
	return st, nil
}

// CreateStaff registers a staff account. password is zeroed before returning.
func (s *Accounts) CreateStaff(ctx context.Context, username string, password []byte) (int64, error) {
	defer utils.Wipe(password)

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return 0, invalid("username is required")
	}
	if len(password) < minPasswordLen {
		return 0, invalid("password must be at least %d characters", minPasswordLen)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.staff.Create(ctx, username, hash)
	if err != nil {
		return 0, fmt.Errorf("create staff %q: %w", username, err)
	}
	s.log.Info("staff created", zap.Int64("staff_id", id), zap.String("username", username))
	return id, nil
}

// SetPassword replaces a staff member's password and revokes their sessions.
func (s *Accounts) SetPassword(ctx context.Context, username string, password []byte) error {
	defer utils.Wipe(password)

	if len(password) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	st, err := s.staff.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.staff.SetPassword(ctx, st.ID, hash); err != nil {
		return err
	}
	return s.tokens.RevokeAllForStaff(ctx, st.ID)
}

// ListStaff returns every staff account.
func (s *Accounts) ListStaff(ctx context.Context) ([]model.Staff, error) {
	return s.staff.List(ctx)
}

// IssueSession mints an access token and a stored refresh token.
func (s *Accounts) IssueSession(ctx context.Context, st model.Staff) (Session, error) {
	at, err := utils.NewAccessToken(s.secret, st.ID, st.Username, model.RoleStaff, s.accessTTL)
	if err != nil {
		return Session{}, err
	}
	rt, err := utils.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, st.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return Session{}, err
	}
	return Session{StaffID: st.ID, Username: st.Username, AccessToken: at, RefreshToken: rt}, nil
}

// Refresh spends a refresh token and returns a new session. A token that is
// unknown, expired, revoked or already spent yields ErrInvalidCredentials.
func (s *Accounts) Refresh(ctx context.Context, raw string) (Session, error) {
	oldHash := utils.HashRefreshRaw(raw)
	staffID, err := s.tokens.ValidateRefresh(ctx, oldHash)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	st, err := s.staff.GetByID(ctx, staffID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	at, err := utils.NewAccessToken(s.secret, st.ID, st.Username, model.RoleStaff, s.accessTTL)
	if err != nil {
		return Session{}, err
	}
	rt, err := utils.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return Session{}, err
	}
	err = s.tokens.RotateRefresh(ctx, st.ID, oldHash, utils.HashRefreshRaw(rt.Raw), rt.Exp)
	if errors.Is(err, repository.ErrConflict) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	return Session{StaffID: st.ID, Username: st.Username, AccessToken: at, RefreshToken: rt}, nil
}

// Logout revokes the given refresh token. Unknown tokens are ignored.
func (s *Accounts) Logout(ctx context.Context, raw string) error {
	return s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
}
