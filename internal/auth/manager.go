package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"notely/internal/apperr"
	"notely/internal/db"
	"notely/internal/models"
)

// ForgetPasswordAck is returned for every accepted forget-password request,
// whether or not the address belongs to an account.
const ForgetPasswordAck = "OTP sent successfully"

const notifyTimeout = 30 * time.Second

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfilePicture(ctx context.Context, id, pictureURL string) error
}

type RevocationLedger interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type ResetCodeStore interface {
	Create(ctx context.Context, email, codeHash string, expiresAt time.Time) (*models.ResetCode, error)
	FindLatest(ctx context.Context, email string) (*models.ResetCode, error)
	IncrementAttempts(ctx context.Context, id string, max int) (int, error)
	ConsumeAndSetPassword(ctx context.Context, codeID, userID, passwordHash string) error
}

// Notifier delivers a password-reset code out of band.
type Notifier interface {
	SendPasswordResetCode(ctx context.Context, email, code string, validFor time.Duration) error
}

type ManagerDeps struct {
	Users    UserStore
	Ledger   RevocationLedger
	Codes    ResetCodeStore
	Tokens   *TokenService
	Hasher   PasswordHasher
	CodeGen  *CodeGenerator
	Notifier Notifier
	Logger   *slog.Logger
}

// Manager owns the account and session lifecycle: registration, login,
// logout, password reset and per-request authentication.
type Manager struct {
	users    UserStore
	ledger   RevocationLedger
	codes    ResetCodeStore
	tokens   *TokenService
	hasher   PasswordHasher
	codeGen  *CodeGenerator
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	pending sync.WaitGroup
}

func NewManager(deps ManagerDeps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		users:    deps.Users,
		ledger:   deps.Ledger,
		codes:    deps.Codes,
		tokens:   deps.Tokens,
		hasher:   deps.Hasher,
		codeGen:  deps.CodeGen,
		notifier: deps.Notifier,
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}
}

type PublicUser struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

func NewPublicUser(u *models.User) PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
	}
}

// Session is the authenticated principal attached to a request.
type Session struct {
	User      *models.User
	TokenID   string
	ExpiresAt time.Time
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgetPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	OTPCode     string `json:"otpCode" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

type LoginResult struct {
	User  PublicUser
	Token *IssuedToken
}

func (m *Manager) Register(ctx context.Context, in RegisterInput) (*PublicUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := apperr.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := checkPasswordBytes("password", in.Password); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("hashing password", err)
	}

	user, err := m.users.Create(ctx, in.Name, in.Email, hash)
	if errors.Is(err, db.ErrDuplicate) {
		return nil, apperr.New(apperr.KindDuplicateEmail, "Email already in use")
	}
	if err != nil {
		return nil, apperr.Internal("creating user", err)
	}

	m.logger.Info("user registered", "user_id", user.ID)

	public := NewPublicUser(user)
	return &public, nil
}

func (m *Manager) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := apperr.ValidateStruct(in); err != nil {
		return nil, err
	}

	user, err := m.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Internal("finding user", err)
	}

	if err := m.hasher.Compare(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
		}
		return nil, apperr.Internal("comparing password", err)
	}

	issued, err := m.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal("issuing token", err)
	}

	return &LoginResult{User: NewPublicUser(user), Token: issued}, nil
}

// Logout revokes token. It only needs a verifiable token, not a live session,
// so a second logout with the same token reports AlreadyRevoked.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apperr.New(apperr.KindUnauthenticated, "No token provided")
	}

	claims, err := m.tokens.Verify(token)
	if err != nil {
		return apperr.New(apperr.KindInvalidToken, "Invalid token")
	}

	err = m.ledger.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.New(apperr.KindAlreadyRevoked, "Token already revoked")
	}
	if err != nil {
		return apperr.Internal("revoking token", err)
	}

	m.logger.Info("token revoked", "user_id", claims.Subject, "token_id", claims.ID)
	return nil
}

// ForgetPassword stores a fresh reset code for email and hands it to the
// notifier in the background. Delivery failures are logged, never returned.
func (m *Manager) ForgetPassword(ctx context.Context, in ForgetPasswordInput) (string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := apperr.ValidateStruct(in); err != nil {
		return "", err
	}

	code, err := m.codeGen.Generate()
	if err != nil {
		return "", apperr.Internal("generating reset code", err)
	}

	ttl := m.codeGen.TTL()
	if _, err := m.codes.Create(ctx, in.Email, HashResetCode(code), m.now().Add(ttl)); err != nil {
		return "", apperr.Internal("storing reset code", err)
	}

	m.deliverResetCode(ctx, in.Email, code, ttl)

	return ForgetPasswordAck, nil
}

// deliverResetCode sends on a context detached from the request, so a
// client hanging up does not abort delivery. Wait drains in-flight sends.
func (m *Manager) deliverResetCode(ctx context.Context, email, code string, ttl time.Duration) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		defer cancel()

		if err := m.notifier.SendPasswordResetCode(sendCtx, email, code, ttl); err != nil {
			m.logger.Error("failed to deliver reset code", "error", err)
		}
	}()
}

// Wait blocks until every reset-code delivery started so far has returned.
func (m *Manager) Wait() {
	m.pending.Wait()
}

// ResetPassword checks otpCode against the newest unused code for email.
// Every guess counts against that code; once MaxResetAttempts is reached
// the code is dead even if the next guess would match.
func (m *Manager) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	in.OTPCode = strings.TrimSpace(in.OTPCode)
	if err := apperr.ValidateStruct(in); err != nil {
		return err
	}
	if err := checkPasswordBytes("newPassword", in.NewPassword); err != nil {
		return err
	}

	invalidOTP := apperr.New(apperr.KindInvalidOrExpiredOtp, "Invalid or expired OTP")

	rc, err := m.codes.FindLatest(ctx, in.Email)
	if errors.Is(err, db.ErrNotFound) {
		return invalidOTP
	}
	if err != nil {
		return apperr.Internal("finding reset code", err)
	}
	if !m.now().Before(rc.ExpiresAt) {
		return invalidOTP
	}

	attempts, err := m.codes.IncrementAttempts(ctx, rc.ID, MaxResetAttempts)
	if err != nil {
		return apperr.Internal("counting reset attempt", err)
	}
	if attempts < 0 {
		m.logger.Warn("reset code attempts exhausted", "code_id", rc.ID)
		return invalidOTP
	}

	if subtle.ConstantTimeCompare([]byte(HashResetCode(in.OTPCode)), []byte(rc.CodeHash)) != 1 {
		return invalidOTP
	}

	user, err := m.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return apperr.Internal("finding user", err)
	}

	hash, err := m.hasher.Hash(in.NewPassword)
	if err != nil {
		return apperr.Internal("hashing password", err)
	}

	err = m.codes.ConsumeAndSetPassword(ctx, rc.ID, user.ID, hash)
	if errors.Is(err, db.ErrNotFound) {
		return invalidOTP
	}
	if err != nil {
		return apperr.Internal("resetting password", err)
	}

	m.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// Authenticate resolves token into a session: signature and expiry first,
// then the revocation ledger, then the user record.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "No access token provided")
	}

	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidToken, "Invalid token")
	}

	revoked, err := m.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Internal("checking revocation", err)
	}
	if revoked {
		return nil, apperr.New(apperr.KindTokenRevoked, "Token is revoked")
	}

	user, err := m.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Internal("finding user", err)
	}

	return &Session{
		User:      user,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// UpdateProfilePicture points the session user's profile picture at
// pictureURL. The session token is re-checked against the ledger since the
// upload may outlive a concurrent logout.
func (m *Manager) UpdateProfilePicture(ctx context.Context, session *Session, pictureURL string) (*PublicUser, error) {
	if session == nil || session.User == nil {
		return nil, apperr.New(apperr.KindUnauthenticated, "No access token provided")
	}

	revoked, err := m.ledger.IsRevoked(ctx, session.TokenID)
	if err != nil {
		return nil, apperr.Internal("checking revocation", err)
	}
	if revoked {
		return nil, apperr.New(apperr.KindTokenRevoked, "Token is revoked")
	}

	err = m.users.UpdateProfilePicture(ctx, session.User.ID, pictureURL)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Internal("updating profile picture", err)
	}

	user, err := m.users.FindByID(ctx, session.User.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Internal("finding user", err)
	}

	public := NewPublicUser(user)
	return &public, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
