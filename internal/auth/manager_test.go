package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"notely/internal/apperr"
)

type managerFixture struct {
	manager  *Manager
	users    *fakeUsers
	ledger   *fakeLedger
	codes    *fakeCodes
	notifier *fakeNotifier
	tokens   *TokenService
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	users := newFakeUsers()
	f := &managerFixture{
		users:    users,
		ledger:   newFakeLedger(),
		codes:    &fakeCodes{users: users},
		notifier: &fakeNotifier{},
		tokens:   NewTokenService("test-secret", time.Hour),
	}
	f.manager = NewManager(ManagerDeps{
		Users:    f.users,
		Ledger:   f.ledger,
		Codes:    f.codes,
		Tokens:   f.tokens,
		Hasher:   NewBcryptHasher(bcrypt.MinCost),
		CodeGen:  NewCodeGenerator(6, 15*time.Minute),
		Notifier: f.notifier,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(f.manager.Wait)
	return f
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error = %v", err)
}

func (f *managerFixture) register(t *testing.T, email, password string) *PublicUser {
	t.Helper()
	u, err := f.manager.Register(context.Background(), RegisterInput{Name: "Ada", Email: email, Password: password})
	require.NoError(t, err)
	return u
}

// forget requests a reset code for email and returns what the notifier got.
func (f *managerFixture) forget(t *testing.T, email string) sentCode {
	t.Helper()
	_, err := f.manager.ForgetPassword(context.Background(), ForgetPasswordInput{Email: email})
	require.NoError(t, err)
	f.manager.Wait()
	sent, ok := f.notifier.last()
	require.True(t, ok)
	return sent
}

func (f *managerFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	res, err := f.manager.Login(context.Background(), LoginInput{Email: email, Password: password})
	require.NoError(t, err)
	return res.Token.Token
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	f := newManagerFixture(t)

	u := f.register(t, "ada@x.com", "secret1")
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "ada@x.com", u.Email)

	stored, err := f.users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRegisterDuplicateNormalizedEmail(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")

	_, err := f.manager.Register(context.Background(), RegisterInput{Name: "Ada", Email: "  ADA@X.com ", Password: "secret1"})
	requireKind(t, err, apperr.KindDuplicateEmail)
}

func TestRegisterValidation(t *testing.T) {
	f := newManagerFixture(t)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "short_name", in: RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"}},
		{name: "bad_email", in: RegisterInput{Name: "Ada", Email: "nope", Password: "secret1"}},
		{name: "short_password", in: RegisterInput{Name: "Ada", Email: "a@x.com", Password: "123"}},
		{name: "password_over_72_bytes", in: RegisterInput{Name: "Ada", Email: "a@x.com", Password: strings.Repeat("é", 40)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Register(context.Background(), tt.in)
			requireKind(t, err, apperr.KindValidation)
		})
	}
}

func TestConcurrentRegisterSingleWinner(t *testing.T) {
	f := newManagerFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Register(context.Background(), RegisterInput{Name: "Ada", Email: "ada@x.com", Password: "secret1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperr.Is(err, apperr.KindDuplicateEmail):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicates)
}

func TestLoginErrors(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	ctx := context.Background()

	_, err := f.manager.Login(ctx, LoginInput{Email: "ghost@x.com", Password: "secret1"})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.manager.Login(ctx, LoginInput{Email: "ada@x.com", Password: "wrong-pass"})
	requireKind(t, err, apperr.KindInvalidCredentials)

	_, err = f.manager.Login(ctx, LoginInput{Email: "ada@x.com"})
	requireKind(t, err, apperr.KindValidation)
}

func TestLoginTokenVerifiesToSameSubject(t *testing.T) {
	f := newManagerFixture(t)
	u := f.register(t, "ada@x.com", "secret1")

	res, err := f.manager.Login(context.Background(), LoginInput{Email: "ADA@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)

	claims, err := f.tokens.Verify(res.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
}

func TestAuthenticateAfterLogoutIsRevoked(t *testing.T) {
	f := newManagerFixture(t)
	u := f.register(t, "ada@x.com", "secret1")
	token := f.login(t, "ada@x.com", "secret1")
	ctx := context.Background()

	session, err := f.manager.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, session.User.ID)

	require.NoError(t, f.manager.Logout(ctx, token))

	_, err = f.tokens.Verify(token)
	require.NoError(t, err, "signature check alone still accepts the token")

	_, err = f.manager.Authenticate(ctx, token)
	requireKind(t, err, apperr.KindTokenRevoked)
}

func TestLogoutTwiceIsAlreadyRevoked(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	token := f.login(t, "ada@x.com", "secret1")
	ctx := context.Background()

	require.NoError(t, f.manager.Logout(ctx, token))
	requireKind(t, f.manager.Logout(ctx, token), apperr.KindAlreadyRevoked)
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	first := f.login(t, "ada@x.com", "secret1")
	second := f.login(t, "ada@x.com", "secret1")
	ctx := context.Background()

	require.NoError(t, f.manager.Logout(ctx, first))

	_, err := f.manager.Authenticate(ctx, second)
	assert.NoError(t, err)
}

func TestLogoutAndAuthenticateRejectBadTokens(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	requireKind(t, f.manager.Logout(ctx, ""), apperr.KindUnauthenticated)
	requireKind(t, f.manager.Logout(ctx, "not-a-jwt"), apperr.KindInvalidToken)

	_, err := f.manager.Authenticate(ctx, "")
	requireKind(t, err, apperr.KindUnauthenticated)
	_, err = f.manager.Authenticate(ctx, "not-a-jwt")
	requireKind(t, err, apperr.KindInvalidToken)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	f := newManagerFixture(t)
	u := f.register(t, "ada@x.com", "secret1")
	token := f.login(t, "ada@x.com", "secret1")
	f.users.remove(u.ID)

	_, err := f.manager.Authenticate(context.Background(), token)
	requireKind(t, err, apperr.KindNotFound)
}

func TestForgetPasswordSendsSixDigitCode(t *testing.T) {
	f := newManagerFixture(t)

	msg, err := f.manager.ForgetPassword(context.Background(), ForgetPasswordInput{Email: "Ada@X.com"})
	require.NoError(t, err)
	assert.Equal(t, ForgetPasswordAck, msg)

	f.manager.Wait()
	sent, ok := f.notifier.last()
	require.True(t, ok)
	assert.Equal(t, "ada@x.com", sent.Email)
	assert.Len(t, sent.Code, 6)
	assert.Equal(t, 15*time.Minute, sent.ValidFor)

	require.Len(t, f.codes.codes, 1)
	stored := f.codes.codes[0]
	assert.NotEqual(t, sent.Code, stored.CodeHash)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), stored.ExpiresAt, 5*time.Second)
}

func TestForgetPasswordSwallowsNotifierFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.notifier.err = errors.New("smtp down")

	msg, err := f.manager.ForgetPassword(context.Background(), ForgetPasswordInput{Email: "ada@x.com"})
	require.NoError(t, err)
	assert.Equal(t, ForgetPasswordAck, msg)

	f.manager.Wait()
	assert.Equal(t, 1, f.notifier.count())
}

func TestForgetPasswordDeliversAfterRequestCancelled(t *testing.T) {
	f := newManagerFixture(t)
	f.notifier.hold = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	msg, err := f.manager.ForgetPassword(ctx, ForgetPasswordInput{Email: "ada@x.com"})
	require.NoError(t, err)
	assert.Equal(t, ForgetPasswordAck, msg)
	assert.Equal(t, 0, f.notifier.count(), "ForgetPassword must not wait for delivery")

	cancel()
	close(f.notifier.hold)
	f.manager.Wait()

	require.Equal(t, 1, f.notifier.count())
	assert.NoError(t, f.notifier.ctxErr)
}

func TestForgetPasswordValidation(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.ForgetPassword(context.Background(), ForgetPasswordInput{Email: "nope"})
	requireKind(t, err, apperr.KindValidation)
	f.manager.Wait()
	_, sent := f.notifier.last()
	assert.False(t, sent)
}

func TestResetPasswordSucceedsOnce(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	ctx := context.Background()

	sent := f.forget(t, "ada@x.com")

	wrong := "000000"
	if sent.Code == wrong {
		wrong = "111111"
	}
	err := f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ada@x.com", OTPCode: wrong, NewPassword: "newpass1"})
	requireKind(t, err, apperr.KindInvalidOrExpiredOtp)

	in := ResetPasswordInput{Email: "ada@x.com", OTPCode: sent.Code, NewPassword: "newpass1"}
	require.NoError(t, f.manager.ResetPassword(ctx, in))
	requireKind(t, f.manager.ResetPassword(ctx, in), apperr.KindInvalidOrExpiredOtp)

	_, err = f.manager.Login(ctx, LoginInput{Email: "ada@x.com", Password: "secret1"})
	requireKind(t, err, apperr.KindInvalidCredentials)
	f.login(t, "ada@x.com", "newpass1")
}

func TestResetPasswordRejectsExpiredCode(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	ctx := context.Background()

	sent := f.forget(t, "ada@x.com")

	f.manager.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	err := f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ada@x.com", OTPCode: sent.Code, NewPassword: "newpass1"})
	requireKind(t, err, apperr.KindInvalidOrExpiredOtp)
	f.login(t, "ada@x.com", "secret1")
}

func TestResetPasswordUnknownUser(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	sent := f.forget(t, "ghost@x.com")

	err := f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ghost@x.com", OTPCode: sent.Code, NewPassword: "newpass1"})
	requireKind(t, err, apperr.KindNotFound)
}

func TestResetPasswordLocksCodeAfterMaxAttempts(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	ctx := context.Background()
	sent := f.forget(t, "ada@x.com")

	wrong := "000000"
	if sent.Code == wrong {
		wrong = "111111"
	}
	for i := 0; i < MaxResetAttempts; i++ {
		err := f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ada@x.com", OTPCode: wrong, NewPassword: "newpass1"})
		requireKind(t, err, apperr.KindInvalidOrExpiredOtp)
	}

	err := f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ada@x.com", OTPCode: sent.Code, NewPassword: "newpass1"})
	requireKind(t, err, apperr.KindInvalidOrExpiredOtp)
	f.login(t, "ada@x.com", "secret1")

	fresh := f.forget(t, "ada@x.com")
	require.NoError(t, f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ada@x.com", OTPCode: fresh.Code, NewPassword: "newpass1"}))
	f.login(t, "ada@x.com", "newpass1")
}

func TestResetPasswordOnlyLatestCodeCounts(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	ctx := context.Background()

	first := f.forget(t, "ada@x.com")
	second := f.forget(t, "ada@x.com")
	if first.Code != second.Code {
		err := f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ada@x.com", OTPCode: first.Code, NewPassword: "newpass1"})
		requireKind(t, err, apperr.KindInvalidOrExpiredOtp)
	}

	require.NoError(t, f.manager.ResetPassword(ctx, ResetPasswordInput{Email: "ada@x.com", OTPCode: second.Code, NewPassword: "newpass1"}))
}

func TestResetPasswordRejectsPasswordOver72Bytes(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	sent := f.forget(t, "ada@x.com")

	err := f.manager.ResetPassword(context.Background(), ResetPasswordInput{
		Email:       "ada@x.com",
		OTPCode:     sent.Code,
		NewPassword: strings.Repeat("é", 40),
	})
	requireKind(t, err, apperr.KindValidation)
	f.login(t, "ada@x.com", "secret1")
}

func TestUpdateProfilePicture(t *testing.T) {
	f := newManagerFixture(t)
	f.register(t, "ada@x.com", "secret1")
	token := f.login(t, "ada@x.com", "secret1")
	ctx := context.Background()

	session, err := f.manager.Authenticate(ctx, token)
	require.NoError(t, err)

	u, err := f.manager.UpdateProfilePicture(ctx, session, "/media/blb_1")
	require.NoError(t, err)
	require.NotNil(t, u.ProfilePicture)
	assert.Equal(t, "/media/blb_1", *u.ProfilePicture)

	require.NoError(t, f.manager.Logout(ctx, token))
	_, err = f.manager.UpdateProfilePicture(ctx, session, "/media/blb_2")
	requireKind(t, err, apperr.KindTokenRevoked)
}
