package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notely/internal/db"
	"notely/internal/models"
)

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	byEmail map[string]string
	seq     int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}, byEmail: map[string]string{}}
}

func (f *fakeUsers) Create(_ context.Context, name, email, passwordHash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byEmail[email]; exists {
		return nil, db.ErrDuplicate
	}
	f.seq++
	u := &models.User{
		ID:           fmt.Sprintf("usr_%024x", f.seq),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	f.byID[u.ID] = u
	f.byEmail[email] = u.ID
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	id, ok := f.byEmail[email]
	f.mu.Unlock()
	if !ok {
		return nil, db.ErrNotFound
	}
	return f.FindByID(ctx, id)
}

func (f *fakeUsers) UpdateProfilePicture(_ context.Context, id, pictureURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return db.ErrNotFound
	}
	u.ProfilePicture = &pictureURL
	return nil
}

func (f *fakeUsers) setPassword(id, hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].PasswordHash = hash
}

func (f *fakeUsers) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		delete(f.byEmail, u.Email)
		delete(f.byID, id)
	}
}

type fakeLedger struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{revoked: map[string]time.Time{}}
}

func (f *fakeLedger) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.revoked[tokenID]; exists {
		return db.ErrDuplicate
	}
	f.revoked[tokenID] = expiresAt
	return nil
}

func (f *fakeLedger) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[tokenID]
	return ok, nil
}

type fakeCodes struct {
	mu    sync.Mutex
	users *fakeUsers
	codes []*models.ResetCode
	seq   int
}

func (f *fakeCodes) Create(_ context.Context, email, codeHash string, expiresAt time.Time) (*models.ResetCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	rc := &models.ResetCode{
		ID:        fmt.Sprintf("rst_%d", f.seq),
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	f.codes = append(f.codes, rc)
	return rc, nil
}

func (f *fakeCodes) FindLatest(_ context.Context, email string) (*models.ResetCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.codes) - 1; i >= 0; i-- {
		rc := f.codes[i]
		if rc.Email == email && rc.UsedAt == nil {
			copied := *rc
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeCodes) IncrementAttempts(_ context.Context, id string, max int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rc := range f.codes {
		if rc.ID != id {
			continue
		}
		if rc.Attempts >= max {
			return -1, nil
		}
		rc.Attempts++
		return rc.Attempts, nil
	}
	return -1, nil
}

func (f *fakeCodes) ConsumeAndSetPassword(_ context.Context, codeID, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rc := range f.codes {
		if rc.ID == codeID && rc.UsedAt == nil {
			now := time.Now()
			rc.UsedAt = &now
			f.users.setPassword(userID, passwordHash)
			return nil
		}
	}
	return db.ErrNotFound
}

type sentCode struct {
	Email    string
	Code     string
	ValidFor time.Duration
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentCode
	err    error
	ctxErr error

	// hold, when set, parks every send until it is closed.
	hold chan struct{}
}

func (f *fakeNotifier) SendPasswordResetCode(ctx context.Context, email, code string, validFor time.Duration) error {
	if f.hold != nil {
		<-f.hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCode{Email: email, Code: code, ValidFor: validFor})
	f.ctxErr = ctx.Err()
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) last() (sentCode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentCode{}, false
	}
	return f.sent[len(f.sent)-1], true
}
