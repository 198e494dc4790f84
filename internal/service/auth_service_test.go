package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/telecare-health/telecare/internal/config"
	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/pkg/auth"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) UpdateLoginAttempt(_ context.Context, id uuid.UUID, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	if success {
		now := time.Now()
		u.FailedLoginCount = 0
		u.LockedUntil = nil
		u.LastLoginAt = &now
		return nil
	}
	u.FailedLoginCount++
	if u.FailedLoginCount >= 5 {
		until := time.Now().Add(15 * time.Minute)
		u.LockedUntil = &until
	}
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func newAuthEnv(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	jwtManager := auth.NewJWTManager(config.JWTConfig{
		Secret:          "auth-service-test-secret-32-chars!!",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "telecare-test",
	})
	return NewAuthService(repo, jwtManager, newTestAuditService(), zap.NewNop()), repo
}

func registerPatient(t *testing.T, svc *AuthService, email, password string) *domain.User {
	t.Helper()
	u, err := svc.Register(context.Background(), &RegisterCommand{
		Email:     email,
		Password:  password,
		FirstName: "Alice",
		LastName:  "Martin",
		Role:      domain.RolePatient,
	}, "10.0.0.1")
	require.NoError(t, err)
	return u
}

func TestRegister_Patient(t *testing.T) {
	svc, _ := newAuthEnv(t)

	u := registerPatient(t, svc, "Alice@Example.com ", "correct-horse-battery")
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, domain.RolePatient, u.Role)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "correct-horse-battery", u.PasswordHash)
}

func TestRegister_PhysicianStartsUnverified(t *testing.T) {
	svc, _ := newAuthEnv(t)

	u, err := svc.Register(context.Background(), &RegisterCommand{
		Email:         "dr@example.com",
		Password:      "correct-horse-battery",
		FirstName:     "Paul",
		LastName:      "Bernard",
		Role:          domain.RolePhysician,
		Specialty:     "cardiology",
		LicenseNumber: "FR-12345",
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, u.VerifiedAt)
	assert.False(t, u.IsVerifiedPhysician())
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newAuthEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  RegisterCommand
	}{
		{"missing email", RegisterCommand{Password: "correct-horse-battery", FirstName: "A", LastName: "B", Role: domain.RolePatient}},
		{"short password", RegisterCommand{Email: "a@b.c", Password: "short", FirstName: "A", LastName: "B", Role: domain.RolePatient}},
		{"admin role rejected", RegisterCommand{Email: "a@b.c", Password: "correct-horse-battery", FirstName: "A", LastName: "B", Role: domain.RoleAdmin}},
		{"physician without license", RegisterCommand{Email: "a@b.c", Password: "correct-horse-battery", FirstName: "A", LastName: "B", Role: domain.RolePhysician}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tc.cmd, "10.0.0.1")
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newAuthEnv(t)
	registerPatient(t, svc, "alice@example.com", "correct-horse-battery")

	_, err := svc.Register(context.Background(), &RegisterCommand{
		Email:     "ALICE@example.com",
		Password:  "correct-horse-battery",
		FirstName: "A",
		LastName:  "B",
		Role:      domain.RolePatient,
	}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthEnv(t)
	registerPatient(t, svc, "alice@example.com", "correct-horse-battery")
	ctx := context.Background()

	pair, err := svc.Login(ctx, "alice@example.com", "correct-horse-battery", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password-entirely", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse-battery", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	svc, _ := newAuthEnv(t)
	registerPatient(t, svc, "alice@example.com", "correct-horse-battery")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "alice@example.com", "wrong-password-entirely", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Even the right password is refused while locked.
	_, err := svc.Login(ctx, "alice@example.com", "correct-horse-battery", "10.0.0.1")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, repo := newAuthEnv(t)
	u := registerPatient(t, svc, "alice@example.com", "correct-horse-battery")

	repo.mu.Lock()
	repo.users[u.ID].IsActive = false
	repo.mu.Unlock()

	_, err := svc.Login(context.Background(), "alice@example.com", "correct-horse-battery", "10.0.0.1")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestRefreshToken(t *testing.T) {
	svc, _ := newAuthEnv(t)
	registerPatient(t, svc, "alice@example.com", "correct-horse-battery")
	ctx := context.Background()

	pair, err := svc.Login(ctx, "alice@example.com", "correct-horse-battery", "10.0.0.1")
	require.NoError(t, err)

	fresh, err := svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)

	// An access token is not accepted as a refresh token.
	_, err = svc.RefreshToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.RefreshToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	svc, repo := newAuthEnv(t)
	u := registerPatient(t, svc, "alice@example.com", "correct-horse-battery")
	ctx := context.Background()

	err := svc.ChangePassword(ctx, u.ID, "wrong-current-password", "a-brand-new-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, u.ID, "correct-horse-battery", "short")
	assert.Error(t, err)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "correct-horse-battery", "a-brand-new-password"))

	stored, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("a-brand-new-password")))
}
