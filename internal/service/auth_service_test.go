package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/repository"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/jobs"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/mailer"
)

type mockAuthRepo struct {
	users            map[string]*models.Profile
	refreshTokens    map[string]*models.RefreshToken
	resets           map[string]*models.PasswordReset
	createErr        error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedAllFor    []string
}

func newMockAuthRepo(users ...*models.Profile) *mockAuthRepo {
	repo := &mockAuthRepo{
		users:         map[string]*models.Profile{},
		refreshTokens: map[string]*models.RefreshToken{},
		resets:        map[string]*models.PasswordReset{},
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, profile *models.Profile) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == profile.Email {
			return repository.ErrDuplicate
		}
	}
	m.users[profile.ID] = profile
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = &passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.TokenHash] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) (bool, error) {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			if token.Revoked {
				return false, nil
			}
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	m.resets[reset.TokenHash] = reset
	return nil
}

func (m *mockAuthRepo) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {
	reset, ok := m.resets[tokenHash]
	if !ok || reset.UsedAt != nil || now.After(reset.ExpiresAt) {
		return nil, sql.ErrNoRows
	}
	reset.UsedAt = &now
	return reset, nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type memoryDenyList struct {
	denied map[string]time.Duration
}

func (d *memoryDenyList) Deny(ctx context.Context, tokenID string, ttl time.Duration) error {
	if d.denied == nil {
		d.denied = map[string]time.Duration{}
	}
	d.denied[tokenID] = ttl
	return nil
}

func (d *memoryDenyList) IsDenied(ctx context.Context, tokenID string) (bool, error) {
	_, ok := d.denied[tokenID]
	return ok, nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) TryEnqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func hashedPassword(t *testing.T, password string) *string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(hash)
	return &s
}

func newTestAuthService(repo *mockAuthRepo, deny *memoryDenyList, queue *recordingQueue) *AuthService {
	return NewAuthService(repo, deny, queue, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		RefreshWindow:      5 * time.Minute,
		BaseURL:            "http://localhost:8080",
	})
}

func TestAuthServiceSignInSuccess(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", FullName: "Ana", Role: models.RoleAdmin, IsActive: true, PasswordHash: hashedPassword(t, "secreto")})
	svc := newTestAuthService(repo, &memoryDenyList{}, nil)

	session, err := svc.SignIn(context.Background(), models.LoginRequest{Email: "ANA@example.com ", Password: "secreto"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	assert.Len(t, repo.refreshTokens, 1)

	stored, ok := repo.refreshTokens[hashToken(session.RefreshToken)]
	require.True(t, ok, "refresh token must be stored hashed")
	assert.NotEqual(t, session.RefreshToken, stored.TokenHash)

	claims, err := svc.ValidateToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthServiceSignInRejectsBadPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", Role: models.RoleStudent, IsActive: true, PasswordHash: hashedPassword(t, "secreto")})
	svc := newTestAuthService(repo, &memoryDenyList{}, nil)

	_, err := svc.SignIn(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "otro"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.SignIn(context.Background(), models.LoginRequest{Email: "nadie@example.com", Password: "otro"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceSignInInactive(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", Role: models.RoleStudent, IsActive: false, PasswordHash: hashedPassword(t, "secreto")})
	svc := newTestAuthService(repo, &memoryDenyList{}, nil)

	_, err := svc.SignIn(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secreto"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceSignUpCreatesStudent(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, &memoryDenyList{}, nil)

	session, err := svc.SignUp(context.Background(), models.RegisterRequest{Email: "nuevo@example.com", Password: "secreto"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, session.User.Role)
	assert.Equal(t, "nuevo", session.User.FullName)

	_, err = svc.SignUp(context.Background(), models.RegisterRequest{Email: "nuevo@example.com", Password: "secreto"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAuthServiceRegisterAdminRequiresSuperAdmin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, &memoryDenyList{}, nil)
	req := models.AdminRegisterRequest{Email: "admin@example.com", Password: "supersecreto", FullName: "Admin", Role: models.RoleAdmin}

	_, err := svc.RegisterAdmin(context.Background(), models.UserInfo{ID: "a1", Role: models.RoleAdmin}, req, RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	info, err := svc.RegisterAdmin(context.Background(), models.UserInfo{ID: "s1", Role: models.RoleSuperAdmin}, req, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, info.Role)
}

func TestAuthServiceRefreshRotates(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", Role: models.RoleStudent, IsActive: true, PasswordHash: hashedPassword(t, "secreto")})
	svc := newTestAuthService(repo, &memoryDenyList{}, nil)

	session, err := svc.SignIn(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secreto"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), session.RefreshToken, RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(context.Background(), session.RefreshToken, RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized), "old refresh token must not be reusable")
}

func TestAuthServiceResolveSessionRefreshesNearExpiry(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", Role: models.RoleStudent, IsActive: true, PasswordHash: hashedPassword(t, "secreto")})
	svc := newTestAuthService(repo, &memoryDenyList{}, nil)
	base := time.Now().UTC()
	svc.now = func() time.Time { return base }

	session, err := svc.SignIn(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secreto"})
	require.NoError(t, err)

	state, err := svc.ResolveSession(context.Background(), session.AccessToken, session.RefreshToken, RequestMeta{})
	require.NoError(t, err)
	assert.Nil(t, state.Refreshed)
	assert.Equal(t, "u1", state.Claims.UserID)

	svc.now = func() time.Time { return base.Add(58 * time.Minute) }
	state, err = svc.ResolveSession(context.Background(), session.AccessToken, session.RefreshToken, RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, state.Refreshed)
	assert.Equal(t, "u1", state.Claims.UserID)

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	state, err = svc.ResolveSession(context.Background(), session.AccessToken, state.Refreshed.RefreshToken, RequestMeta{})
	require.NoError(t, err, "expired access token with valid refresh token must rotate")
	require.NotNil(t, state.Refreshed)
}

func TestAuthServiceResolveSessionWithoutCredentials(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), &memoryDenyList{}, nil)

	_, err := svc.ResolveSession(context.Background(), "", "", RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ResolveSession(context.Background(), "garbage", "unknown", RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceSignOutDenyListsAccessToken(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", Role: models.RoleStudent, IsActive: true, PasswordHash: hashedPassword(t, "secreto")})
	deny := &memoryDenyList{}
	svc := newTestAuthService(repo, deny, nil)

	session, err := svc.SignIn(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secreto"})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), session.AccessToken, session.RefreshToken, RequestMeta{}))
	assert.Len(t, deny.denied, 1)
	assert.True(t, repo.refreshTokens[hashToken(session.RefreshToken)].Revoked)

	_, err = svc.Authenticate(context.Background(), session.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestForgotPasswordSucceedsWhenQueueIsFull(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", Role: models.RoleStudent, IsActive: true, PasswordHash: hashedPassword(t, "secreto")})
	queue := &recordingQueue{err: jobs.ErrQueueFull}
	svc := newTestAuthService(repo, &memoryDenyList{}, queue)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ResetPasswordRequest{Email: "ana@example.com"}))
	assert.Empty(t, queue.jobs)
}

func TestAuthServiceForgotAndResetPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.Profile{ID: "u1", Email: "ana@example.com", FullName: "Ana", Role: models.RoleStudent, IsActive: true, PasswordHash: hashedPassword(t, "secreto")})
	queue := &recordingQueue{}
	svc := newTestAuthService(repo, &memoryDenyList{}, queue)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ResetPasswordRequest{Email: "nadie@example.com"}))
	assert.Empty(t, queue.jobs)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ResetPasswordRequest{Email: "ana@example.com"}))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobSendMail, queue.jobs[0].Type)
	msg := queue.jobs[0].Payload.(mailer.Message)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Contains(t, msg.Text, "http://localhost:8080/reset-password?token=")

	var raw string
	for hash := range repo.resets {
		raw = hash
	}
	require.NotEmpty(t, raw)

	// Recover the raw token from the mailed link.
	token := msg.Text[len("Hola Ana,\n\nPara crear una nueva contraseña visita:\nhttp://localhost:8080/reset-password?token="):]
	token = token[:len(token)-len("\n\nSi no solicitaste este cambio ignora este mensaje.")]
	require.Equal(t, raw, hashToken(token))

	require.NoError(t, svc.ResetPassword(context.Background(), models.ConfirmResetPasswordRequest{Token: token, NewPassword: "nuevaclave"}))
	assert.Contains(t, repo.revokedAllFor, "u1")

	_, err := svc.SignIn(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "nuevaclave"})
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ConfirmResetPasswordRequest{Token: token, NewPassword: "otraclave"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "reset tokens are single use")
}
