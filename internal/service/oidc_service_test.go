package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
)

type stubExchanger struct {
	claims *IdentityClaims
	err    error
}

func (s *stubExchanger) AuthCodeURL(state string) string { return "https://idp.example.com/auth?state=" + state }

func (s *stubExchanger) Exchange(ctx context.Context, code string) (*IdentityClaims, error) {
	return s.claims, s.err
}

type stubOIDCUsers struct {
	bySubject map[string]*models.Profile
	byEmail   map[string]*models.Profile
	linked    map[string]string
	created   []*models.Profile
}

func (s *stubOIDCUsers) FindByOIDCSubject(ctx context.Context, subject string) (*models.Profile, error) {
	if p, ok := s.bySubject[subject]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubOIDCUsers) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if p, ok := s.byEmail[email]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubOIDCUsers) LinkOIDCSubject(ctx context.Context, id, subject string) error {
	if s.linked == nil {
		s.linked = map[string]string{}
	}
	s.linked[id] = subject
	return nil
}

func (s *stubOIDCUsers) CreateIfMissing(ctx context.Context, profile *models.Profile) (bool, error) {
	s.created = append(s.created, profile)
	return true, nil
}

type stubIssuer struct {
	issuedFor []string
}

func (s *stubIssuer) IssueSession(ctx context.Context, profile *models.Profile, meta RequestMeta) (*models.Session, error) {
	s.issuedFor = append(s.issuedFor, profile.ID)
	return &models.Session{AccessToken: "a", RefreshToken: "r", User: userInfo(profile)}, nil
}

func TestOIDCBeginReturnsState(t *testing.T) {
	svc := newOIDCService(&stubExchanger{}, &stubOIDCUsers{}, &stubIssuer{}, nil)
	state, url, err := svc.Begin()
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.Contains(t, url, state)
}

func TestOIDCCompleteLinksExistingEmail(t *testing.T) {
	users := &stubOIDCUsers{byEmail: map[string]*models.Profile{"ana@example.com": {ID: "u1", Email: "ana@example.com", Role: models.RoleStudent, IsActive: true}}}
	issuer := &stubIssuer{}
	svc := newOIDCService(&stubExchanger{claims: &IdentityClaims{Subject: "sub-1", Email: "Ana@example.com", EmailVerified: true}}, users, issuer, nil)

	session, err := svc.Complete(context.Background(), "code", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "sub-1", users.linked["u1"])
	assert.Empty(t, users.created)
}

func TestOIDCCompleteCreatesProfileLazily(t *testing.T) {
	users := &stubOIDCUsers{}
	svc := newOIDCService(&stubExchanger{claims: &IdentityClaims{Subject: "sub-2", Email: "luis@example.com", EmailVerified: true}}, users, &stubIssuer{}, nil)

	session, err := svc.Complete(context.Background(), "code", RequestMeta{})
	require.NoError(t, err)
	require.Len(t, users.created, 1)
	assert.Equal(t, "luis", users.created[0].FullName)
	assert.Equal(t, models.RoleStudent, session.User.Role)
}

func TestOIDCCompleteRejectsUnverifiedEmail(t *testing.T) {
	svc := newOIDCService(&stubExchanger{claims: &IdentityClaims{Subject: "sub-3", Email: "x@example.com"}}, &stubOIDCUsers{}, &stubIssuer{}, nil)
	_, err := svc.Complete(context.Background(), "code", RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	svc = newOIDCService(&stubExchanger{err: errors.New("bad code")}, &stubOIDCUsers{}, &stubIssuer{}, nil)
	_, err = svc.Complete(context.Background(), "code", RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
