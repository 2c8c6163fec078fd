package services

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/sessionctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, req client.LoginRequest) (*models.AuthSession, error) {
	args := m.Called(ctx, req)
	if auth := args.Get(0); auth != nil {
		return auth.(*models.AuthSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthenticator) Register(ctx context.Context, req client.RegisterRequest) (*models.AuthSession, error) {
	args := m.Called(ctx, req)
	if auth := args.Get(0); auth != nil {
		return auth.(*models.AuthSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestAccountService_LoginStoresContext(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	auth := new(MockAuthenticator)
	auth.On("Login", mock.Anything, client.LoginRequest{Email: "ana@example.com", Password: "pw"}).
		Return(&models.AuthSession{Token: "tok", User: models.User{ID: "u1", Email: "ana@example.com", Language: "pt"}}, nil)

	svc := NewAccountService(auth, ClientBackend(h.client), h.manager, nil, discardLogger())
	sc := sessionctx.New(h.cache, "client-1", time.Hour)

	user, err := svc.Login(ctx, sc, client.LoginRequest{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, models.ID("u1"), user.ID)

	token, err := sc.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "pt", sc.Language(ctx, "en"))
	auth.AssertExpectations(t)
}

func TestAccountService_LoginFailure(t *testing.T) {
	h := newHarness(t)
	auth := new(MockAuthenticator)
	auth.On("Login", mock.Anything, mock.Anything).Return(nil, ErrAuthRequired)

	svc := NewAccountService(auth, ClientBackend(h.client), h.manager, nil, discardLogger())
	_, err := svc.Login(context.Background(), sessionctx.New(h.cache, "client-1", time.Hour), client.LoginRequest{Email: "x@y.z"})
	assert.True(t, IsAuthRequired(err))
}

func TestAccountService_LogoutDropsSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sc := h.context(t, "opaque-token")

	_, err := h.service.Initialize(ctx, InitializeRequest{Test: "moca"}, sc)
	require.NoError(t, err)
	require.Equal(t, 1, h.manager.Len())

	svc := NewAccountService(new(MockAuthenticator), ClientBackend(h.client), h.manager, nil, discardLogger())
	require.NoError(t, svc.Logout(ctx, sc))

	assert.Equal(t, 0, h.manager.Len())
	user, err := sc.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestAccountService_SetLanguageUpdatesProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sc := h.context(t, "opaque-token")

	svc := NewAccountService(new(MockAuthenticator), ClientBackend(h.client), h.manager, nil, discardLogger())
	require.NoError(t, svc.SetLanguage(ctx, sc, "pt-BR"))

	assert.Equal(t, "pt-BR", sc.Language(ctx, "en"))
	assert.Equal(t, 1, h.backend.callCount("PATCH /v1/users/{id}"))
	user, err := sc.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", user.Language)
}
