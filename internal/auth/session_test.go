package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"complaintdesk/internal/account"
	apperrors "complaintdesk/internal/errors"
	"complaintdesk/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
	cookies []*http.Cookie
	resets  int
}

func (m *mockClient) Login(ctx context.Context, creds account.Credentials) (account.Role, error) {
	args := m.Called(creds)
	return args.Get(0).(account.Role), args.Error(1)
}

func (m *mockClient) Logout(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockClient) Profile(ctx context.Context) (account.Profile, error) {
	args := m.Called()
	return args.Get(0).(account.Profile), args.Error(1)
}

func (m *mockClient) Cookies() []*http.Cookie            { return m.cookies }
func (m *mockClient) SetCookies(cookies []*http.Cookie) { m.cookies = cookies }
func (m *mockClient) ResetSession() {
	m.resets++
	m.cookies = nil
}

var creds = account.Credentials{Mail: "admin@uni.edu", Password: "secret"}

func openStore(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.Open(storage.Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestManager(client Client, st SessionStore, retries int) (*Manager, *[]time.Duration) {
	m := NewManager(client, st, Options{Credentials: creds, MaxRetries: retries, RetryDelay: 5 * time.Second}, zerolog.Nop())
	var slept []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, &slept
}

func TestLoginPersistsSession(t *testing.T) {
	client := &mockClient{}
	client.On("Login", creds).Run(func(mock.Arguments) {
		client.cookies = []*http.Cookie{{Name: "session", Value: "abc"}, {Name: "role", Value: "admin"}}
	}).Return(account.RoleAdmin, nil)
	st := openStore(t)

	m, _ := newTestManager(client, st, 1)
	role, err := m.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, role)
	assert.Equal(t, account.RoleAdmin, m.Role())

	sess, ok, err := st.LoadSession()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, account.RoleAdmin, sess.Role)
	assert.Len(t, sess.Cookies, 2)
}

func TestLoginWithoutRoleFails(t *testing.T) {
	client := &mockClient{}
	client.On("Login", creds).Return(account.Role(""), nil)

	m, _ := newTestManager(client, nil, 1)
	_, err := m.Login(context.Background(), creds)
	assert.True(t, apperrors.IsLoginFailed(err))
}

func TestLoginWithRetry(t *testing.T) {
	refused := apperrors.NewLoginFailedError("bad credentials", nil)

	t.Run("succeeds on third attempt", func(t *testing.T) {
		client := &mockClient{}
		client.On("Login", creds).Return(account.Role(""), refused).Twice()
		client.On("Login", creds).Return(account.RoleStudent, nil).Once()

		m, slept := newTestManager(client, nil, 3)
		role, err := m.LoginWithRetry(context.Background())
		require.NoError(t, err)
		assert.Equal(t, account.RoleStudent, role)
		assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *slept)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		client := &mockClient{}
		client.On("Login", creds).Return(account.Role(""), refused)

		m, slept := newTestManager(client, nil, 3)
		_, err := m.LoginWithRetry(context.Background())
		assert.ErrorIs(t, err, refused)
		client.AssertNumberOfCalls(t, "Login", 3)
		assert.Len(t, *slept, 2)
	})

	t.Run("validation is not retried", func(t *testing.T) {
		client := &mockClient{}
		client.On("Login", creds).Return(account.Role(""), apperrors.NewValidationError("mail", "must not be empty"))

		m, _ := newTestManager(client, nil, 3)
		_, err := m.LoginWithRetry(context.Background())
		assert.True(t, apperrors.IsValidation(err))
		client.AssertNumberOfCalls(t, "Login", 1)
	})
}

func TestReloginResetsSessionAfterFailures(t *testing.T) {
	refused := apperrors.NewLoginFailedError("stale cookie", nil)
	client := &mockClient{cookies: []*http.Cookie{{Name: "session", Value: "stale"}}}
	client.On("Login", creds).Return(account.Role(""), refused).Twice()
	client.On("Login", creds).Return(account.RoleAdmin, nil).Once()

	m, _ := newTestManager(client, nil, 2)
	role, err := m.Relogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, role)
	assert.Equal(t, 1, client.resets)
}

func TestEnsureSession(t *testing.T) {
	saved := storage.NewSession([]*http.Cookie{{Name: "session", Value: "abc"}}, account.RoleStudent)

	t.Run("valid saved session skips login", func(t *testing.T) {
		st := openStore(t)
		require.NoError(t, st.SaveSession(saved))
		client := &mockClient{}
		client.On("Profile").Return(account.Profile{RegNo: "21BCE001"}, nil)

		m, _ := newTestManager(client, st, 1)
		role, err := m.EnsureSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, account.RoleStudent, role)
		assert.Equal(t, "abc", client.cookies[0].Value)
		client.AssertNotCalled(t, "Login", mock.Anything)
	})

	t.Run("expired saved session logs in again", func(t *testing.T) {
		st := openStore(t)
		require.NoError(t, st.SaveSession(saved))
		client := &mockClient{}
		client.On("Profile").Return(account.Profile{}, apperrors.NewRequestError("GET", "/user/profile", 401, "", apperrors.NewUnauthorizedError(401, "expired")))
		client.On("Login", creds).Return(account.RoleStudent, nil)

		m, _ := newTestManager(client, st, 1)
		_, err := m.EnsureSession(context.Background())
		require.NoError(t, err)
		client.AssertCalled(t, "Login", creds)
	})

	t.Run("no saved session logs in", func(t *testing.T) {
		client := &mockClient{}
		client.On("Login", creds).Return(account.RoleAdmin, nil)

		m, _ := newTestManager(client, openStore(t), 1)
		role, err := m.EnsureSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, account.RoleAdmin, role)
		client.AssertNotCalled(t, "Profile")
	})
}

func TestLogoutClearsLocalState(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.SaveSession(storage.NewSession(nil, account.RoleAdmin)))

	client := &mockClient{cookies: []*http.Cookie{{Name: "session", Value: "abc"}}}
	client.On("Logout").Return(apperrors.NewRequestError("GET", "/user/logout", 0, "", nil))

	m, _ := newTestManager(client, st, 1)
	err := m.Logout(context.Background())
	assert.True(t, apperrors.IsRequest(err))

	_, ok, err := st.LoadSession()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, client.cookies)
	assert.Equal(t, account.Role(""), m.Role())
}
