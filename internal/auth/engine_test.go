package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brunomssil/design_platform/internal/models"
	"github.com/Brunomssil/design_platform/internal/tokens"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*models.User{}}
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken

	markUsedErr  error
	revokeAllErr error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]*models.RefreshToken{}}
}

func (s *memTokenStore) FindByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTokenStore) Save(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.Token] = &cp
	return nil
}

func (s *memTokenStore) MarkUsed(_ context.Context, token string) error {
	if s.markUsedErr != nil {
		return s.markUsedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.IsUsed || t.IsInvalidated {
		return ErrTokenConflict
	}
	t.IsUsed = true
	return nil
}

func (s *memTokenStore) FindAllByUser(_ context.Context, userID string) ([]models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RefreshToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	if s.revokeAllErr != nil {
		return s.revokeAllErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.UserID == userID {
			t.IsInvalidated = true
		}
	}
	return nil
}

// fakeHasher keeps engine tests fast, the real Argon2id parameters are
// covered in the hash package tests.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, []byte, error) {
	return "hashed:" + password, []byte("salt"), nil
}

func (fakeHasher) Verify(password, encodedHash string, _ []byte) bool {
	return encodedHash == "hashed:"+password
}

type testEnv struct {
	engine *Engine
	users  *memUserStore
	tokens *memTokenStore
}

func newTestEnv() *testEnv {
	users := newMemUserStore()
	toks := newMemTokenStore()
	issuer := tokens.NewIssuer([]byte("test-jwt-secret"))
	return &testEnv{
		engine: NewEngine(users, toks, fakeHasher{}, issuer),
		users:  users,
		tokens: toks,
	}
}

func (env *testEnv) registerAndLogin(t *testing.T, email, password string) *TokenPair {
	t.Helper()
	_, err := env.engine.Register(context.Background(), email, password)
	require.NoError(t, err)
	pair, err := env.engine.Login(context.Background(), email, password)
	require.NoError(t, err)
	return pair
}

func TestRegisterThenLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()

	user, err := env.engine.Register(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, []string{"User"}, user.Roles)
	assert.NotEqual(t, "p1", user.PasswordHash)

	pair, err := env.engine.Login(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()

	_, err := env.engine.Register(ctx, "a@x.com", "p1")
	require.NoError(t, err)

	for _, password := range []string{"p1", "completely-different"} {
		_, err := env.engine.Register(ctx, "a@x.com", password)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	}
}

func TestLogin_WrongCredentialsIndistinguishable(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()

	_, err := env.engine.Register(ctx, "a@x.com", "p1")
	require.NoError(t, err)

	_, unknownEmailErr := env.engine.Login(ctx, "nobody@x.com", "p1")
	_, wrongPasswordErr := env.engine.Login(ctx, "a@x.com", "wrong")

	require.Error(t, unknownEmailErr)
	require.Error(t, wrongPasswordErr)
	assert.ErrorIs(t, unknownEmailErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPasswordErr, ErrInvalidCredentials)
	assert.Equal(t, unknownEmailErr.Error(), wrongPasswordErr.Error())
}

func TestLogin_PersistsRefreshTokenBeforeReturn(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	pair := env.registerAndLogin(t, "a@x.com", "p1")

	stored, err := env.tokens.FindByToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, stored.IsUsed)
	assert.False(t, stored.IsInvalidated)
	assert.WithinDuration(t, time.Now().Add(RefreshTokenTTL), stored.ExpiresAt, 5*time.Second)
}

func TestRefresh_RotatesPair(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	pair := env.registerAndLogin(t, "a@x.com", "p1")

	next, err := env.engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
	assert.NotEmpty(t, next.RefreshToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// old record stays as a tombstone
	old, err := env.tokens.FindByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, old.IsUsed)
}

func TestRefresh_UnknownToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv()

	_, err := env.engine.Refresh(context.Background(), "", "no-such-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()

	user, err := env.engine.Register(ctx, "a@x.com", "p1")
	require.NoError(t, err)

	expired := &models.RefreshToken{
		Token:     "expired-token",
		UserID:    user.ID,
		CreatedAt: time.Now().Add(-8 * 24 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.tokens.Save(ctx, expired))

	_, err = env.engine.Refresh(ctx, "", "expired-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefresh_OrphanedToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()

	orphan := &models.RefreshToken{
		Token:     "orphan-token",
		UserID:    "vanished-user",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(RefreshTokenTTL),
	}
	require.NoError(t, env.tokens.Save(ctx, orphan))

	_, err := env.engine.Refresh(ctx, "", "orphan-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefresh_ReplayLocksOutEverySession(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()

	first := env.registerAndLogin(t, "a@x.com", "p1")

	second, err := env.engine.Refresh(ctx, first.AccessToken, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// replaying the consumed token is the attack signal
	_, err = env.engine.Refresh(ctx, first.AccessToken, first.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenReuseDetected)

	// the mass revocation killed the legitimately rotated token too
	_, err = env.engine.Refresh(ctx, second.AccessToken, second.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenReuseDetected)

	user, err := env.users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	all, err := env.tokens.FindAllByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for _, tok := range all {
		assert.True(t, tok.IsInvalidated, "token %q should be invalidated", tok.Token)
	}
}

func TestRefresh_ConcurrentRedemption(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	pair := env.registerAndLogin(t, "a@x.com", "p1")

	const workers = 16

	var wg sync.WaitGroup
	results := make([]error, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
			results[i] = err
		}()
	}
	close(start)
	wg.Wait()

	var successes, failures int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		failures++
		assert.True(t,
			errors.Is(err, ErrTokenReuseDetected) || errors.Is(err, ErrInvalidOrExpiredToken),
			"unexpected failure kind: %v", err)
	}

	assert.Equal(t, 1, successes, "exactly one redemption may win")
	assert.Equal(t, workers-1, failures)

	// the contested token is burned for good
	_, err := env.engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenReuseDetected)

	stored, err := env.tokens.FindByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, stored.IsUsed || stored.IsInvalidated)
}

func TestRefresh_LostConditionalWrite(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	pair := env.registerAndLogin(t, "a@x.com", "p1")

	// simulate another request winning the conditional write between the
	// leak check and our own mark-used
	env.tokens.markUsedErr = ErrTokenConflict

	_, err := env.engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenReuseDetected)

	stored, err := env.tokens.FindByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, stored.IsInvalidated, "losing the race must trigger the full leak response")
}

func TestRefresh_RevocationFailureSurfaces(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	pair := env.registerAndLogin(t, "a@x.com", "p1")

	_, err := env.engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)

	// replay with a broken revocation path must fail loudly, not report
	// reuse as if the lockout had happened
	env.tokens.revokeAllErr = errors.New("store down")

	_, err = env.engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrTokenReuseDetected)
}

func TestRevokeAll(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	ctx := context.Background()
	pair := env.registerAndLogin(t, "a@x.com", "p1")

	user, err := env.users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, env.engine.RevokeAll(ctx, user.ID))

	_, err = env.engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenReuseDetected)
}
