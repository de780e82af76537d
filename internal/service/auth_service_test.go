package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/ledger"
	"github.com/mpcoop/portal/internal/mail"
	"github.com/mpcoop/portal/internal/obs"
	"github.com/mpcoop/portal/internal/repo"
	"github.com/mpcoop/portal/internal/util"
)

const testPassword = "Senha#Forte1"

var cheapParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type stubPrincipalRepo struct {
	mu         sync.Mutex
	principals map[uuid.UUID]repo.Principal
	err        error
}

func (s *stubPrincipalRepo) GetPrincipalByID(ctx context.Context, id uuid.UUID) (repo.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return repo.Principal{}, s.err
	}
	p, ok := s.principals[id]
	if !ok {
		return repo.Principal{}, repo.ErrNotFound
	}
	return p, nil
}

func (s *stubPrincipalRepo) GetPrincipalByEmail(ctx context.Context, email string) (repo.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return repo.Principal{}, s.err
	}
	for _, p := range s.principals {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return repo.Principal{}, repo.ErrNotFound
}

func (s *stubPrincipalRepo) SetPrincipalActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.update(id, func(p *repo.Principal) { p.Active = active })
}

func (s *stubPrincipalRepo) SetPrincipalSubscribed(ctx context.Context, id uuid.UUID, subscribed bool) error {
	return s.update(id, func(p *repo.Principal) { p.Subscribed = subscribed })
}

func (s *stubPrincipalRepo) UpdatePrincipalPassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	return s.update(id, func(p *repo.Principal) {
		p.PasswordHash = hash
		p.Salt = salt
	})
}

func (s *stubPrincipalRepo) update(id uuid.UUID, fn func(*repo.Principal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	p, ok := s.principals[id]
	if !ok {
		return repo.ErrNotFound
	}
	fn(&p)
	s.principals[id] = p
	return nil
}

func (s *stubPrincipalRepo) get(id uuid.UUID) repo.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principals[id]
}

type stubNotifier struct {
	sent []mail.Message
}

func (n *stubNotifier) Send(ctx context.Context, msg mail.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

type unavailableStore struct{}

func (unavailableStore) Put(ctx context.Context, rec ledger.Record) error {
	return errors.New("dial tcp: connection refused")
}

func (unavailableStore) Get(ctx context.Context, id string) (ledger.Record, error) {
	return ledger.Record{}, errors.New("dial tcp: connection refused")
}

func (unavailableStore) Invalidate(ctx context.Context, id, ownerID string) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

type fixture struct {
	svc       *AuthService
	repo      *stubPrincipalRepo
	notifier  *stubNotifier
	clock     *util.ManualClock
	jwt       *auth.JWTManager
	principal repo.Principal
}

func defaultOptions() AuthOptions {
	return AuthOptions{
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		ActivationTTL:  time.Hour,
		UnsubscribeTTL: 15 * time.Minute,
		ResetTTL:       3 * time.Minute,
	}
}

func newFixture(t *testing.T, opts AuthOptions, store ledger.Store) *fixture {
	t.Helper()

	clock := util.NewManualClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	jwtMgr, err := auth.NewJWTManager(strings.Repeat("k", 32), "HS256", clock)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	hasher := auth.NewHasher(cheapParams)

	salt := auth.NewSalt()
	hash, err := hasher.Hash(testPassword, salt)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	principal := repo.Principal{
		ID:           uuid.New(),
		Email:        "ana@coop.org",
		FirstName:    "Ana",
		Role:         auth.RoleBoard,
		Active:       true,
		Subscribed:   true,
		PasswordHash: hash,
		Salt:         salt,
	}
	repoStub := &stubPrincipalRepo{principals: map[uuid.UUID]repo.Principal{principal.ID: principal}}

	if store == nil {
		store = ledger.NewMemoryStore()
	}
	notifier := &stubNotifier{}
	svc := NewAuthService(
		repoStub,
		ledger.New(store, clock, time.Second),
		jwtMgr,
		hasher,
		notifier,
		mail.Links{BaseURL: "https://portal.coop.org"},
		obs.NewMetrics(),
		opts,
	)

	return &fixture{svc: svc, repo: repoStub, notifier: notifier, clock: clock, jwt: jwtMgr, principal: principal}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, "ANA@coop.org", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if first.Role != auth.RoleBoard || first.Subject != f.principal.ID.String() {
		t.Fatalf("unexpected login result: %+v", first)
	}

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	if _, err := f.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}

	f.svc.Logout(ctx, second.RefreshToken)
	if _, err := f.svc.Refresh(ctx, second.RefreshToken); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}
}

func TestRefreshKeepsOwnerAndRole(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, f.principal.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	f.clock.Advance(time.Hour)
	refreshed, err := f.svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	claims, err := f.jwt.Decode(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	if claims.Type != auth.TokenAccess || claims.Subject != f.principal.ID.String() || claims.Role != auth.RoleBoard {
		t.Fatalf("unexpected access claims: %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(f.clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", claims.ExpiresAt.Time)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, f.principal.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	f.clock.Advance(8 * 24 * time.Hour)
	if _, err := f.svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshRejectsWrongTokens(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, f.principal.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	for name, token := range map[string]string{
		"empty":   "",
		"garbage": "not-a-jwt",
		"access":  login.AccessToken,
	} {
		if _, err := f.svc.Refresh(ctx, token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	if _, err := f.svc.Login(ctx, "ghost@coop.org", testPassword); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(ctx, f.principal.Email, "Errada#123"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}

	_ = f.repo.SetPrincipalActive(ctx, f.principal.ID, false)
	if _, err := f.svc.Login(ctx, f.principal.Email, testPassword); !errors.Is(err, auth.ErrAccountDisabled) {
		t.Fatalf("inactive: expected ErrAccountDisabled, got %v", err)
	}

	f.repo.err = errors.New("pool closed")
	if _, err := f.svc.Login(ctx, f.principal.Email, testPassword); !errors.Is(err, auth.ErrStoreUnavailable) {
		t.Fatalf("repo failure: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestLoginLedgerUnavailable(t *testing.T) {
	f := newFixture(t, defaultOptions(), unavailableStore{})
	_, err := f.svc.Login(context.Background(), f.principal.Email, testPassword)
	if !errors.Is(err, auth.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatal("store failure must not look like bad credentials")
	}
}

func TestLogoutNeverFails(t *testing.T) {
	f := newFixture(t, defaultOptions(), unavailableStore{})
	ctx := context.Background()

	f.svc.Logout(ctx, "")
	f.svc.Logout(ctx, "garbage")

	claims := f.jwt.NewClaims(auth.TokenRefresh, f.principal.ID.String(), time.Hour)
	claims.Role = auth.RoleBoard
	claims.ID = "unknown"
	token, err := f.jwt.Encode(claims)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.svc.Logout(ctx, token)
}

func TestResolveCaller(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, defaultOptions(), nil)
	login, err := f.svc.Login(ctx, f.principal.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	p, err := f.svc.ResolveCaller(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("resolve access: %v", err)
	}
	if p.ID != f.principal.ID {
		t.Fatalf("unexpected principal %s", p.ID)
	}

	if _, err := f.svc.ResolveCaller(ctx, login.RefreshToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("refresh as identity must be rejected by default, got %v", err)
	}
	if _, err := f.svc.ResolveCaller(ctx, "garbage"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	activation, err := f.svc.IssueActivationToken(f.principal)
	if err != nil {
		t.Fatalf("activation token: %v", err)
	}
	if _, err := f.svc.ResolveCaller(ctx, activation); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("single-purpose token must not resolve a caller, got %v", err)
	}

	f.clock.Advance(16 * time.Minute)
	if _, err := f.svc.ResolveCaller(ctx, login.AccessToken); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expired access token: expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveCallerAcceptsRefreshWhenEnabled(t *testing.T) {
	opts := defaultOptions()
	opts.AcceptRefreshAsIdentity = true
	f := newFixture(t, opts, nil)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, f.principal.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := f.svc.ResolveCaller(ctx, login.RefreshToken); err != nil {
		t.Fatalf("expected refresh token to resolve, got %v", err)
	}
}

func TestResolveCallerMissingOrDisabledPrincipal(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, f.principal.Email, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	_ = f.repo.SetPrincipalActive(ctx, f.principal.ID, false)
	if _, err := f.svc.ResolveCaller(ctx, login.AccessToken); !errors.Is(err, auth.ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}

	f.repo.mu.Lock()
	delete(f.repo.principals, f.principal.ID)
	f.repo.mu.Unlock()
	if _, err := f.svc.ResolveCaller(ctx, login.AccessToken); !errors.Is(err, auth.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestActivationFlow(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()
	_ = f.repo.SetPrincipalActive(ctx, f.principal.ID, false)

	if err := f.svc.SendActivation(ctx, f.principal.ID); err != nil {
		t.Fatalf("send activation: %v", err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != mail.KindActivation {
		t.Fatalf("expected one activation message, got %+v", f.notifier.sent)
	}
	msg := f.notifier.sent[0]
	token := tokenFromLink(t, msg.Link)
	unsubscribe := tokenFromLink(t, msg.UnsubscribeLink)

	if err := f.svc.ActivateAccount(ctx, "outra@coop.org", token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("wrong email: expected ErrInvalidToken, got %v", err)
	}
	if err := f.svc.ActivateAccount(ctx, f.principal.Email, unsubscribe); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("wrong type: expected ErrInvalidToken, got %v", err)
	}
	if err := f.svc.ActivateAccount(ctx, f.principal.Email, token); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !f.repo.get(f.principal.ID).Active {
		t.Fatal("expected principal to be active")
	}

	if err := f.svc.SendActivation(ctx, uuid.New()); !errors.Is(err, auth.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestActivationTokenExpires(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	token, err := f.svc.IssueActivationToken(f.principal)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.clock.Advance(time.Hour + time.Second)
	if err := f.svc.ActivateAccount(context.Background(), f.principal.Email, token); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if !f.jwt.IsExpired(token) {
		t.Fatal("expected IsExpired to report the token as expired")
	}
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	token, err := f.svc.IssueUnsubscribeToken(f.principal)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.svc.Unsubscribe(ctx, "", token); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing email: expected ErrInvalidInput, got %v", err)
	}
	if err := f.svc.Unsubscribe(ctx, " Ana@Coop.org ", token); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if f.repo.get(f.principal.ID).Subscribed {
		t.Fatal("expected principal to be unsubscribed")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, defaultOptions(), nil)
	ctx := context.Background()

	if err := f.svc.RequestPasswordReset(ctx, "ghost@coop.org"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatal("no message expected for unknown email")
	}
	if err := f.svc.RequestPasswordReset(ctx, "not-an-email"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if err := f.svc.RequestPasswordReset(ctx, f.principal.Email); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != mail.KindPasswordReset {
		t.Fatalf("expected one reset message, got %+v", f.notifier.sent)
	}
	token := tokenFromLink(t, f.notifier.sent[0].Link)

	if err := f.svc.ResetPassword(ctx, token, "fraca"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("weak password: expected ErrInvalidInput, got %v", err)
	}

	const newPassword = "Nova#Senha9"
	if err := f.svc.ResetPassword(ctx, token, newPassword); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.svc.Login(ctx, f.principal.Email, testPassword); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.svc.Login(ctx, f.principal.Email, newPassword); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	f.clock.Advance(3*time.Minute + time.Second)
	if err := f.svc.ResetPassword(ctx, token, "Outra#Senha9"); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
