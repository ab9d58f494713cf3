package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/tokencache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Name is the provider name reported in provider.User.
const Name = "local"

// Error codes attached to provider.Error by this backend.
const (
	CodeInvalidCredentials = "INVALID_LOGIN_CREDENTIALS"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeUserDisabled       = "USER_DISABLED"
	CodeStorage            = "STORAGE_UNAVAILABLE"
)

// Options configures a Service. Redis and Tokens are required.
type Options struct {
	Redis    redis.UniversalClient
	Prefix   string
	Password password.Config
	Rate     rate.Config
	Tokens   jwt.Config
	// SessionTTL defaults to Tokens.TTL.
	SessionTTL time.Duration
	// Cache defaults to an in-memory cache.
	Cache  tokencache.Cache
	Logger *slog.Logger
}

// Service is an in-process identity provider. It implements provider.Client.
type Service struct {
	redis      redis.UniversalClient
	prefix     string
	hasher     *password.Argon2
	limiter    *rate.Limiter
	tokens     *jwt.Manager
	sessions   *session.Store
	cache      tokencache.Cache
	sessionTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

type userRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Disabled     bool      `json:"disabled,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

var _ provider.Client = (*Service)(nil)

// New validates opts and returns a Service.
func New(opts Options) (*Service, error) {
	if opts.Redis == nil {
		return nil, errors.New("local provider requires a redis client")
	}
	if opts.Prefix == "" {
		opts.Prefix = "gs"
	}
	if opts.Password == (password.Config{}) {
		opts.Password = password.DefaultConfig()
	}
	hasher, err := password.NewArgon2(opts.Password)
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	tokens, err := jwt.NewManager(opts.Tokens)
	if err != nil {
		return nil, fmt.Errorf("token config: %w", err)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = opts.Tokens.TTL
	}
	if opts.Cache == nil {
		opts.Cache = tokencache.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rate.Prefix == "" {
		opts.Rate.Prefix = opts.Prefix
	}

	return &Service{
		redis:      opts.Redis,
		prefix:     opts.Prefix,
		hasher:     hasher,
		limiter:    rate.New(opts.Redis, opts.Rate),
		tokens:     tokens,
		sessions:   session.NewStore(opts.Redis, opts.Prefix),
		cache:      opts.Cache,
		sessionTTL: opts.SessionTTL,
		logger:     opts.Logger.With("provider", Name),
		now:        time.Now,
	}, nil
}

// Name implements provider.Client.
func (s *Service) Name() string { return Name }

// SignIn verifies the password for email and starts a session.
func (s *Service) SignIn(ctx context.Context, email, pw string) (provider.User, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return provider.User{}, err
	}

	if err := s.limiter.CheckSignIn(ctx, key); err != nil {
		return provider.User{}, s.limiterError(ctx, err)
	}

	rec, found, err := s.loadUser(ctx, key)
	if err != nil {
		return provider.User{}, storageError(ctx, err)
	}
	if !found {
		s.recordFailure(ctx, key)
		return provider.User{}, provider.NewError(provider.KindInvalidCredentials, CodeInvalidCredentials, nil)
	}

	ok, err := s.hasher.Verify(pw, rec.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}
	if !ok {
		s.recordFailure(ctx, key)
		return provider.User{}, provider.NewError(provider.KindInvalidCredentials, CodeInvalidCredentials, nil)
	}
	if rec.Disabled {
		return provider.User{}, provider.NewError(provider.KindUserDisabled, CodeUserDisabled, nil)
	}

	if err := s.limiter.ResetSignIn(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "reset sign-in counter failed", "error", err)
	}
	s.maybeUpgradeHash(ctx, key, rec, pw)

	return s.startSession(ctx, rec)
}

// SignUp creates an account for email and starts a session.
func (s *Service) SignUp(ctx context.Context, email, pw string) (provider.User, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return provider.User{}, err
	}
	if err := s.hasher.CheckPolicy(pw); err != nil {
		return provider.User{}, provider.NewError(provider.KindWeakPassword, CodeWeakPassword, err)
	}
	if err := s.limiter.EnforceSignUp(ctx, key); err != nil {
		return provider.User{}, s.limiterError(ctx, err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}
	rec := userRecord{
		ID:           uuid.NewString(),
		Email:        key,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}

	created, err := s.redis.SetNX(ctx, s.userKey(key), data, 0).Result()
	if err != nil {
		return provider.User{}, storageError(ctx, err)
	}
	if !created {
		return provider.User{}, provider.NewError(provider.KindEmailExists, CodeEmailExists, nil)
	}

	return s.startSession(ctx, &rec)
}

// SignOut ends the cached session. Signing out with nothing cached succeeds.
func (s *Service) SignOut(ctx context.Context) error {
	tok, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "token cache unreadable during sign-out", "error", err)
	}
	if ok && tok.RefreshToken != "" {
		if err := s.sessions.Delete(ctx, tok.RefreshToken); err != nil {
			// Keep the cache so a later sign-out can retry the revocation.
			return storageError(ctx, err)
		}
	}
	if err := s.cache.Clear(ctx); err != nil {
		return provider.NewError(provider.KindUnknown, "", err)
	}
	return nil
}

// CurrentUser reports the user of the cached session. The ID token must
// verify and, when Redis is reachable, the session must still exist.
func (s *Service) CurrentUser(ctx context.Context) (provider.User, bool) {
	tok, ok, err := s.cache.Load(ctx)
	if err != nil || !ok || tok.Provider != Name {
		return provider.User{}, false
	}

	claims, err := s.tokens.ParseID(tok.IDToken)
	if err != nil || claims.UID != tok.UserID {
		return provider.User{}, false
	}

	if _, err := s.sessions.Get(ctx, claims.SID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			if clearErr := s.cache.Clear(ctx); clearErr != nil {
				s.logger.WarnContext(ctx, "clear revoked token failed", "error", clearErr)
			}
			return provider.User{}, false
		}
		s.logger.DebugContext(ctx, "session lookup failed, trusting token", "error", err)
	}

	u := provider.User{ID: claims.UID, Email: claims.Email, Provider: Name}
	if claims.IssuedAt != nil {
		u.SignedInAt = claims.IssuedAt.Time
	}
	return u, true
}

// SetDisabled marks the account for email disabled or enabled. Disabled
// accounts cannot sign in.
func (s *Service) SetDisabled(ctx context.Context, email string, disabled bool) error {
	key, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	rec, found, err := s.loadUser(ctx, key)
	if err != nil {
		return storageError(ctx, err)
	}
	if !found {
		return fmt.Errorf("no account for %s", key)
	}
	rec.Disabled = disabled
	return s.storeUser(ctx, key, rec)
}

// ActiveSessions returns the number of live sessions held by the service.
func (s *Service) ActiveSessions(ctx context.Context) (int, error) {
	return s.sessions.ActiveCount(ctx)
}

func (s *Service) startSession(ctx context.Context, rec *userRecord) (provider.User, error) {
	s.revokeCached(ctx)

	now := s.now().UTC()
	sess := &session.Session{
		SessionID: uuid.NewString(),
		UserID:    rec.ID,
		Email:     rec.Email,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.sessionTTL).Unix(),
	}
	if err := s.sessions.Save(ctx, sess, s.sessionTTL); err != nil {
		return provider.User{}, storageError(ctx, err)
	}

	idToken, expiresAt, err := s.tokens.CreateID(rec.ID, rec.Email, sess.SessionID)
	if err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}

	tok := tokencache.Token{
		UserID:       rec.ID,
		Email:        rec.Email,
		IDToken:      idToken,
		RefreshToken: sess.SessionID,
		ExpiresAt:    expiresAt,
		Provider:     Name,
	}
	if err := s.cache.Save(ctx, tok); err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}

	s.logger.DebugContext(ctx, "session started", "user_id", rec.ID)
	return provider.User{ID: rec.ID, Email: rec.Email, Provider: Name, SignedInAt: now}, nil
}

// revokeCached deletes the session of a previously cached token so a new
// sign-in does not leave it dangling.
func (s *Service) revokeCached(ctx context.Context) {
	tok, ok, err := s.cache.Load(ctx)
	if err != nil || !ok || tok.RefreshToken == "" {
		return
	}
	if err := s.sessions.Delete(ctx, tok.RefreshToken); err != nil {
		s.logger.WarnContext(ctx, "revoke previous session failed", "error", err)
	}
}

func (s *Service) maybeUpgradeHash(ctx context.Context, key string, rec *userRecord, pw string) {
	upgrade, err := s.hasher.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return
	}
	rec.PasswordHash = hash
	if err := s.storeUser(ctx, key, rec); err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed", "error", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, key string) {
	if err := s.limiter.RecordSignInFailure(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "record sign-in failure failed", "error", err)
	}
}

func (s *Service) loadUser(ctx context.Context, key string) (*userRecord, bool, error) {
	data, err := s.redis.Get(ctx, s.userKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("decode user record: %w", err)
	}
	return &rec, true, nil
}

func (s *Service) storeUser(ctx context.Context, key string, rec *userRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.userKey(key), data, 0).Err(); err != nil {
		return storageError(ctx, err)
	}
	return nil
}

func (s *Service) userKey(email string) string {
	return s.prefix + ":user:" + email
}

func (s *Service) limiterError(ctx context.Context, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return provider.NewError(provider.KindRateLimited, CodeTooManyAttempts, err)
	}
	return storageError(ctx, err)
}

func normalizeEmail(email string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(key, '@')
	if at <= 0 || at == len(key)-1 || strings.ContainsAny(key, " \t\r\n") {
		return "", provider.NewError(provider.KindInvalidEmail, CodeInvalidEmail, nil)
	}
	return key, nil
}

// storageError reports a backing-store failure. A finished caller context
// takes precedence so cancellation is not mistaken for an outage.
func storageError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return provider.NewError(provider.KindNetwork, CodeStorage, err)
}
