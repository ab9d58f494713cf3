package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/tokencache"
	"golang.org/x/time/rate"
)

// Name is the provider name reported in provider.User.
const Name = "rest"

const (
	// DefaultEndpoint is the hosted identity-toolkit base URL.
	DefaultEndpoint = "https://identitytoolkit.googleapis.com"
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 15 * time.Second
	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 1 << 20

	signInPath = "/v1/accounts:signInWithPassword"
	signUpPath = "/v1/accounts:signUp"

	// CodeClientThrottled marks calls refused by the local request limiter.
	CodeClientThrottled = "CLIENT_THROTTLED"
)

// ErrNotConfigured is returned by New when no API key is set.
var ErrNotConfigured = errors.New("identity api key not configured")

// Config configures a Client. APIKey is required.
type Config struct {
	Endpoint string
	APIKey   string
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client
	// Cache defaults to an in-memory cache.
	Cache tokencache.Cache
	// RequestsPerSecond and Burst bound outbound calls. Zero disables the
	// limiter.
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

// Client talks to a hosted identity-toolkit REST API. It implements
// provider.Client.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	cache    tokencache.Cache
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time
}

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ provider.Client = (*Client)(nil)

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Cache == nil {
		cfg.Cache = tokencache.NewMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestsPerSecond < 0 || cfg.Burst < 0 {
		return nil, errors.New("rate limit must not be negative")
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst == 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     cfg.HTTPClient,
		cache:    cfg.Cache,
		limiter:  limiter,
		logger:   cfg.Logger.With("provider", Name),
		now:      time.Now,
	}, nil
}

// Name implements provider.Client.
func (c *Client) Name() string { return Name }

// SignIn exchanges email and password for an ID token.
func (c *Client) SignIn(ctx context.Context, email, password string) (provider.User, error) {
	return c.authenticate(ctx, signInPath, email, password)
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (provider.User, error) {
	return c.authenticate(ctx, signUpPath, email, password)
}

// SignOut forgets the cached tokens. The hosted API keeps no session to end.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.cache.Clear(ctx); err != nil {
		return provider.NewError(provider.KindUnknown, "", err)
	}
	return nil
}

// CurrentUser reports the cached user. A cached refresh token counts as
// signed in even after the ID token expires.
func (c *Client) CurrentUser(ctx context.Context) (provider.User, bool) {
	tok, ok, err := c.cache.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "token cache unreadable", "error", err)
		return provider.User{}, false
	}
	if !ok || tok.Provider != Name || tok.RefreshToken == "" {
		return provider.User{}, false
	}
	return provider.User{ID: tok.UserID, Email: tok.Email, Provider: Name}, true
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (provider.User, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return provider.User{}, ctxErr
			}
			return provider.User{}, provider.NewError(provider.KindRateLimited, CodeClientThrottled, err)
		}
	}

	body, err := json.Marshal(credentialsRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}

	endpoint := c.endpoint + path + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return provider.User{}, ctxErr
		}
		return provider.User{}, provider.NewError(provider.KindNetwork, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return provider.User{}, provider.NewError(provider.KindNetwork, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return provider.User{}, classifyResponse(resp.StatusCode, data)
	}

	var out authResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", fmt.Errorf("decode response: %w", err))
	}
	if out.LocalID == "" || out.IDToken == "" {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", errors.New("response missing localId or idToken"))
	}

	now := c.now().UTC()
	tok := tokencache.Token{
		UserID:       out.LocalID,
		Email:        out.Email,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		Provider:     Name,
	}
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil && secs > 0 {
		tok.ExpiresAt = now.Add(time.Duration(secs) * time.Second)
	}
	if err := c.cache.Save(ctx, tok); err != nil {
		return provider.User{}, provider.NewError(provider.KindUnknown, "", err)
	}

	return provider.User{ID: out.LocalID, Email: out.Email, Provider: Name, SignedInAt: now}, nil
}

// classifyResponse maps an error body to a provider.Error. The message may
// carry detail after the code, as in "WEAK_PASSWORD : Password should be...".
func classifyResponse(status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	message := strings.TrimSpace(er.Error.Message)
	code, detail, _ := strings.Cut(message, ":")
	code = strings.TrimSpace(code)

	var cause error
	if detail = strings.TrimSpace(detail); detail != "" {
		cause = errors.New(detail)
	}

	if code == "" {
		cause = fmt.Errorf("http status %d", status)
		if status >= 500 {
			return provider.NewError(provider.KindNetwork, "", cause)
		}
		return provider.NewError(provider.KindUnknown, "", cause)
	}
	return provider.NewError(kindForCode(code, status), code, cause)
}

func kindForCode(code string, status int) provider.Kind {
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return provider.KindInvalidCredentials
	case "EMAIL_EXISTS":
		return provider.KindEmailExists
	case "WEAK_PASSWORD":
		return provider.KindWeakPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return provider.KindInvalidEmail
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return provider.KindRateLimited
	case "USER_DISABLED":
		return provider.KindUserDisabled
	}
	if status >= 500 {
		return provider.KindNetwork
	}
	return provider.KindUnknown
}
