// AngelaMos | 2026
// client.go

package client

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
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	TokenKey    = "auth_token"
	PublicRoute = "/"
	LoginRoute  = "/login"

	defaultCacheSize = 128
	defaultCacheTTL  = 5 * time.Minute
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20

	codeTokenInvalid = "TOKEN_INVALID"
)

var ErrUnauthorized = errors.New("unauthorized")

// Navigator moves the user to another route. A CLI prints, a UI redirects.
type Navigator interface {
	Navigate(route string)
}

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Role            string     `json:"role"`
	Language        string     `json:"language"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLoginAt     *time.Time `json:"lastLoginAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of a login or registration the server answered.
// Success false carries the server's message and any field errors.
type Result struct {
	Success bool
	Message string
	User    *User
	Token   string
	Errors  []FieldError
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Language  string `json:"language,omitempty"`
}

// APIError is a non-2xx answer from a protected fetch that did not end the
// session.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

type Options struct {
	BaseURL    string
	Storage    Storage
	HTTPClient *http.Client
	Navigator  Navigator
	CacheSize  int
	CacheTTL   time.Duration
	Logger     *slog.Logger
}

// AuthContext holds the signed-in user for a client session and the token
// that proves it. Every call is an independent request.
type AuthContext struct {
	baseURL *url.URL
	storage Storage
	http    *http.Client
	nav     Navigator
	cache   *lru.LRU[string, []byte]
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	user    *User
	loading bool
}

func New(opts Options) (*AuthContext, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	storage := opts.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	nav := opts.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthContext{
		baseURL: base,
		storage: storage,
		http:    httpClient,
		nav:     nav,
		cache:   lru.NewLRU[string, []byte](size, nil, ttl),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// User returns a copy of the signed-in user.
func (a *AuthContext) User() (*User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.user == nil {
		return nil, false
	}
	u := *a.user
	return &u, true
}

func (a *AuthContext) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user != nil
}

func (a *AuthContext) IsLoading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

func (a *AuthContext) Token() (string, bool) {
	token, ok, err := a.storage.Get(TokenKey)
	if err != nil || !ok || token == "" {
		return "", false
	}
	return token, true
}

// Load restores the session from storage. Any failure leaves the context
// unauthenticated and the stored token untouched. A rejected token is not an
// error; transport and decode failures are.
func (a *AuthContext) Load(ctx context.Context) error {
	a.setLoading(true)
	defer a.setLoading(false)

	token, ok := a.Token()
	if !ok {
		a.setUser(nil)
		return nil
	}

	if tokenExpired(token, a.now()) {
		a.logger.DebugContext(ctx, "stored token expired, not restoring session")
		a.setUser(nil)
		return nil
	}

	status, body, err := a.do(ctx, http.MethodGet, "/api/auth/me", token, nil)
	if err != nil {
		a.setUser(nil)
		return err
	}

	if status != http.StatusOK {
		a.logger.DebugContext(ctx, "session restore rejected", "status", status)
		a.setUser(nil)
		return nil
	}

	var me struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		a.setUser(nil)
		return fmt.Errorf("decode me response: %w", err)
	}
	if me.User == nil {
		a.setUser(nil)
		return errors.New("decode me response: no user")
	}

	a.setUser(me.User)
	return nil
}

func (a *AuthContext) Login(ctx context.Context, email, password string) (*Result, error) {
	return a.authenticate(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (a *AuthContext) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	return a.authenticate(ctx, "/api/auth/register", in)
}

// Logout always ends the local session, whatever the server says.
func (a *AuthContext) Logout(ctx context.Context) {
	if token, ok := a.Token(); ok {
		if _, _, err := a.do(ctx, http.MethodPost, "/api/auth/logout", token, nil); err != nil {
			a.logger.DebugContext(ctx, "logout request failed", "error", err)
		}
	}

	if err := a.storage.Remove(TokenKey); err != nil {
		a.logger.WarnContext(ctx, "remove token", "error", err)
	}
	a.sweepStorage(ctx)

	a.cache.Purge()
	a.setUser(nil)
	a.nav.Navigate(PublicRoute)
}

// Get performs an authorized GET and decodes the body into out. Successful
// bodies are cached per path until the next login or logout. A missing or
// expired token, a 401, or a 403 TOKEN_INVALID ends the session and sends the
// user to the login route.
func (a *AuthContext) Get(ctx context.Context, path string, out any) error {
	token, ok := a.Token()
	if !ok || tokenExpired(token, a.now()) {
		return a.sessionRejected()
	}

	if body, ok := a.cache.Get(path); ok {
		return json.Unmarshal(body, out)
	}

	status, body, err := a.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		apiErr := &APIError{Status: status}
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		if status == http.StatusUnauthorized ||
			(status == http.StatusForbidden && apiErr.Code == codeTokenInvalid) {
			return a.sessionRejected()
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	a.cache.Add(path, body)
	return nil
}

// sessionRejected drops cached bodies and the in-memory user. The stored
// token is left for the next Login to replace.
func (a *AuthContext) sessionRejected() error {
	a.cache.Purge()
	a.setUser(nil)
	a.nav.Navigate(LoginRoute)
	return ErrUnauthorized
}

func (a *AuthContext) authenticate(ctx context.Context, path string, payload any) (*Result, error) {
	status, body, err := a.do(ctx, http.MethodPost, path, "", payload)
	if err != nil {
		return nil, err
	}

	var env authEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s response (status %d): %w", path, status, err)
	}

	if status >= 200 && status < 300 && env.Token != "" {
		if err := a.storage.Set(TokenKey, env.Token); err != nil {
			return nil, fmt.Errorf("store token: %w", err)
		}

		a.cache.Purge()
		a.setUser(env.User)

		return &Result{
			Success: true,
			Message: env.Message,
			User:    env.User,
			Token:   env.Token,
		}, nil
	}

	res := &Result{Success: false, Message: env.Message}
	if env.Error != nil {
		res.Message = env.Error.Message
		res.Errors = env.Error.Details
	}
	if res.Message == "" {
		res.Message = http.StatusText(status)
	}

	return res, nil
}

// sweepStorage removes every key that looks like it belongs to a session.
func (a *AuthContext) sweepStorage(ctx context.Context) {
	keys, err := a.storage.Keys()
	if err != nil {
		a.logger.WarnContext(ctx, "list storage keys", "error", err)
		return
	}

	for _, key := range keys {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "auth") ||
			strings.Contains(lower, "token") ||
			strings.Contains(lower, "user") {
			if err := a.storage.Remove(key); err != nil {
				a.logger.WarnContext(ctx, "remove storage key", "key", key, "error", err)
			}
		}
	}
}

func (a *AuthContext) do(
	ctx context.Context,
	method, path, token string,
	payload any,
) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL.String()+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func (a *AuthContext) setUser(u *User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = u
}

func (a *AuthContext) setLoading(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = v
}

// tokenExpired reads exp without verifying the signature. A token that cannot
// be parsed is treated as unusable.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return !now.Before(exp.Time)
}

type apiErrorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details"`
}

type errorEnvelope struct {
	Error *apiErrorBody `json:"error"`
}

type authEnvelope struct {
	Success bool          `json:"success"`
	User    *User         `json:"user"`
	Token   string        `json:"token"`
	Message string        `json:"message"`
	Error   *apiErrorBody `json:"error"`
}
