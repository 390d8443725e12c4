package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/environ"
	"go.uber.org/zap"
)

// Environment keys written by the authentication middleware.
const (
	// UserKey holds the authenticated user object
	UserKey = "sbridge.User"
	// UserIDKey holds the authenticated user's id, when the user has one
	UserIDKey = "sbridge.UserId"
)

// AuthProvider defines an interface for authentication providers.
// Different authentication mechanisms can implement this interface
// to be used with the AuthenticationWithProvider middleware.
// The package includes BasicAuthProvider, BearerTokenProvider, and APIKeyProvider.
type AuthProvider interface {
	// Authenticate examines the request headers or query string in env and
	// returns true if the request is authenticated.
	Authenticate(env environ.Env) bool
}

// basicAuth decodes the Authorization header of env as Basic credentials.
func basicAuth(env environ.Env) (username, password string, ok bool) {
	r := &http.Request{Header: env.RequestHeaders().HTTPHeader()}
	return r.BasicAuth()
}

// bearerToken returns the token of a "Bearer" Authorization header.
func bearerToken(env environ.Env) (string, error) {
	authHeader := env.RequestHeaders().Get("Authorization")
	if authHeader == "" {
		return "", errors.New("no authorization header")
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", errors.New("invalid authorization header format")
	}
	return token, nil
}

// apiKey returns the key found in the header, or else in the query parameter.
func apiKey(env environ.Env, header, query string) string {
	if header != "" {
		if key := env.RequestHeaders().Get(header); key != "" {
			return key
		}
	}
	if query != "" {
		values, err := url.ParseQuery(env.QueryString())
		if err == nil {
			return values.Get(query)
		}
	}
	return ""
}

// BasicAuthProvider provides HTTP Basic Authentication.
// It validates username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
func (p *BasicAuthProvider) Authenticate(env environ.Env) bool {
	username, password, ok := basicAuth(env)
	if !ok {
		return false
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists {
		return false
	}

	return password == expectedPassword
}

// BearerTokenProvider provides Bearer Token Authentication.
// It can validate tokens against a predefined map or using a custom validator function.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate authenticates a request using Bearer Token Authentication.
// The validator function takes precedence over the ValidTokens map.
func (p *BearerTokenProvider) Authenticate(env environ.Env) bool {
	token, err := bearerToken(env)
	if err != nil {
		return false
	}

	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication.
// It can validate API keys provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate authenticates a request using API Key Authentication.
func (p *APIKeyProvider) Authenticate(env environ.Env) bool {
	if p.Header != "" {
		if key := env.RequestHeaders().Get(p.Header); key != "" && p.ValidKeys[key] {
			return true
		}
	}
	if p.Query != "" {
		values, err := url.ParseQuery(env.QueryString())
		if err == nil {
			if key := values.Get(p.Query); key != "" && p.ValidKeys[key] {
				return true
			}
		}
	}
	return false
}

// AuthenticationWithProvider is a middleware that checks if a request is authenticated
// using the provided auth provider. If authentication fails, it answers 401 Unauthorized
// and the rest of the pipeline is not invoked.
func AuthenticationWithProvider(provider AuthProvider, logger *zap.Logger) common.Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			if !provider.Authenticate(env) {
				logger.Warn("Authentication failed", LogFields(env,
					zap.String("remote_addr", remoteAddr(env)),
				)...)
				return WriteError(env, http.StatusUnauthorized, "Unauthorized")
			}
			return next(env)
		}
	}
}

// Authentication is a middleware that checks if a request is authenticated using a simple auth function.
func Authentication(authFunc func(environ.Env) bool) common.Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			if !authFunc(env) {
				return WriteError(env, http.StatusUnauthorized, "Unauthorized")
			}
			return next(env)
		}
	}
}

// NewBasicAuthMiddleware creates a middleware that uses HTTP Basic Authentication.
func NewBasicAuthMiddleware(credentials map[string]string, logger *zap.Logger) common.Middleware {
	return AuthenticationWithProvider(&BasicAuthProvider{Credentials: credentials}, logger)
}

// NewBearerTokenMiddleware creates a middleware that uses Bearer Token Authentication.
func NewBearerTokenMiddleware(validTokens map[string]bool, logger *zap.Logger) common.Middleware {
	return AuthenticationWithProvider(&BearerTokenProvider{ValidTokens: validTokens}, logger)
}

// NewBearerTokenValidatorMiddleware creates a middleware that uses Bearer Token Authentication
// with a custom validator function. This allows for more complex token validation logic,
// such as JWT validation or integration with external authentication services.
func NewBearerTokenValidatorMiddleware(validator func(string) bool, logger *zap.Logger) common.Middleware {
	return AuthenticationWithProvider(&BearerTokenProvider{Validator: validator}, logger)
}

// NewAPIKeyMiddleware creates a middleware that uses API Key Authentication.
func NewAPIKeyMiddleware(validKeys map[string]bool, header, query string, logger *zap.Logger) common.Middleware {
	return AuthenticationWithProvider(&APIKeyProvider{
		ValidKeys: validKeys,
		Header:    header,
		Query:     query,
	}, logger)
}

// UserAuthProvider defines an interface for authentication providers that return a user object.
type UserAuthProvider[T any] interface {
	// AuthenticateUser returns the user object if the request is authenticated,
	// nil and an error otherwise.
	AuthenticateUser(env environ.Env) (*T, error)
}

// Identified is implemented by user types that carry an id. The id is stored
// under UserIDKey, where per-user rate limiting finds it.
type Identified interface {
	UserID() string
}

// BasicUserAuthProvider provides HTTP Basic Authentication with user object return.
type BasicUserAuthProvider[T any] struct {
	GetUserFunc func(username, password string) (*T, error)
}

// AuthenticateUser authenticates a request using HTTP Basic Authentication.
func (p *BasicUserAuthProvider[T]) AuthenticateUser(env environ.Env) (*T, error) {
	username, password, ok := basicAuth(env)
	if !ok {
		return nil, errors.New("no basic auth credentials")
	}
	return p.GetUserFunc(username, password)
}

// BearerTokenUserAuthProvider provides Bearer Token Authentication with user object return.
type BearerTokenUserAuthProvider[T any] struct {
	GetUserFunc func(token string) (*T, error)
}

// AuthenticateUser authenticates a request using Bearer Token Authentication.
func (p *BearerTokenUserAuthProvider[T]) AuthenticateUser(env environ.Env) (*T, error) {
	token, err := bearerToken(env)
	if err != nil {
		return nil, err
	}
	return p.GetUserFunc(token)
}

// APIKeyUserAuthProvider provides API Key Authentication with user object return.
type APIKeyUserAuthProvider[T any] struct {
	GetUserFunc func(key string) (*T, error)
	Header      string // header name (e.g., "X-API-Key")
	Query       string // query parameter name (e.g., "api_key")
}

// AuthenticateUser authenticates a request using API Key Authentication.
func (p *APIKeyUserAuthProvider[T]) AuthenticateUser(env environ.Env) (*T, error) {
	key := apiKey(env, p.Header, p.Query)
	if key == "" {
		return nil, errors.New("no API key found")
	}
	return p.GetUserFunc(key)
}

// AuthenticationWithUserProvider is a middleware that uses an auth provider that returns a user object
// and stores it in the environment if authentication is successful.
func AuthenticationWithUserProvider[T any](provider UserAuthProvider[T], logger *zap.Logger) common.Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			user, err := provider.AuthenticateUser(env)
			if err != nil || user == nil {
				logger.Warn("Authentication failed", LogFields(env,
					zap.Error(err),
					zap.String("remote_addr", remoteAddr(env)),
				)...)
				return WriteError(env, http.StatusUnauthorized, "Unauthorized")
			}

			setUser(env, user)
			return next(env)
		}
	}
}

// AuthenticationWithUser is a middleware that uses a custom auth function that returns a user object
// and stores it in the environment if authentication is successful.
func AuthenticationWithUser[T any](authFunc func(environ.Env) (*T, error)) common.Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			user, err := authFunc(env)
			if err != nil || user == nil {
				return WriteError(env, http.StatusUnauthorized, "Unauthorized")
			}

			setUser(env, user)
			return next(env)
		}
	}
}

func setUser[T any](env environ.Env, user *T) {
	env[UserKey] = user
	if id, ok := any(user).(Identified); ok {
		env[UserIDKey] = id.UserID()
	}
}

// GetUser retrieves the user from the environment.
// Returns nil if no user of type T is found.
func GetUser[T any](env environ.Env) *T {
	user, _ := env[UserKey].(*T)
	return user
}

// GetUserID retrieves the id of the authenticated user, or "".
func GetUserID(env environ.Env) string {
	return environ.Get(env, UserIDKey, "")
}

// NewBasicAuthWithUserMiddleware creates a middleware that uses HTTP Basic Authentication
// and returns a user object.
func NewBasicAuthWithUserMiddleware[T any](getUserFunc func(username, password string) (*T, error), logger *zap.Logger) common.Middleware {
	return AuthenticationWithUserProvider[T](&BasicUserAuthProvider[T]{GetUserFunc: getUserFunc}, logger)
}

// NewBearerTokenWithUserMiddleware creates a middleware that uses Bearer Token Authentication
// and returns a user object.
func NewBearerTokenWithUserMiddleware[T any](getUserFunc func(token string) (*T, error), logger *zap.Logger) common.Middleware {
	return AuthenticationWithUserProvider[T](&BearerTokenUserAuthProvider[T]{GetUserFunc: getUserFunc}, logger)
}

// NewAPIKeyWithUserMiddleware creates a middleware that uses API Key Authentication
// and returns a user object.
func NewAPIKeyWithUserMiddleware[T any](getUserFunc func(key string) (*T, error), header, query string, logger *zap.Logger) common.Middleware {
	return AuthenticationWithUserProvider[T](&APIKeyUserAuthProvider[T]{
		GetUserFunc: getUserFunc,
		Header:      header,
		Query:       query,
	}, logger)
}
