package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/middleware"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	userIDKey    contextKey = "userID"
	userLoginKey contextKey = "userLogin"

	CookieName = "session_token"
	tokenTTL   = 30 * 24 * time.Hour
)

type Authenv struct {
	JWTkey []byte
	Repo   repo.Repository
	Log    *logger.Logger
	// Secure marks the session cookie HTTPS only.
	Secure bool
	Clock  clockwork.Clock

	validate *validator.Validate
	once     sync.Once
}

type Claims struct {
	UserID int    `json:"user_id"`
	Login  string `json:"login"`
	jwt.RegisteredClaims
}

type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

type Loginrequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Registerrequest struct {
	Login    string `json:"login" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"required,email"`
}

type sessionResponse struct {
	UserID int    `json:"user_id"`
	Login  string `json:"login"`
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}
	return limiter
}

// LimitMiddleware limits requests per client IP.
func (i *IPRateLimiter) LimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.getLimiter(clientIP(r)).Allow() {
			apierr.TooManyRequests(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (env *Authenv) clock() clockwork.Clock {
	if env.Clock == nil {
		return clockwork.NewRealClock()
	}
	return env.Clock
}

func (env *Authenv) validator() *validator.Validate {
	env.once.Do(func() { env.validate = validator.New(validator.WithRequiredStructEnabled()) })
	return env.validate
}

// IssueToken signs a session token for the user.
func (env *Authenv) IssueToken(userID int, login string) (string, error) {
	now := env.clock().Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Login:  login,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	return token.SignedString(env.JWTkey)
}

// ParseToken verifies the signature, the HMAC method and the expiry.
func (env *Authenv) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return env.JWTkey, nil
	}, jwt.WithTimeFunc(env.clock().Now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID <= 0 || claims.Login == "" {
		return nil, errors.New("token missing user claims")
	}
	return claims, nil
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware accepts the session cookie or a bearer token and puts the user
// into the request context.
func (env *Authenv) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFrom(r)
		if raw == "" {
			apierr.Unauthorized(w, r, "Authentication required")
			return
		}
		claims, err := env.ParseToken(raw)
		if err != nil {
			middleware.GetLogger(r.Context(), env.Log).Debug("Rejected token", map[string]interface{}{"error": err.Error()})
			apierr.Unauthorized(w, r, "Invalid or expired session")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Login)))
	})
}

func WithUser(ctx context.Context, userID int, login string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, userLoginKey, login)
}

func UserID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok
}

func Login(ctx context.Context) string {
	login, _ := ctx.Value(userLoginKey).(string)
	return login
}

func (env *Authenv) addCookie(w http.ResponseWriter, userID int, login string) error {
	tokenString, err := env.IssueToken(userID, login)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Expires:  env.clock().Now().Add(tokenTTL),
		Path:     "/",
		HttpOnly: true,
		Secure:   env.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (env *Authenv) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierr.BadRequest(w, r, "Invalid request payload", nil)
		return false
	}
	if err := env.validator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			apierr.ValidationError(w, r, verrs)
		} else {
			apierr.BadRequest(w, r, err.Error(), nil)
		}
		return false
	}
	return true
}

func (env *Authenv) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req Registerrequest
	if !env.decode(w, r, &req) {
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	req.Email = strings.TrimSpace(req.Email)

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		apierr.InternalServerError(w, r, env.Log, "Error hashing password", err)
		return
	}
	id, err := env.Repo.CreateUser(r.Context(), req.Login, req.Email, hashedPassword)
	if errors.Is(err, repo.ErrUserExists) {
		apierr.Conflict(w, r, "User already exists")
		return
	}
	if err != nil {
		apierr.InternalServerError(w, r, env.Log, "Registration failed", err)
		return
	}

	if err := env.addCookie(w, id, req.Login); err != nil {
		apierr.InternalServerError(w, r, env.Log, "Registration failed", err)
		return
	}
	apierr.JSON(w, http.StatusCreated, sessionResponse{UserID: id, Login: req.Login})
}

func (env *Authenv) AuthHandler(w http.ResponseWriter, r *http.Request) {
	var req Loginrequest
	if !env.decode(w, r, &req) {
		return
	}
	req.Login = strings.TrimSpace(req.Login)

	id, storedHash, err := env.Repo.GetByLogin(r.Context(), req.Login)
	if errors.Is(err, repo.ErrUserNotFound) {
		apierr.Unauthorized(w, r, "Invalid login or password")
		return
	}
	if err != nil {
		apierr.InternalServerError(w, r, env.Log, "Login failed", err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.Password)); err != nil {
		apierr.Unauthorized(w, r, "Invalid login or password")
		return
	}
	if err := env.addCookie(w, id, req.Login); err != nil {
		apierr.InternalServerError(w, r, env.Log, "Login failed", err)
		return
	}
	apierr.JSON(w, http.StatusOK, sessionResponse{UserID: id, Login: req.Login})
}
