package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"keepnotes/pkg/auth"
	"keepnotes/pkg/domain"
	"keepnotes/pkg/store"
	"keepnotes/services/notes/internal/guest"
	"keepnotes/services/notes/internal/seed"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	JWTSecret      string
	JWTIssuer      string
	SessionTTL     time.Duration
	Redis          *redis.Client
	GuestPoolSize  int
	GuestRetention time.Duration
	GuestMetrics   *guest.Metrics
	Logger         *slog.Logger
	Store          store.Store
	Tokens         store.TokenIssuer
}

// App is the core application service wiring together storage, auth and the
// guest pool.
type App struct {
	store    store.Store
	tokens   store.TokenIssuer
	guests   *guest.Manager
	validate *validator.Validate
	logger   *slog.Logger
}

// New constructs the application. Store and Tokens are built from the
// connection settings unless supplied.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		var revoker store.TokenRevoker
		if cfg.Redis != nil {
			revoker = store.NewRedisTokenRevoker(cfg.Redis, "")
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		issuer, err := store.NewJWTIssuer(cfg.JWTSecret, revoker, store.JWTOptions{
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.SessionTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt issuer: %w", err)
		}
		tokens = issuer
	}

	guests, err := guest.New(guest.Config{
		Store:     dataStore,
		Hasher:    auth.Hasher{},
		Tokens:    tokens,
		Seeder:    seed.New(dataStore),
		PoolSize:  cfg.GuestPoolSize,
		Retention: cfg.GuestRetention,
		Logger:    logger,
		Metrics:   cfg.GuestMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init guest pool: %w", err)
	}

	return &App{
		store:    dataStore,
		tokens:   tokens,
		guests:   guests,
		validate: newValidator(),
		logger:   logger,
	}, nil
}

// Guests exposes the guest pool so the process can schedule its maintenance.
func (a *App) Guests() *guest.Manager {
	return a.guests
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Register creates a permanent account and signs it in.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.Session, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := a.check(in); err != nil {
		return domain.Session{}, err
	}
	if guest.IsReservedEmail(in.Email) {
		return domain.Session{}, ErrReservedEmail
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	exists, err := a.store.HasAccountEmail(ctx, in.Email)
	if err != nil {
		return domain.Session{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.Session{}, ErrUserExists
	}
	taken, err := a.store.HasAccountUsername(ctx, in.Username)
	if err != nil {
		return domain.Session{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return domain.Session{}, ErrUserExists
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{Email: in.Email, Username: in.Username, PasswordHash: hash}
	if err := a.store.CreateAccount(ctx, &user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Session{}, ErrUserExists
		}
		return domain.Session{}, fmt.Errorf("create user: %w", err)
	}
	return a.issue(user)
}

// Login accepts an email or a username.
func (a *App) Login(ctx context.Context, identifier, password string) (domain.Session, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" || password == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.FindAccountByLogin(ctx, identifier)
	if err != nil {
		return domain.Session{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.Session{}, ErrInvalidCredentials
	}
	return a.issue(user)
}

// LoginAsGuest hands out a ready guest account.
func (a *App) LoginAsGuest(ctx context.Context) (domain.Session, error) {
	return a.guests.LoginAsGuest(ctx)
}

// UserFromToken resolves a user from a bearer token. Tokens of deleted
// accounts, including swept guests, no longer resolve.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, bool) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, false
	}
	user, found, err := a.store.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		a.logger.Warn("resolve token user failed", "user_id", claims.Subject, "err", err)
		return domain.User{}, false
	}
	if !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout revokes the token until it would have expired.
func (a *App) Logout(token string) error {
	return a.tokens.Revoke(token)
}

// Ping checks storage connectivity.
func (a *App) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

// Close waits for background guest work and releases the store.
func (a *App) Close() error {
	a.guests.Wait()
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *App) issue(user domain.User) (domain.Session, error) {
	token, err := a.tokens.Sign(user.ID, user.Email)
	if err != nil {
		return domain.Session{}, fmt.Errorf("issue access token: %w", err)
	}
	return domain.Session{AccessToken: token, User: user.Public()}, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct validation and reports the first failing field.
func (a *App) check(v any) error {
	err := a.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, fe.Field())
		case "email":
			return fmt.Errorf("%w: %s must be a valid email", ErrInvalidInput, fe.Field())
		case "min":
			return fmt.Errorf("%w: %s must be at least %s characters", ErrInvalidInput, fe.Field(), fe.Param())
		case "max":
			return fmt.Errorf("%w: %s must be at most %s characters", ErrInvalidInput, fe.Field(), fe.Param())
		default:
			return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, fe.Field())
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
