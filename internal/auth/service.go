package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tesouraria/internal/cache"
	"tesouraria/internal/log"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

var (
	ErrWeakPassword      = errors.New("password too short")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidEmail      = errors.New("invalid email address")
)

// Message maps an auth error to the text shown on the login page.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return "E-mail ou senha incorretos."
	case errors.Is(err, ErrWeakPassword):
		return "A senha deve ter pelo menos 6 caracteres."
	case errors.Is(err, ErrEmailInUse):
		return "Este e-mail já está em uso."
	default:
		return "Erro ao realizar autenticação. Tente novamente."
	}
}

// EventKind says how the identity of a session changed.
type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers on every sign-in and sign-out.
type Event struct {
	Kind     EventKind
	Identity Identity
	Session  string
}

// Session is an issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

type Config struct {
	SessionTTL  time.Duration
	MaxSessions int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Service authenticates users and tracks their sessions.
type Service struct {
	users    UserStore
	sessions *cache.LRUCache[Identity]
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *log.Logger

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

func NewService(users UserStore, cfg Config, logger *log.Logger) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Service{
		users:     users,
		sessions:  cache.NewLRUCache[Identity](cfg.MaxSessions, cfg.SessionTTL),
		ttl:       cfg.SessionTTL,
		cost:      cfg.BcryptCost,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentAuth),
		listeners: make(map[int]func(Event)),
	}
	return s
}

// Sessions exposes the session cache so it can be registered for cleanup.
func (s *Service) Sessions() *cache.LRUCache[Identity] {
	return s.sessions
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (Identity, Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, Session{}, err
	}
	if len([]rune(password)) < MinPasswordLength {
		return Identity{}, Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Identity{}, Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return Identity{}, Session{}, err
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, log.FieldOperation, log.OpSignUp)
	id := Identity{UserID: u.ID, Email: u.Email}
	sess, err := s.open(id)
	return id, sess, err
}

// SignIn checks the password and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Identity, Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, Session{}, ErrInvalidCredential
	}
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return Identity{}, Session{}, ErrInvalidCredential
	}
	if err != nil {
		return Identity{}, Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, Session{}, ErrInvalidCredential
	}

	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, u.ID, log.FieldOperation, log.OpSignIn)
	id := Identity{UserID: u.ID, Email: u.Email}
	sess, err := s.open(id)
	return id, sess, err
}

func (s *Service) open(id Identity) (Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)
	s.sessions.Set(token, id)
	s.emit(Event{Kind: SignedIn, Identity: id, Session: token})
	return Session{Token: token, ExpiresAt: s.now().Add(s.ttl)}, nil
}

// SignOut ends the session. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) {
	id, ok := s.sessions.Get(token)
	if !ok {
		return
	}
	s.sessions.Delete(token)
	s.logger.InfoContext(ctx, "User signed out", log.FieldUserID, id.UserID, log.FieldOperation, log.OpSignOut)
	s.emit(Event{Kind: SignedOut, Identity: id, Session: token})
}

// Identify returns the identity behind a session token.
func (s *Service) Identify(_ context.Context, token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}
	return s.sessions.Get(token)
}

// Subscribe registers fn for identity-change events and returns a function
// that removes it. Events are delivered synchronously.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) emit(e Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
