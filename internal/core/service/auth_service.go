package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/pkg/metrics"
)

const (
	usersCollection   = "users"
	minPasswordLength = 6
)

// AuthService implements ports.Authenticator on top of the document store
// (accounts) and a session repository (live sessions).
type AuthService struct {
	docs      ports.DocumentStore
	sessions  ports.SessionRepository
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
}

func NewAuthService(docs ports.DocumentStore, sessions ports.SessionRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		docs:      docs,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
	}
}

var _ ports.Authenticator = (*AuthService)(nil)

func (s *AuthService) CreateAccount(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || !strings.Contains(email, "@") || len(password) < minPasswordLength {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "rejected").Inc()
		return nil, &domain.AuthError{Err: domain.ErrInvalidCredentials}
	}

	existing, err := s.findByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		return nil, &domain.AuthError{Err: err}
	}
	if existing != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "rejected").Inc()
		return nil, &domain.AuthError{Err: domain.ErrUserExists}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &domain.AuthError{Err: err}
	}

	doc, err := s.docs.Create(ctx, usersCollection, ports.Fields{
		fieldName:         name,
		fieldEmail:        email,
		fieldPasswordHash: string(hash),
	})
	if errors.Is(err, ports.ErrDuplicateDocument) {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "rejected").Inc()
		return nil, &domain.AuthError{Err: domain.ErrUserExists}
	}
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		return nil, &domain.AuthError{Err: err}
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signup", "ok").Inc()
	s.log.Info().Str("user_id", doc.ID).Msg("account created")
	return userFromDocument(doc), nil
}

func (s *AuthService) CreateSession(ctx context.Context, email, password string) (*domain.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return nil, &domain.AuthError{Err: domain.ErrInvalidCredentials}
	}

	user, err := s.findByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return nil, &domain.AuthError{Err: domain.ErrInvalidCredentials}
	}
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return nil, &domain.AuthError{Err: err}
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return nil, &domain.AuthError{Err: domain.ErrInvalidCredentials}
	}

	sessionID := uuid.Must(uuid.NewV4()).String()
	expiresAt := time.Now().Add(s.tokenTTL).UTC()
	token, err := s.generateToken(user, sessionID, expiresAt)
	if err != nil {
		return nil, &domain.AuthError{Err: err}
	}
	if err := s.sessions.Save(ctx, ports.SessionRecord{ID: sessionID, UserID: user.ID}, s.tokenTTL); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return nil, &domain.AuthError{Err: err}
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()
	s.log.Info().Str("user_id", user.ID).Str("session_id", sessionID).Msg("session created")
	return &domain.Session{ID: sessionID, Token: token, User: user, ExpiresAt: expiresAt}, nil
}

// CurrentSession resolves token to its user. Every failure is reported as
// domain.ErrUnauthenticated.
func (s *AuthService) CurrentSession(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims, err := s.parseToken(token, true)
	if err != nil {
		s.log.Debug().Err(err).Msg("rejecting session token")
		return nil, domain.ErrUnauthenticated
	}

	rec, err := s.sessions.Find(ctx, claims.ID)
	if err != nil || rec == nil || rec.UserID != claims.Subject {
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", claims.ID).Msg("session lookup failed")
		}
		return nil, domain.ErrUnauthenticated
	}

	doc, err := s.docs.Get(ctx, usersCollection, rec.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", rec.UserID).Msg("session user lookup failed")
		return nil, domain.ErrUnauthenticated
	}
	return userFromDocument(doc), nil
}

// DestroySession forgets the session behind token. Unknown or malformed
// tokens are ignored.
func (s *AuthService) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.parseToken(token, false)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	s.log.Info().Str("session_id", claims.ID).Msg("session destroyed")
	return nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := ports.Where(fieldEmail, email)
	q.Limit = 1
	docs, err := s.docs.List(ctx, usersCollection, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return userFromDocument(docs[0]), nil
}

func (s *AuthService) generateToken(user *domain.User, sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

// parseToken verifies the signature of token. Expiry is checked only when
// validate is set so that an expired token can still be signed out.
func (s *AuthService) parseToken(token string, validate bool) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token is missing session claims")
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
