// Package auth implements credential management and stateless session
// tokens. Passwords are stored as bcrypt hashes; tokens are signed
// JWTs verified without any server-side lookup, so there is no
// revocation — a token stays valid until it expires.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/antlerhq/antler/internal/model"
	"github.com/antlerhq/antler/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken  = errors.New("username already taken")
	ErrEmailTaken     = errors.New("email already taken")
	ErrBadCredentials = errors.New("invalid username or password")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
)

type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Service struct {
	store      store.UserStore
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
}

func NewService(store store.UserStore, secret string, tokenTTL time.Duration, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = 12
	}
	return &Service{
		store:      store,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}
}

// Register hashes the password and persists a new user. Nickname
// defaults to the username. The returned user never carries the hash.
func (s *Service) Register(ctx context.Context, username, email, nickname, password string) (model.User, error) {
	if nickname == "" {
		nickname = username
	}

	// Pre-check for a clear error; the UNIQUE indexes catch races.
	if existing, err := s.store.FindUserByLogin(ctx, username); err == nil {
		if existing.Username == username {
			return model.User{}, ErrUsernameTaken
		}
		return model.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, err
	}
	if existing, err := s.store.FindUserByLogin(ctx, email); err == nil {
		if existing.Email == email {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	user := model.User{
		Username:     username,
		Email:        email,
		Nickname:     nickname,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	id, err := s.store.CreateUser(ctx, &user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return model.User{}, ErrUsernameTaken
		}
		if errors.Is(err, store.ErrDuplicateEmail) {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, err
	}
	user.ID = id
	user.PasswordHash = ""
	return user, nil
}

// Login verifies credentials against a user matched by username or
// email. It fails with the same error whether the user is unknown or
// the password is wrong.
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (model.User, error) {
	user, err := s.store.FindUserByLogin(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, ErrBadCredentials
		}
		return model.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return model.User{}, ErrBadCredentials
	}
	user.PasswordHash = ""
	return user, nil
}

// IssueToken signs a token embedding the user identity, valid for the
// configured TTL from now.
func (s *Service) IssueToken(userID int64, username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// VerifyToken checks signature and expiry and returns the embedded
// claims.
func (s *Service) VerifyToken(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
