package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/ports"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// AuthService owns credentials and sessions: registration, login, token
// validation and revocation. It implements ports.SessionValidator for the
// websocket gateway and the API auth middleware.
type AuthService struct {
	userRepo  ports.IUserRepository
	hasher    IHasher
	tokenRepo ports.TokenRepository
	jwtKey    []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewAuthService(userRepo ports.IUserRepository, hasher IHasher, tokenRepo ports.TokenRepository, jwtKey []byte, logger *slog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		hasher:    hasher,
		tokenRepo: tokenRepo,
		jwtKey:    jwtKey,
		tokenTTL:  defaultTokenTTL,
		logger:    logger,
	}
}

func (s *AuthService) Register(ctx context.Context, username, password, email string) error {
	if username == "" || password == "" {
		s.logger.Warn("missing required fields in registration")
		return errors.New("username and password are required")
	}

	existing, err := s.userRepo.GetUserByName(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.Warn("username already exists", "username", username)
		return errors.New("username already exists")
	}

	hashedPassword, err := s.hasher.GenerateFromPassword([]byte(password), s.hasher.DefaultCost())
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return errors.New("registration failed")
	}

	if _, err := s.userRepo.CreateUser(ctx, username, string(hashedPassword), email); err != nil {
		s.logger.Warn("user creation failed", "error", err)
		return errors.New("registration failed")
	}

	s.logger.Info("user registered successfully", "username", username)
	return nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errors.New("username and password are required")
	}

	user, err := s.userRepo.GetUserByName(ctx, username)
	if err != nil {
		s.logger.Error("user lookup failed", "username", username, "error", err)
		return "", errors.New("invalid credentials")
	}
	if user == nil {
		s.logger.Warn("user not found", "username", username)
		return "", errors.New("invalid credentials")
	}

	if err := s.hasher.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Warn("invalid password", "username", username)
		return "", errors.New("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"user_id":  user.ID,
		"exp":      time.Now().Add(s.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtKey)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		return "", errors.New("authentication failed")
	}

	s.logger.Info("login successful", "username", username)
	return tokenString, nil
}

// ValidateToken resolves a bearer token into its user. Fails with
// ports.ErrUnauthorized for anything the caller should treat as a refused
// credential: bad signature, expiry, revocation, vanished user.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, ports.ErrUnauthorized
	}

	isRevoked, err := s.tokenRepo.IsRevoked(ctx, hashToken(tokenString))
	if err != nil {
		s.logger.Error("token revocation check failed", "error", err)
		return nil, err
	}
	if isRevoked {
		return nil, fmt.Errorf("%w: token revoked", ports.ErrUnauthorized)
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtKey, nil
	})
	if err != nil || !token.Valid {
		s.logger.Warn("token parsing failed", "error", err)
		return nil, fmt.Errorf("%w: invalid token", ports.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", ports.ErrUnauthorized)
	}

	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil, fmt.Errorf("%w: username missing in token", ports.ErrUnauthorized)
	}

	user, err := s.userRepo.GetUserByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user", ports.ErrUnauthorized)
	}

	s.logger.Debug("token validated", "username", username)
	return user, nil
}

// RevokeToken blacklists a token for its remaining lifetime.
func (s *AuthService) RevokeToken(ctx context.Context, tokenString string) error {
	remaining := s.tokenTTL

	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err == nil {
		if exp, expErr := token.Claims.GetExpirationTime(); expErr == nil && exp != nil {
			if until := time.Until(exp.Time); until > 0 {
				remaining = until
			}
		}
	}

	return s.tokenRepo.Revoke(ctx, hashToken(tokenString), remaining)
}

func hashToken(tokenString string) string {
	hash := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(hash[:])
}
