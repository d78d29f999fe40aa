package services

import (
	"context"
	"fmt"
	"time"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const jwtExpDays = 7

// UserStore is the account data the relay reads
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// UserService verifies identity claims against tokens issued by the auth service
type UserService struct {
	users     UserStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(users UserStore, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		jwtSecret: jwtSecret,
	}
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("token required")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	// Tokens issued by the older auth service carry userId.
	for _, key := range []string{"user_id", "userId"} {
		if userID, ok := claims[key].(string); ok && userID != "" {
			return userID, nil
		}
	}

	return "", fmt.Errorf("user_id not found in token")
}

// Authenticate resolves the user a token was issued to
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := s.ValidateJWT(tokenString)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIdentity, "invalid token", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.Identity("user does not exist")
		}
		return nil, err
	}
	return user, nil
}

// VerifyProfileClaim succeeds only if the token is valid and its user owns profileID
func (s *UserService) VerifyProfileClaim(ctx context.Context, tokenString, profileID string) error {
	user, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return err
	}
	if user.ProfileID == "" || user.ProfileID != profileID {
		return apperrors.ErrProfileMismatch
	}
	return nil
}

// UpdatePushToken stores or clears the device token used for offline pushes
func (s *UserService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	if pushToken != nil && *pushToken == "" {
		pushToken = nil
	}
	return s.users.UpdatePushToken(ctx, userID, pushToken)
}
