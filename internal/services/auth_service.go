package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"swadhan-eats/internal/models"
	"swadhan-eats/internal/repositories"
	"swadhan-eats/pkg/auth"
	"swadhan-eats/pkg/cache"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleCustomer        = "customer"
	RoleRestaurantStaff = "restaurant_staff"
	RoleCourier         = "courier"
	RoleAdmin           = "admin"

	profileCacheTTL = 24 * time.Hour
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrInvalidRefresh     = errors.New("refresh token not found or invalid")
)

type AuthService struct {
	userRepo   repositories.UserRepository
	jwtManager *auth.JWTManager
	cache      *cache.RedisCache
}

func NewAuthService(userRepo repositories.UserRepository, jwtManager *auth.JWTManager, cache *cache.RedisCache) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		cache:      cache,
	}
}

const (
	refreshPrefix = "refresh_token"
	sessionPrefix = "user_session"
)

type RegisterRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone" binding:"required"`
	Password       string `json:"password" binding:"required,min=6"`
	DefaultAddress string `json:"default_address"`
	City           string `json:"city"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"` // seconds until access token expires
	User         models.User `json:"user"`
}

// UserProfile is the read-only identity checkout uses for prefill.
type UserProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	DefaultAddress string `json:"default_address"`
	City           string `json:"city"`
	Role           string `json:"role"`
}

func profileOf(u *models.User) *UserProfile {
	return &UserProfile{
		ID:             u.ID.String(),
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		DefaultAddress: u.DefaultAddress,
		City:           u.City,
		Role:           u.Role,
	}
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*AuthResponse, error) {
	pair, err := s.jwtManager.GenerateTokenPair(user.ID.String(), user.RestaurantID, user.Role, user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetWithPrefix(ctx, refreshPrefix, user.ID.String(), pair.RefreshToken, s.jwtManager.RefreshExpiry()); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtManager.AccessExpiry().Seconds()),
		User:         *user,
	}, nil
}

// Register creates a customer account. Staff, courier and admin accounts are provisioned out of band.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:           req.Name,
		Email:          email,
		Phone:          req.Phone,
		PasswordHash:   string(hashedPassword),
		DefaultAddress: req.DefaultAddress,
		City:           req.City,
		Role:           RoleCustomer,
		Status:         "active",
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Status != "active" {
		return nil, ErrAccountInactive
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.cache.SetWithPrefix(ctx, sessionPrefix, user.ID.String(), user, profileCacheTTL)
	return resp, nil
}

func (s *AuthService) GetUserProfile(ctx context.Context, userID string) (*models.User, error) {
	var cachedUser models.User
	if err := s.cache.GetWithPrefix(ctx, sessionPrefix, userID, &cachedUser); err == nil {
		return &cachedUser, nil
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	user, err := s.userRepo.GetByID(ctx, uid)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	s.cache.SetWithPrefix(ctx, sessionPrefix, userID, user, profileCacheTTL)
	return user, nil
}

// Profile implements the identity lookup used by checkout.
func (s *AuthService) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	user, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profileOf(user), nil
}

func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil || claims.TokenType != auth.RefreshToken {
		return nil, ErrInvalidRefresh
	}

	var storedToken string
	if err := s.cache.GetWithPrefix(ctx, refreshPrefix, claims.UserID, &storedToken); err != nil || storedToken != refreshToken {
		return nil, ErrInvalidRefresh
	}

	user, err := s.GetUserProfile(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != "active" {
		return nil, ErrAccountInactive
	}

	newAccessToken, err := s.jwtManager.RefreshAccessToken(refreshToken)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  newAccessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtManager.AccessExpiry().Seconds()),
		User:         *user,
	}, nil
}

// Logout invalidates the refresh token and drops the cached profile.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.cache.DeleteWithPrefix(ctx, refreshPrefix, userID); err != nil {
		return err
	}
	return s.cache.DeleteWithPrefix(ctx, sessionPrefix, userID)
}
