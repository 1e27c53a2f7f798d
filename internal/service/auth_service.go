package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/security"
	"kidsactivity/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrOAuthTokenInvalid  = errors.New("could not verify oauth token")
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// AuthService handles authentication business logic
type AuthService struct {
	userRepo     *repository.UserRepository
	tokenManager *security.TokenManager
	// overridable in tests
	userInfoURL string
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, tokenManager *security.TokenManager) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		tokenManager: tokenManager,
		userInfoURL:  googleUserInfoURL,
	}
}

// Register creates a new user account and returns it with a signed token
func (s *AuthService) Register(email, password, name string) (*models.User, string, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, "", err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, "", err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, "", err
	}

	existingUser, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, "", ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.CreateUser(email, passwordHash, name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokenManager.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

// Login authenticates a user by email and password and returns a signed token
func (s *AuthService) Login(email, password string) (*models.User, string, error) {
	user, err := s.userRepo.GetUserByEmail(validation.NormalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if user.PasswordHash == "" || !security.CheckPassword(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokenManager.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// OAuthLogin exchanges a Google access token (obtained by the mobile app) for
// a local account and signed token. First-time logins create the account;
// an existing account with the same email is linked instead.
func (s *AuthService) OAuthLogin(ctx context.Context, accessToken string) (*models.User, string, error) {
	info, err := s.fetchGoogleUserInfo(ctx, accessToken)
	if err != nil {
		return nil, "", err
	}
	if info.Sub == "" || info.Email == "" || !info.EmailVerified {
		return nil, "", ErrOAuthTokenInvalid
	}
	email := validation.NormalizeEmail(info.Email)

	user, err := s.userRepo.GetUserByOAuth("google", info.Sub)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up oauth user: %w", err)
	}

	if user == nil {
		user, err = s.userRepo.GetUserByEmail(email)
		if err != nil {
			return nil, "", fmt.Errorf("failed to look up user: %w", err)
		}
		if user == nil {
			name := info.Name
			if name == "" {
				name = email
			}
			// No password; the account can only sign in via Google
			user, err = s.userRepo.CreateUser(email, "", name)
			if err != nil {
				return nil, "", fmt.Errorf("failed to create user: %w", err)
			}
		}
		if err := s.userRepo.LinkOAuthProvider(user.ID, "google", info.Sub); err != nil {
			return nil, "", fmt.Errorf("failed to link oauth provider: %w", err)
		}
	}

	token, err := s.tokenManager.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

func (s *AuthService) fetchGoogleUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = 10 * time.Second

	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrOAuthTokenInvalid
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// ValidateToken verifies a bearer token and returns the authenticated user
func (s *AuthService) ValidateToken(token string) (*models.User, error) {
	userID, err := s.tokenManager.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, security.ErrInvalidToken
	}
	return user, nil
}
