package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agamariel/editmart/internal/auth"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
)

func TestUserServiceImpl_Register(t *testing.T) {
	ctx := context.Background()
	secret := "test-secret"

	tests := []struct {
		name        string
		login       string
		password    string
		role        models.Role
		mockStorage *mockUserStorage
		wantErr     bool
		errType     error
	}{
		{
			name:        "successful creator registration",
			login:       "creator@example.com",
			password:    "password123",
			role:        models.RoleCreator,
			mockStorage: &mockUserStorage{},
			wantErr:     false,
		},
		{
			name:        "successful editor registration",
			login:       "editor@example.com",
			password:    "password123",
			role:        models.RoleEditor,
			mockStorage: &mockUserStorage{},
			wantErr:     false,
		},
		{
			name:        "admin role cannot be self-assigned",
			login:       "admin@example.com",
			password:    "password123",
			role:        models.RoleAdmin,
			mockStorage: &mockUserStorage{},
			wantErr:     true,
			errType:     ErrInvalidRole,
		},
		{
			name:        "unknown role",
			login:       "user@example.com",
			password:    "password123",
			role:        models.Role("SUPERVISOR"),
			mockStorage: &mockUserStorage{},
			wantErr:     true,
			errType:     ErrInvalidRole,
		},
		{
			name:        "empty login",
			login:       "",
			password:    "password123",
			role:        models.RoleCreator,
			mockStorage: &mockUserStorage{},
			wantErr:     true,
			errType:     ErrEmptyCredentials,
		},
		{
			name:        "empty password",
			login:       "test@example.com",
			password:    "",
			role:        models.RoleCreator,
			mockStorage: &mockUserStorage{},
			wantErr:     true,
			errType:     ErrEmptyCredentials,
		},
		{
			name:     "login already exists",
			login:    "existing@example.com",
			password: "password123",
			role:     models.RoleCreator,
			mockStorage: &mockUserStorage{
				CreateFunc: func(ctx context.Context, user *models.User) error {
					return storage.ErrLoginExists
				},
			},
			wantErr: true,
			errType: storage.ErrLoginExists,
		},
		{
			name:     "storage error",
			login:    "test@example.com",
			password: "password123",
			role:     models.RoleCreator,
			mockStorage: &mockUserStorage{
				CreateFunc: func(ctx context.Context, user *models.User) error {
					return errors.New("database error")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallets := &mockWalletStorage{}
			service := NewUserService(tt.mockStorage, wallets, secret, 24*time.Hour)

			user, token, err := service.Register(ctx, tt.login, tt.password, tt.role)

			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				if tt.errType != nil && !errors.Is(err, tt.errType) {
					t.Errorf("Register() error = %v, want %v", err, tt.errType)
				}
				return
			}

			if user == nil {
				t.Fatal("Register() returned nil user")
			}
			if user.Login != tt.login {
				t.Errorf("Register() user.Login = %v, want %v", user.Login, tt.login)
			}
			if user.Role != tt.role {
				t.Errorf("Register() user.Role = %v, want %v", user.Role, tt.role)
			}
			if token == "" {
				t.Error("Register() returned empty token")
			}
		})
	}
}

func TestUserServiceImpl_Register_EnsuresWallet(t *testing.T) {
	ctx := context.Background()

	var walletOwner uuid.UUID
	wallets := &mockWalletStorage{
		EnsureFunc: func(ctx context.Context, userID uuid.UUID) error {
			walletOwner = userID
			return nil
		},
	}
	service := NewUserService(&mockUserStorage{}, wallets, "secret", 24*time.Hour)

	user, _, err := service.Register(ctx, "editor@example.com", "password123", models.RoleEditor)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if walletOwner != user.ID {
		t.Errorf("wallet ensured for %s, want %s", walletOwner, user.ID)
	}
}

func TestUserServiceImpl_Register_WalletFailure(t *testing.T) {
	ctx := context.Background()

	wallets := &mockWalletStorage{
		EnsureFunc: func(ctx context.Context, userID uuid.UUID) error {
			return errors.New("database error")
		},
	}
	service := NewUserService(&mockUserStorage{}, wallets, "secret", 24*time.Hour)

	_, _, err := service.Register(ctx, "editor@example.com", "password123", models.RoleEditor)
	if err == nil {
		t.Fatal("Register() expected error when wallet creation fails")
	}
}

func TestUserServiceImpl_Login(t *testing.T) {
	ctx := context.Background()
	secret := "test-secret"
	correctPassword := "password123"

	hash, err := auth.HashPassword(correctPassword)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	existingUser := &models.User{
		ID:           uuid.New(),
		Login:        "editor@example.com",
		PasswordHash: hash,
		Role:         models.RoleEditor,
	}

	tests := []struct {
		name        string
		login       string
		password    string
		mockStorage *mockUserStorage
		wantErr     bool
		errType     error
	}{
		{
			name:     "successful login",
			login:    existingUser.Login,
			password: correctPassword,
			mockStorage: &mockUserStorage{
				GetByLoginFunc: func(ctx context.Context, login string) (*models.User, error) {
					return existingUser, nil
				},
			},
			wantErr: false,
		},
		{
			name:     "wrong password",
			login:    existingUser.Login,
			password: "wrong-password",
			mockStorage: &mockUserStorage{
				GetByLoginFunc: func(ctx context.Context, login string) (*models.User, error) {
					return existingUser, nil
				},
			},
			wantErr: true,
			errType: ErrInvalidCredentials,
		},
		{
			name:     "user not found",
			login:    "unknown@example.com",
			password: correctPassword,
			mockStorage: &mockUserStorage{
				GetByLoginFunc: func(ctx context.Context, login string) (*models.User, error) {
					return nil, storage.ErrUserNotFound
				},
			},
			wantErr: true,
			errType: ErrInvalidCredentials,
		},
		{
			name:        "empty credentials",
			login:       "",
			password:    "",
			mockStorage: &mockUserStorage{},
			wantErr:     true,
			errType:     ErrEmptyCredentials,
		},
		{
			name:     "storage error",
			login:    existingUser.Login,
			password: correctPassword,
			mockStorage: &mockUserStorage{
				GetByLoginFunc: func(ctx context.Context, login string) (*models.User, error) {
					return nil, errors.New("database error")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewUserService(tt.mockStorage, &mockWalletStorage{}, secret, 24*time.Hour)

			user, token, err := service.Login(ctx, tt.login, tt.password)

			if (err != nil) != tt.wantErr {
				t.Errorf("Login() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				if tt.errType != nil && !errors.Is(err, tt.errType) {
					t.Errorf("Login() error = %v, want %v", err, tt.errType)
				}
				return
			}

			if user == nil {
				t.Fatal("Login() returned nil user")
			}
			if token == "" {
				t.Error("Login() returned empty token")
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.UserID != existingUser.ID {
				t.Errorf("token UserID = %s, want %s", claims.UserID, existingUser.ID)
			}
			if claims.Role != existingUser.Role {
				t.Errorf("token Role = %s, want %s", claims.Role, existingUser.Role)
			}
		})
	}
}
