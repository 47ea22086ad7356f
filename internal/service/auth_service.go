package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/repository"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

// AuthService registers users, verifies credentials and issues tokens.
type AuthService struct {
	users      UserStore
	tokens     *utils.TokenIssuer
	bcryptCost int
	now        func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(users UserStore, tokens *utils.TokenIssuer, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.DefaultCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost, now: time.Now}
}

// RegisterRequest creates a store owner account.
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FullName  string `json:"fullName"`
	StoreName string `json:"storeName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// CreateStaffRequest adds a user to an existing store.
type CreateStaffRequest struct {
	Username string      `json:"username" binding:"required,min=3,max=50"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     models.Role `json:"role" binding:"required,oneof=admin sales inventory"`
	FullName string      `json:"fullName"`
}

// UpdateSettingsRequest edits the caller's profile and, for admins, the
// store settings. Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	FullName  *string               `json:"fullName"`
	StoreName *string               `json:"storeName"`
	Phone     *string               `json:"phone"`
	Address   *string               `json:"address"`
	Settings  *models.StoreSettings `json:"settings"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates an admin account that owns a new store.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	if err := validateAccount(req.Username, req.Email, req.Password); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		FullName:     strings.TrimSpace(req.FullName),
		StoreName:    strings.TrimSpace(req.StoreName),
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		Settings:     models.DefaultStoreSettings(),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID.Hex()).Str("username", user.Username).Msg("store owner registered")
	return s.issue(user)
}

// CreateStaff adds a user with role to the actor's store.
func (s *AuthService) CreateStaff(ctx context.Context, actor *models.User, req *CreateStaffRequest) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, utils.ErrForbidden
	}
	if err := validateAccount(req.Username, req.Email, req.Password); err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, utils.NewValidationError("role", "must be one of admin, sales, inventory")
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		OwnerID:      actor.OwnerID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FullName:     strings.TrimSpace(req.FullName),
		StoreName:    actor.StoreName,
		Settings:     actor.Settings,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", user.ID.Hex()).
		Str("owner_id", user.OwnerID.Hex()).
		Str("role", string(user.Role)).
		Msg("staff user created")
	return user, nil
}

// Login verifies credentials and issues a token. Unknown usernames and wrong
// passwords yield the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, utils.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, utils.ErrInactiveAccount
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.Hex()).Msg("failed to record last login")
	} else {
		user.LastLogin = &now
	}

	return s.issue(user)
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ValidateJWT(token)
	if err != nil {
		return nil, err
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, utils.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, utils.ErrInactiveAccount
	}
	return user, nil
}

// Me returns the user with the given id.
func (s *AuthService) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateSettings edits the actor's profile. Store name, address and settings
// live on the store owner's document and are admin only.
func (s *AuthService) UpdateSettings(ctx context.Context, actor *models.User, req *UpdateSettingsRequest) (*models.User, error) {
	store := repository.UserProfileUpdate{
		StoreName: trimmed(req.StoreName),
		Address:   trimmed(req.Address),
		Settings:  req.Settings,
	}
	touchesStore := store.StoreName != nil || store.Address != nil || store.Settings != nil

	if req.Settings != nil {
		if actor.Role != models.RoleAdmin {
			return nil, utils.ErrForbidden
		}
		if err := validateSettings(req.Settings); err != nil {
			return nil, err
		}
	}

	personal := repository.UserProfileUpdate{
		FullName: trimmed(req.FullName),
		Phone:    trimmed(req.Phone),
	}
	if actor.ID == actor.OwnerID {
		personal.StoreName = store.StoreName
		personal.Address = store.Address
		personal.Settings = store.Settings
		return s.users.UpdateProfile(ctx, actor.ID, personal)
	}

	var owner *models.User
	if touchesStore {
		if actor.Role != models.RoleAdmin {
			return nil, utils.ErrForbidden
		}
		var err error
		owner, err = s.users.UpdateProfile(ctx, actor.OwnerID, store)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("user_id", actor.ID.Hex()).
			Str("owner_id", actor.OwnerID.Hex()).
			Msg("store settings updated by staff admin")
	}

	user, err := s.users.UpdateProfile(ctx, actor.ID, personal)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		user.StoreName = owner.StoreName
		user.Address = owner.Address
		user.Settings = owner.Settings
	}
	return user, nil
}

// HashPassword returns the bcrypt hash of password.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateJWT(user.ID.Hex(), user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func validateAccount(username, email, password string) error {
	v := &utils.ValidationError{}
	if n := len(strings.TrimSpace(username)); n < 3 || n > 50 {
		v.Add("username", "must be between 3 and 50 characters")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		v.Add("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		v.Add("password", "must be at least 6 characters")
	} else if len(password) > maxPasswordBytes {
		v.Add("password", "must be at most 72 bytes")
	}
	return v.OrNil()
}

func validateSettings(st *models.StoreSettings) error {
	v := &utils.ValidationError{}
	if st.TaxRate.IsNegative() || st.TaxRate.GreaterThan(hundred) {
		v.Add("settings.taxRate", "must be between 0 and 100")
	}
	if st.LowStockThreshold < 0 {
		v.Add("settings.lowStockThreshold", "must not be negative")
	}
	st.Currency = strings.ToUpper(strings.TrimSpace(st.Currency))
	if len(st.Currency) != 3 {
		v.Add("settings.currency", "must be a 3-letter code")
	}
	return v.OrNil()
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
