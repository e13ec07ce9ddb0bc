package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"mood/internal/metrics"
	"mood/internal/models"
	"mood/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 8

	registrationClosedKey = "registration:closed"
	registrationClosedTTL = time.Minute
)

type RegisterInput struct {
	Email         string `json:"email" form:"email"`
	Username      string `json:"username" form:"username"`
	Password      string `json:"password" form:"password"`
	InvitationKey string `json:"invitationKey" form:"invitation_key"`
}

type AuthService struct {
	db            *gorm.DB
	logger        *zap.SugaredLogger
	metrics       *metrics.Metrics
	cache         *utils.Cache
	invitationKey string
}

// NewAuthService builds the account service. With an empty invitationKey
// only the very first account can be registered.
func NewAuthService(db *gorm.DB, logger *zap.SugaredLogger, m *metrics.Metrics, cache *utils.Cache, invitationKey string) *AuthService {
	return &AuthService{db: db, logger: logger, metrics: m, cache: cache, invitationKey: invitationKey}
}

// CanRegister reports whether registration is open without an invitation.
// Accounts are never deleted, so only the closed answer is cached.
func (s *AuthService) CanRegister(ctx context.Context) (bool, error) {
	if s.cache.Get(registrationClosedKey) != nil {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, Internal("count users", err)
	}
	if count > 0 {
		s.cache.Set(registrationClosedKey, true, registrationClosedTTL)
	}
	return count == 0, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	if email == "" || username == "" || in.Password == "" {
		return nil, BadRequest("Email, nom d'utilisateur et mot de passe sont requis")
	}
	if !strings.Contains(email, "@") {
		return nil, BadRequest("Adresse email invalide")
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return nil, BadRequest("Le nom d'utilisateur doit avoir au moins 3 caractères")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, BadRequest("Le mot de passe doit avoir au moins 8 caractères")
	}

	open, err := s.CanRegister(ctx)
	if err != nil {
		return nil, err
	}
	if !open && (s.invitationKey == "" || in.InvitationKey != s.invitationKey) {
		return nil, Forbidden("Inscription non autorisée")
	}

	var existing int64
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&existing).Error
	if err != nil {
		return nil, Internal("check existing user", err)
	}
	if existing > 0 {
		return nil, Conflict("Email ou nom d'utilisateur déjà utilisé")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, Internal("hash password", err)
	}

	user := models.User{Email: email, Username: username, Password: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, Conflict("Email ou nom d'utilisateur déjà utilisé")
		}
		return nil, Internal("create user", err)
	}

	s.cache.Set(registrationClosedKey, true, registrationClosedTTL)
	s.logger.Infow("user registered", "user_id", user.ID, "first_user", open)
	return &user, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, BadRequest("Email et mot de passe sont requis")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Internal("find user", err)
	}
	if err != nil || !utils.CheckPasswordHash(password, user.Password) {
		s.metrics.Login(metrics.OutcomeFailure)
		return nil, Unauthorized("Email ou mot de passe incorrect")
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	return &user, nil
}
