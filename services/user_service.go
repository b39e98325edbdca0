package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/passwords"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("Credenciales invalidas")

type UserService struct {
	DB               *gorm.DB
	Passwords        *passwords.Chain
	Tokens           *utils.TokenIssuer
	MigratePasswords bool
}

func NewUserService(db *gorm.DB, chain *passwords.Chain, tokens *utils.TokenIssuer, migrate bool) *UserService {
	return &UserService{DB: db, Passwords: chain, Tokens: tokens, MigratePasswords: migrate}
}

// Authenticate looks the user up by email and checks the stored password
// against every known legacy scheme. Unknown users and wrong passwords both
// return ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", strings.TrimSpace(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	res, by := s.Passwords.Verify(user.Senha, password)
	if res != passwords.Match {
		scheme := "none"
		if by != nil {
			scheme = by.Name()
		}
		utils.InfoLogger.Printf("[auth] login rejected for user %d (%s, %s)", user.ID, scheme, res)
		return nil, ErrInvalidCredentials
	}

	utils.InfoLogger.Printf("[auth] user %d logged in via %s", user.ID, by.Name())
	if s.MigratePasswords && passwords.ShouldMigrate(res, by) {
		s.upgradePassword(ctx, &user, password, by.Name())
	}
	return &user, nil
}

// upgradePassword rewrites a legacy hash as bcrypt. Failures leave the old
// hash in place.
func (s *UserService) upgradePassword(ctx context.Context, user *models.User, password, from string) {
	hash, err := passwords.Hash(password)
	if err != nil {
		utils.ErrorLogger.Errorf("[auth] bcrypt failed for user %d: %v", user.ID, err)
		return
	}
	err = s.DB.WithContext(ctx).Model(&models.User{}).
		Where("idUsuarios = ?", user.ID).
		Update("senha", hash).Error
	if err != nil {
		utils.ErrorLogger.Errorf("[auth] password upgrade failed for user %d: %v", user.ID, err)
		return
	}
	user.Senha = hash
	utils.InfoLogger.Printf("[auth] upgraded password of user %d from %s to bcrypt", user.ID, from)
}

// IssueToken returns an empty token when signing is disabled.
func (s *UserService) IssueToken(user *models.User) (string, error) {
	if !s.Tokens.Enabled() {
		return "", nil
	}
	return s.Tokens.GenerateToken(user.ID, user.Email)
}
