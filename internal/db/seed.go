package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/pharmacy-pos/internal/config"
	"github.com/diewo77/pharmacy-pos/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrNoAdminPassword is returned when the users table is empty and no
// bootstrap password is configured.
var ErrNoAdminPassword = errors.New("no users exist and ADMIN_PASSWORD is not set")

// SeedAdmin creates the bootstrap administrator when the users table is
// empty. It is idempotent and reports whether a user was created.
func SeedAdmin(conn *gorm.DB, admin config.AdminConfig) (bool, error) {
	var count int64
	if err := conn.Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if admin.Password == "" {
		return false, ErrNoAdminPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	user := models.User{
		Name:     admin.Name,
		Email:    admin.Email,
		Password: string(hash),
		Role:     models.RoleAdmin,
		Active:   true,
	}
	if err := conn.Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}
