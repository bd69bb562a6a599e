package services

import (
	"context"
	"errors"
	"strings"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserInput creates a user. An empty Role means seller.
type UserInput struct {
	Name     string      `json:"name" validate:"required,max=100"`
	Email    string      `json:"email" validate:"required,email,max=100"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=admin seller"`
}

// UserPatch updates the non-nil fields of a user.
type UserPatch struct {
	Name     *string      `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string      `json:"email" validate:"omitempty,email,max=100"`
	Password *string      `json:"password" validate:"omitempty,min=6"`
	Role     *models.Role `json:"role" validate:"omitempty,oneof=admin seller"`
	Active   *bool        `json:"active"`
}

// UserService manages staff accounts and checks credentials.
type UserService struct {
	db   *gorm.DB
	cost int
	log  logrus.FieldLogger
}

func NewUserService(db *gorm.DB, log logrus.FieldLogger) *UserService {
	return &UserService{db: db, cost: bcrypt.DefaultCost, log: log.WithField("module", "users")}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("name, id").Find(&users).Error; err != nil {
		return nil, wrapStore("list users", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "user", ID: id}
	}
	if err != nil {
		return nil, wrapStore("load user", err)
	}
	return &u, nil
}

// IsActive reports whether id names an existing active user.
func (s *UserService) IsActive(ctx context.Context, id uint) bool {
	var n int64
	s.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND active = ?", id, true).Count(&n)
	return n > 0
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if v := validation.Struct(in); !v.Empty() {
		return nil, NewValidationError(v)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, wrapStore("hash password", err)
	}
	role := in.Role
	if role == "" {
		role = models.RoleSeller
	}
	u := models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: string(hash),
		Role:     role,
		Active:   true,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, s.storeErr("create user", u.Email, err)
	}
	return &u, nil
}

func (s *UserService) Update(ctx context.Context, id uint, patch UserPatch) (*models.User, error) {
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
	}
	if v := validation.Struct(patch); !v.Empty() {
		return nil, NewValidationError(v)
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.cost)
		if err != nil {
			return nil, wrapStore("hash password", err)
		}
		u.Password = string(hash)
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return nil, s.storeErr("update user", u.Email, err)
	}
	return u, nil
}

// Deactivate disables the account. Users are never removed since sales reference them.
func (s *UserService) Deactivate(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return wrapStore("deactivate user", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entity: "user", ID: id}
	}
	return nil
}

// Authenticate checks email and password. Unknown email and wrong password
// produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, wrapStore("load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrUserInactive
	}
	return &u, nil
}

func (s *UserService) storeErr(op, email string, err error) error {
	if isDuplicate(err) {
		return &ConflictError{Field: "email", Value: email}
	}
	return wrapStore(op, err)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
