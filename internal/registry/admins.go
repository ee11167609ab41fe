package registry

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/zulandar/bikereg/internal/db"
	"github.com/zulandar/bikereg/internal/models"
)

// bcryptCost is lowered in tests.
var bcryptCost = bcrypt.DefaultCost

// generatedPasswordLen is the length of passwords handed out to new admins.
const generatedPasswordLen = 6

func generatePassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:generatedPasswordLen]
}

func hashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("registry: hash password: %w", err)
	}
	return string(h), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddAdmin creates an admin with a generated password. The plaintext
// password is returned once and only its hash is stored.
func (r *Registry) AddAdmin(ctx context.Context, fullName, email string) (*models.Admin, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	errs := fieldErrors{}
	if fullName == "" {
		errs.add("fullName", "Full name and email are required")
	}
	if email == "" {
		errs.add("email", "Full name and email are required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.add("email", "Email is not valid")
	}
	if err := errs.err(); err != nil {
		return nil, "", err
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Admin{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, "", fmt.Errorf("registry: add admin %s: %w", email, err)
	}
	if n > 0 {
		return nil, "", fmt.Errorf("%w: admin %s", ErrDuplicate, email)
	}

	password := generatePassword()
	hash, err := hashPassword(password)
	if err != nil {
		return nil, "", err
	}
	a := models.Admin{FullName: fullName, Email: email, Password: hash, Role: models.RoleAdmin}
	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", fmt.Errorf("%w: admin %s", ErrDuplicate, email)
		}
		return nil, "", fmt.Errorf("registry: add admin %s: %w", email, err)
	}
	return &a, password, nil
}

// ListAdmins returns every admin, newest first.
func (r *Registry) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	var out []models.Admin
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("registry: list admins: %w", err)
	}
	return out, nil
}

// DeleteAdmin removes an admin.
func (r *Registry) DeleteAdmin(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Admin{}, id)
	if res.Error != nil {
		return fmt.Errorf("registry: delete admin %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("admin", id)
	}
	return nil
}

// RegeneratePassword replaces an admin's password with a new generated one
// and returns it.
func (r *Registry) RegeneratePassword(ctx context.Context, id uint) (string, error) {
	var a models.Admin
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", notFound("admin", id)
	}
	if err != nil {
		return "", fmt.Errorf("registry: regenerate password %d: %w", id, err)
	}

	password := generatePassword()
	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}
	if err := r.db.WithContext(ctx).Model(&a).Update("password", hash).Error; err != nil {
		return "", fmt.Errorf("registry: regenerate password %d: %w", id, err)
	}
	return password, nil
}

// Login checks credentials and returns the admin's role. The configured
// super admin is checked against configuration first; everyone else
// against their stored hash.
func (r *Registry) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", &ValidationError{Fields: map[string]string{"email": "Email and password are required"}}
	}

	if super := normalizeEmail(r.auth.SuperAdminEmail); super != "" && email == super {
		if r.auth.SuperAdminPassword != "" &&
			subtle.ConstantTimeCompare([]byte(password), []byte(r.auth.SuperAdminPassword)) == 1 {
			return models.RoleSuperAdmin, nil
		}
		return "", fmt.Errorf("%w: invalid password", ErrInvalidCredentials)
	}

	var a models.Admin
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: admin not found", ErrInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("registry: login %s: %w", email, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) != nil {
		return "", fmt.Errorf("%w: invalid password", ErrInvalidCredentials)
	}
	return a.Role, nil
}

// SeedSuperAdmin stores the configured super admin, reporting false when no
// super admin is configured.
func (r *Registry) SeedSuperAdmin(ctx context.Context) (bool, error) {
	email := normalizeEmail(r.auth.SuperAdminEmail)
	if email == "" || r.auth.SuperAdminPassword == "" {
		return false, nil
	}
	hash, err := hashPassword(r.auth.SuperAdminPassword)
	if err != nil {
		return false, err
	}
	if err := db.SeedSuperAdmin(r.db.WithContext(ctx), email, hash); err != nil {
		return false, err
	}
	return true, nil
}

// CheckRegistrationPassword gates the dealer registration form. An unset
// registration password rejects everything.
func (r *Registry) CheckRegistrationPassword(password string) error {
	want := r.auth.RegistrationPassword
	if want == "" || subtle.ConstantTimeCompare([]byte(password), []byte(want)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
