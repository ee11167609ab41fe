package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/zulandar/bikereg/internal/models"
)

// CustomerInput is a registration as submitted by a dealer.
type CustomerInput struct {
	EngineNumber string `json:"engineNumber"`
	Title        string `json:"title"`
	BuyerName    string `json:"buyerName"`
	Phone        string `json:"phone"`
	State        string `json:"state"`
	Dealer       string `json:"dealer"`
	PurchaseDate string `json:"purchaseDate"`
	Usage        string `json:"usage"`
	EndUser      string `json:"endUser"`
	EndUserPhone string `json:"endUserPhone"`
	Model        string `json:"model"`
	Variant      string `json:"variant"`
	Color        string `json:"color"`
}

func (in *CustomerInput) normalize() {
	for _, s := range []*string{
		&in.EngineNumber, &in.Title, &in.BuyerName, &in.Phone, &in.State,
		&in.Dealer, &in.PurchaseDate, &in.Usage, &in.EndUser, &in.EndUserPhone,
		&in.Model, &in.Variant, &in.Color,
	} {
		*s = strings.TrimSpace(*s)
	}
}

func (in CustomerInput) validate() error {
	errs := fieldErrors{}
	required := []struct{ field, value, msg string }{
		{"engineNumber", in.EngineNumber, "Engine number is required."},
		{"title", in.Title, "Title is required."},
		{"buyerName", in.BuyerName, "Buyer name is required."},
		{"state", in.State, "State is required."},
		{"dealer", in.Dealer, "Dealer is required."},
		{"purchaseDate", in.PurchaseDate, "Purchase date is required."},
		{"usage", in.Usage, "Usage is required."},
		{"model", in.Model, "Model is required."},
		{"color", in.Color, "Color is required."},
	}
	for _, r := range required {
		if r.value == "" {
			errs.add(r.field, r.msg)
		}
	}
	if !isDigits(in.Phone, 11) {
		errs.add("phone", "Phone must be 11 digits.")
	}
	if in.EndUserPhone != "" && !isDigits(in.EndUserPhone, 11) {
		errs.add("endUserPhone", "Phone must be 11 digits.")
	}
	if in.Model != "" {
		spec, ok := LookupModel(in.Model)
		switch {
		case !ok:
			errs.add("model", "Unknown model.")
		case len(spec.Variants) > 0 && in.Variant == "":
			errs.add("variant", "Variant is required.")
		case in.Variant != "" && !contains(spec.Variants, in.Variant):
			errs.add("variant", "Variant is not offered for this model.")
		}
		if ok && in.Color != "" && !contains(spec.Colors, in.Color) {
			errs.add("color", "Color is not offered for this model.")
		}
	}
	return errs.err()
}

func (in CustomerInput) apply(c *models.Customer) {
	c.EngineNumber = in.EngineNumber
	c.Title = in.Title
	c.BuyerName = in.BuyerName
	c.Phone = in.Phone
	c.State = in.State
	c.Dealer = in.Dealer
	c.PurchaseDate = in.PurchaseDate
	c.Usage = in.Usage
	c.EndUser = in.EndUser
	c.EndUserPhone = in.EndUserPhone
	c.Model = in.Model
	c.Variant = in.Variant
	c.Color = in.Color
	c.RimType, c.StartType = SplitVariant(in.Variant)
}

// Register validates and stores a new customer, then records and forwards
// an admin notification.
func (r *Registry) Register(ctx context.Context, in CustomerInput) (*models.Customer, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	exists, err := r.EngineExists(ctx, in.EngineNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: engine number %s", ErrDuplicate, in.EngineNumber)
	}

	var c models.Customer
	in.apply(&c)
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: engine number %s", ErrDuplicate, in.EngineNumber)
		}
		return nil, fmt.Errorf("registry: register %s: %w", in.EngineNumber, err)
	}

	dealer := c.Dealer
	if dealer == "" {
		dealer = "a dealer"
	}
	msg := "New customer registered by " + dealer
	if err := r.addNotification(ctx, msg); err != nil {
		log.Printf("registry: %v", err)
	}
	r.forward(fmt.Sprintf("%s (engine %s, %s %s)", msg, c.EngineNumber, c.Model, c.Color))
	return &c, nil
}

// EngineExists reports whether an engine number is already registered.
func (r *Registry) EngineExists(ctx context.Context, engineNumber string) (bool, error) {
	engineNumber = strings.TrimSpace(engineNumber)
	if engineNumber == "" {
		return false, &ValidationError{Fields: map[string]string{"engineNumber": "Engine number is required"}}
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("engine_number = ?", engineNumber).Count(&n).Error; err != nil {
		return false, fmt.Errorf("registry: check engine %s: %w", engineNumber, err)
	}
	return n > 0, nil
}

// ListCustomers returns every registration, newest first.
func (r *Registry) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("registry: list customers: %w", err)
	}
	return out, nil
}

// GetCustomer loads one registration.
func (r *Registry) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("customer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get customer %d: %w", id, err)
	}
	return &c, nil
}

// UpdateCustomer replaces a registration's fields after validating them.
func (r *Registry) UpdateCustomer(ctx context.Context, id uint, in CustomerInput) (*models.Customer, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := r.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("engine_number = ? AND id <> ?", in.EngineNumber, id).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("registry: update customer %d: %w", id, err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: engine number %s", ErrDuplicate, in.EngineNumber)
	}

	in.apply(c)
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("registry: update customer %d: %w", id, err)
	}
	return c, nil
}

// DeleteCustomer removes a registration.
func (r *Registry) DeleteCustomer(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Customer{}, id)
	if res.Error != nil {
		return fmt.Errorf("registry: delete customer %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("customer", id)
	}
	return nil
}

// DeleteAllCustomers removes every registration and reports how many.
func (r *Registry) DeleteAllCustomers(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Customer{})
	if res.Error != nil {
		return 0, fmt.Errorf("registry: delete all customers: %w", res.Error)
	}
	return res.RowsAffected, nil
}
