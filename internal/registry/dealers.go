package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/zulandar/bikereg/internal/models"
)

// DealerInput is a dealer record as entered by an admin.
type DealerInput struct {
	Status               string `json:"status"`
	ExOrMulti            string `json:"exOrMulti"`
	HondaExclusiveOutlet string `json:"hondaExclusiveOutlet"`
	PIC                  string `json:"pic"`
	DlrName              string `json:"dlrName"`
	Region               string `json:"region"`
	State                string `json:"state"`
	Town                 string `json:"town"`
	Address              string `json:"address"`
	Phone1               string `json:"phone1"`
	Phone2               string `json:"phone2"`
	OwnerOrContactPerson string `json:"ownerOrContactPerson"`
}

// normalize trims every field and upper-cases the name-like ones so that
// (dlrName, state, town) compares consistently.
func (in *DealerInput) normalize() {
	for _, s := range []*string{
		&in.Status, &in.ExOrMulti, &in.HondaExclusiveOutlet, &in.Address,
		&in.Phone1, &in.Phone2,
	} {
		*s = strings.TrimSpace(*s)
	}
	for _, s := range []*string{
		&in.PIC, &in.DlrName, &in.Region, &in.State, &in.Town, &in.OwnerOrContactPerson,
	} {
		*s = strings.ToUpper(strings.TrimSpace(*s))
	}
}

func (in DealerInput) validate() error {
	errs := fieldErrors{}
	required := []struct{ field, value string }{
		{"status", in.Status},
		{"exOrMulti", in.ExOrMulti},
		{"hondaExclusiveOutlet", in.HondaExclusiveOutlet},
		{"pic", in.PIC},
		{"dlrName", in.DlrName},
		{"region", in.Region},
		{"state", in.State},
		{"town", in.Town},
		{"address", in.Address},
		{"phone1", in.Phone1},
		{"ownerOrContactPerson", in.OwnerOrContactPerson},
	}
	for _, r := range required {
		if r.value == "" {
			errs.add(r.field, "All fields are required except Phone 2.")
		}
	}
	if in.ExOrMulti != "" && in.ExOrMulti != "Exclusive" && in.ExOrMulti != "Multi" {
		errs.add("exOrMulti", "Must be Exclusive or Multi.")
	}
	if in.Phone1 != "" && !isDigits(in.Phone1, 11) {
		errs.add("phone1", "Phone 1 must be exactly 11 digits.")
	}
	if in.Phone2 != "" && !isDigits(in.Phone2, 11) {
		errs.add("phone2", "Phone 2 must be exactly 11 digits.")
	}
	return errs.err()
}

func (in DealerInput) apply(d *models.Dealer) {
	d.Status = in.Status
	d.ExOrMulti = in.ExOrMulti
	d.HondaExclusiveOutlet = in.HondaExclusiveOutlet
	d.PIC = in.PIC
	d.DlrName = in.DlrName
	d.Region = in.Region
	d.State = in.State
	d.Town = in.Town
	d.Address = in.Address
	d.Phone1 = in.Phone1
	d.Phone2 = in.Phone2
	d.OwnerOrContactPerson = in.OwnerOrContactPerson
}

// AddDealer stores a new dealer. The same name in the same state and town
// is a duplicate.
func (r *Registry) AddDealer(ctx context.Context, in DealerInput) (*models.Dealer, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := r.checkDealerUnique(ctx, in, 0); err != nil {
		return nil, err
	}

	var d models.Dealer
	in.apply(&d)
	if err := r.db.WithContext(ctx).Create(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: dealer %s", ErrDuplicate, in.DlrName)
		}
		return nil, fmt.Errorf("registry: add dealer %s: %w", in.DlrName, err)
	}
	return &d, nil
}

func (r *Registry) checkDealerUnique(ctx context.Context, in DealerInput, exceptID uint) error {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Dealer{}).
		Where("dlr_name = ? AND state = ? AND town = ?", in.DlrName, in.State, in.Town)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("registry: check dealer %s: %w", in.DlrName, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: dealer %s in %s, %s", ErrDuplicate, in.DlrName, in.Town, in.State)
	}
	return nil
}

// DealerQuery filters ListDealers. Search matches name, town, state,
// region, contact person or PIC, case-insensitively.
type DealerQuery struct {
	Page
	Search string
}

// ListDealers returns a page of dealers, newest first, and the total match
// count.
func (r *Registry) ListDealers(ctx context.Context, q DealerQuery) ([]models.Dealer, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Dealer{})
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToUpper(s) + "%"
		base = base.Where(
			"UPPER(dlr_name) LIKE ? OR UPPER(town) LIKE ? OR UPPER(state) LIKE ? OR UPPER(region) LIKE ? OR UPPER(owner_or_contact_person) LIKE ? OR UPPER(pic) LIKE ?",
			like, like, like, like, like, like,
		)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("registry: count dealers: %w", err)
	}
	var out []models.Dealer
	if err := q.Page.apply(base.Order("created_at DESC").Order("id DESC")).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("registry: list dealers: %w", err)
	}
	return out, total, nil
}

// DealerNames returns every dealer name for the registration form.
func (r *Registry) DealerNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&models.Dealer{}).Order("dlr_name").Pluck("dlr_name", &names).Error; err != nil {
		return nil, fmt.Errorf("registry: dealer names: %w", err)
	}
	return names, nil
}

// UpdateDealer replaces a dealer's fields.
func (r *Registry) UpdateDealer(ctx context.Context, id uint, in DealerInput) (*models.Dealer, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	var d models.Dealer
	err := r.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("dealer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: update dealer %d: %w", id, err)
	}
	if err := r.checkDealerUnique(ctx, in, id); err != nil {
		return nil, err
	}

	in.apply(&d)
	if err := r.db.WithContext(ctx).Save(&d).Error; err != nil {
		return nil, fmt.Errorf("registry: update dealer %d: %w", id, err)
	}
	return &d, nil
}

// DeleteDealer removes a dealer.
func (r *Registry) DeleteDealer(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Dealer{}, id)
	if res.Error != nil {
		return fmt.Errorf("registry: delete dealer %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("dealer", id)
	}
	return nil
}

// DeleteAllDealers removes every dealer and reports how many.
func (r *Registry) DeleteAllDealers(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Dealer{})
	if res.Error != nil {
		return 0, fmt.Errorf("registry: delete all dealers: %w", res.Error)
	}
	return res.RowsAffected, nil
}
