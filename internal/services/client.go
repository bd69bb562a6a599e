package services

import (
	"context"
	"errors"
	"strings"

	"github.com/diewo77/pharmacy-pos/internal/models"
	"github.com/diewo77/pharmacy-pos/validation"
	"github.com/sirupsen/logrus"
	"github.com/ttacon/libphonenumber"
	"gorm.io/gorm"
)

// ClientInput creates or replaces a client.
type ClientInput struct {
	FirstName  string  `json:"first_name" validate:"required,max=100"`
	LastName   string  `json:"last_name" validate:"required,max=100"`
	NationalID *string `json:"national_id" validate:"omitempty,max=20"`
	Phone      string  `json:"phone" validate:"max=30"`
	Email      string  `json:"email" validate:"omitempty,email,max=100"`
	Address    string  `json:"address"`
}

// ClientService manages the optional parties attached to sales.
type ClientService struct {
	db     *gorm.DB
	region string
	log    logrus.FieldLogger
}

// NewClientService builds the service. region is the ISO country used to
// parse phone numbers written without a country code.
func NewClientService(db *gorm.DB, region string, log logrus.FieldLogger) *ClientService {
	if region == "" {
		region = "PE"
	}
	return &ClientService{db: db, region: region, log: log.WithField("module", "clients")}
}

// List returns clients by last then first name, optionally filtered by a
// search term matched against names and national id.
func (s *ClientService) List(ctx context.Context, search string) ([]models.Client, error) {
	q := s.db.WithContext(ctx).Model(&models.Client{})
	if term := strings.TrimSpace(search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR national_id = ?", like, like, term)
	}
	var clients []models.Client
	if err := q.Order("last_name, first_name, id").Find(&clients).Error; err != nil {
		return nil, wrapStore("list clients", err)
	}
	return clients, nil
}

func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "client", ID: id}
	}
	if err != nil {
		return nil, wrapStore("load client", err)
	}
	return &c, nil
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (*models.Client, error) {
	c := models.Client{}
	if err := s.apply(&c, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, s.storeErr("create client", c.NationalID, err)
	}
	return &c, nil
}

// Update replaces the client's fields with in.
func (s *ClientService) Update(ctx context.Context, id uint, in ClientInput) (*models.Client, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(c, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, s.storeErr("update client", c.NationalID, err)
	}
	return c, nil
}

// Delete removes a client. Past sales keep their totals and lose the link.
func (s *ClientService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Sale{}).Where("client_id = ?", id).Update("client_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Client{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Entity: "client", ID: id}
		}
		return nil
	})
	return wrapStore("delete client", err)
}

func (s *ClientService) apply(c *models.Client, in ClientInput) error {
	v := validation.Struct(in)
	phone := ""
	if strings.TrimSpace(in.Phone) != "" {
		var err error
		if phone, err = NormalizePhone(in.Phone, s.region); err != nil {
			v.Add("phone", "invalid_phone")
		}
	}
	if !v.Empty() {
		return NewValidationError(v)
	}
	c.FirstName = strings.TrimSpace(in.FirstName)
	c.LastName = strings.TrimSpace(in.LastName)
	c.NationalID = blankToNil(in.NationalID)
	c.Phone = phone
	c.Email = strings.TrimSpace(in.Email)
	c.Address = in.Address
	return nil
}

func (s *ClientService) storeErr(op string, nationalID *string, err error) error {
	if isDuplicate(err) {
		return &ConflictError{Field: "national_id", Value: deref(nationalID)}
	}
	return wrapStore(op, err)
}

var errInvalidPhone = errors.New("invalid phone number")

// NormalizePhone parses raw in the given default region and returns it in E.164.
func NormalizePhone(raw, region string) (string, error) {
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
