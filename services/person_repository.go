package services

import (
	"context"
	"errors"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"

	"gorm.io/gorm"
)

var ErrPersonNotFound = errors.New("person not found")

// PersonRepository is the narrow contract the import engine consumes the
// Person store through. Classification and resolution are written against this
// interface, not against the database.
type PersonRepository interface {
	FindByID(ctx context.Context, tenantID, id int) (*models.Person, error)
	FindByEmail(ctx context.Context, tenantID int, email string) (*models.Person, error)
	FindByDocument(ctx context.Context, tenantID int, document string) (*models.Person, error)
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, tenantID, id int, fields map[string]interface{}) error
}

// GormPersonRepository backs PersonRepository with the shared MySQL store.
type GormPersonRepository struct {
	db *gorm.DB
}

func NewGormPersonRepository(db *gorm.DB) *GormPersonRepository {
	if db == nil {
		db = config.DB
	}
	return &GormPersonRepository{db: db}
}

func (r *GormPersonRepository) FindByID(ctx context.Context, tenantID, id int) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return &person, nil
}

// FindByEmail matches case-insensitively on the trimmed address. Returns
// (nil, nil) when nothing matches.
func (r *GormPersonRepository) FindByEmail(ctx context.Context, tenantID int, email string) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(TRIM(email)) = LOWER(TRIM(?))", tenantID, email).
		First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &person, nil
}

// FindByDocument matches on the trimmed document number. Returns (nil, nil)
// when nothing matches.
func (r *GormPersonRepository) FindByDocument(ctx context.Context, tenantID int, document string) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND TRIM(document_number) = TRIM(?)", tenantID, document).
		First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &person, nil
}

func (r *GormPersonRepository) Create(ctx context.Context, person *models.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

func (r *GormPersonRepository) Update(ctx context.Context, tenantID, id int, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	// RowsAffected is not checked here: a blank-preserving update can be a
	// genuine no-op and MySQL reports identical-value writes as zero rows.
	return r.db.WithContext(ctx).
		Model(&models.Person{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields).Error
}
