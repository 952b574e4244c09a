package internal

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// URLStore is the durable record store. It is the single source of truth
// for short code and long URL uniqueness.
type URLStore interface {
	FindByLongURL(ctx context.Context, longURL string) (*URL, error)
	FindByShortCode(ctx context.Context, code string) (*URL, error)
	// Create inserts a new record. Returns ErrDuplicate when the insert
	// violates the unique index on long_url or short_code.
	Create(ctx context.Context, u *URL) error
	// IncrementHitCount bumps hit_count by 1 for the record with the given id.
	IncrementHitCount(ctx context.Context, id int64) error
	// List returns all records, most recently created first.
	List(ctx context.Context) ([]URL, error)
	FindAnalytics(ctx context.Context, shortCode string) (*URLAnalytics, error)
}

// GormStore implements URLStore on a GORM connection. The connection must
// be opened with TranslateError so unique-index violations surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByLongURL(ctx context.Context, longURL string) (*URL, error) {
	var u URL
	err := s.db.WithContext(ctx).Where("long_url = ?", longURL).First(&u).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &u, nil
}

func (s *GormStore) FindByShortCode(ctx context.Context, code string) (*URL, error) {
	var u URL
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&u).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &u, nil
}

func (s *GormStore) Create(ctx context.Context, u *URL) error {
	return translateGormError(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) IncrementHitCount(ctx context.Context, id int64) error {
	return translateGormError(s.db.WithContext(ctx).
		Model(&URL{}).
		Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1)).
		Error)
}

func (s *GormStore) List(ctx context.Context) ([]URL, error) {
	var urls []URL
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&urls).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return urls, nil
}

func (s *GormStore) FindAnalytics(ctx context.Context, shortCode string) (*URLAnalytics, error) {
	var a URLAnalytics
	err := s.db.WithContext(ctx).Where("short_code = ?", shortCode).First(&a).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return &a, nil
}

// Ping checks database connectivity for health reporting.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
