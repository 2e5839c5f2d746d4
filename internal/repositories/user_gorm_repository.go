package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yetkaz/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{db: db}
}

// GetByID retrieves a user by ID, or nil when absent.
func (r *GORMUserRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

// Create inserts a user row (seeding and tests).
func (r *GORMUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GORMBranchRepository is a GORM implementation of BranchRepository.
type GORMBranchRepository struct {
	db *gorm.DB
}

// NewGORMBranchRepository creates a new instance of GORMBranchRepository.
func NewGORMBranchRepository(db *gorm.DB) *GORMBranchRepository {
	return &GORMBranchRepository{db: db}
}

// ListActive retrieves active branches in creation order, so nearest-branch
// tie-breaking stays deterministic.
func (r *GORMBranchRepository) ListActive() ([]models.Branch, error) {
	var branches []models.Branch
	if err := r.db.Where("active = ?", true).Order("created_at ASC").
		Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("failed to list active branches: %w", err)
	}
	return branches, nil
}

// Create inserts a branch row (seeding and tests).
func (r *GORMBranchRepository) Create(branch *models.Branch) error {
	if branch.ID == "" {
		branch.ID = uuid.New().String()
	}
	if err := r.db.Create(branch).Error; err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}
