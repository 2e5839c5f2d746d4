package repositories

import (
	"sync"

	"github.com/google/uuid"

	"yetkaz/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{products: make(map[string]models.Product)}
}

// GetAll returns all products.
func (r *MockProductRepository) GetAll() ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

// GetByID returns a product by its ID, or nil.
func (r *MockProductRepository) GetByID(id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Create stores a product.
func (r *MockProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	r.products[product.ID] = *product
	return nil
}

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]models.User)}
}

// GetByID returns a user by ID, or nil.
func (r *MockUserRepository) GetByID(id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Create stores a user.
func (r *MockUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.users[user.ID] = *user
	return nil
}

// MockBranchRepository is an in-memory implementation of BranchRepository.
type MockBranchRepository struct {
	branches []models.Branch
	mu       sync.RWMutex
}

// NewMockBranchRepository creates a new instance of MockBranchRepository.
func NewMockBranchRepository() *MockBranchRepository {
	return &MockBranchRepository{}
}

// ListActive returns active branches in insertion order.
func (r *MockBranchRepository) ListActive() ([]models.Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Branch
	for _, b := range r.branches {
		if b.Active {
			out = append(out, b)
		}
	}
	return out, nil
}

// Create appends a branch.
func (r *MockBranchRepository) Create(branch *models.Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if branch.ID == "" {
		branch.ID = uuid.New().String()
	}
	r.branches = append(r.branches, *branch)
	return nil
}
