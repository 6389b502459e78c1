package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps the plugin data in process memory
type MemoryStore struct {
	mu         sync.RWMutex
	applicants []Applicant
	customers  map[string]*Customer
	lights     []Light
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store populated from seed (may be nil)
func NewMemoryStore(seed *Seed) *MemoryStore {
	s := &MemoryStore{
		applicants: make([]Applicant, 0),
		customers:  make(map[string]*Customer),
		lights:     make([]Light, 0),
	}
	if seed == nil {
		return s
	}

	s.applicants = append(s.applicants, seed.Applicants...)
	for i := range seed.Customers {
		c := seed.Customers[i]
		c.PendingClaims = append([]string{}, c.PendingClaims...)
		s.customers[c.PolicyNumber] = &c
	}
	s.lights = append(s.lights, seed.Lights...)
	return s
}

// AddApplicant implements Store.AddApplicant
func (s *MemoryStore) AddApplicant(ctx context.Context, a Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applicants = append(s.applicants, a)
	return nil
}

// ListApplicants implements Store.ListApplicants
func (s *MemoryStore) ListApplicants(ctx context.Context) ([]Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Applicant, len(s.applicants))
	copy(out, s.applicants)
	return out, nil
}

// GetCustomer implements Store.GetCustomer
func (s *MemoryStore) GetCustomer(ctx context.Context, policyNumber string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[strings.TrimSpace(policyNumber)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.PendingClaims = append([]string{}, c.PendingClaims...)
	return &cp, nil
}

// UpdateCustomerAddress implements Store.UpdateCustomerAddress
func (s *MemoryStore) UpdateCustomerAddress(ctx context.Context, policyNumber, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[strings.TrimSpace(policyNumber)]
	if !ok {
		return ErrNotFound
	}
	c.Address = address
	return nil
}

// ListLights implements Store.ListLights
func (s *MemoryStore) ListLights(ctx context.Context) ([]Light, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Light, len(s.lights))
	copy(out, s.lights)
	return out, nil
}

// GetLight implements Store.GetLight
func (s *MemoryStore) GetLight(ctx context.Context, id int) (*Light, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lights {
		if l.ID == id {
			light := l
			return &light, nil
		}
	}
	return nil, ErrNotFound
}

// SaveLight implements Store.SaveLight
func (s *MemoryStore) SaveLight(ctx context.Context, light Light) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lights {
		if s.lights[i].ID == light.ID {
			s.lights[i] = light
			return nil
		}
	}
	return ErrNotFound
}

// Close implements Store.Close
func (s *MemoryStore) Close() error {
	return nil
}
