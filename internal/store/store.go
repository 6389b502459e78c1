package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Applicant represents a job applicant
type Applicant struct {
	Name            string         `json:"name" yaml:"name"`
	Email           string         `json:"email" yaml:"email"`
	Position        string         `json:"position" yaml:"position"`
	ApplicationDate time.Time      `json:"application_date" yaml:"-"`
	DaysAgo         int            `json:"-" yaml:"days_ago"`
	AdditionalData  map[string]any `json:"additional_data,omitempty" yaml:"additional_data"`
}

// Customer represents a life insurance policy holder
type Customer struct {
	PolicyNumber    string    `json:"policy_number" yaml:"policy_number"`
	Name            string    `json:"name" yaml:"name"`
	Address         string    `json:"address" yaml:"address"`
	PolicyType      string    `json:"policy_type" yaml:"policy_type"`
	CoverageAmount  int       `json:"coverage_amount" yaml:"coverage_amount"`
	Beneficiary     string    `json:"beneficiary" yaml:"beneficiary"`
	LastInteraction time.Time `json:"last_interaction" yaml:"-"`
	MonthsSince     int       `json:"-" yaml:"months_since_interaction"`
	PendingClaims   []string  `json:"pending_claims" yaml:"pending_claims"`
}

// Light represents a smart-home light
type Light struct {
	ID         int    `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	IsOn       bool   `json:"is_on" yaml:"is_on"`
	Brightness int    `json:"brightness" yaml:"brightness"`
	Color      string `json:"color" yaml:"color"`
}

// Store owns the mock data the plugins operate on
type Store interface {
	AddApplicant(ctx context.Context, a Applicant) error
	ListApplicants(ctx context.Context) ([]Applicant, error)

	GetCustomer(ctx context.Context, policyNumber string) (*Customer, error)
	UpdateCustomerAddress(ctx context.Context, policyNumber, address string) error

	ListLights(ctx context.Context) ([]Light, error)
	GetLight(ctx context.Context, id int) (*Light, error)
	SaveLight(ctx context.Context, light Light) error

	Close() error
}
