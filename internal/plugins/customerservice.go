package plugins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/store"
)

const reviewInterval = 365 * 24 * time.Hour

var policyParam = kernel.Param{Name: "policy_number", Type: "string", Description: "The customer's policy number"}

// CustomerService returns the CustomerService plugin for policy holders
func CustomerService(s store.Store, now func() time.Time) kernel.Plugin {
	if now == nil {
		now = time.Now
	}

	// lookup resolves the policy_number argument; a nil customer means not found
	lookup := func(ctx context.Context, args kernel.Args) (*store.Customer, error) {
		policy, err := args.String("policy_number")
		if err != nil {
			return nil, err
		}
		c, err := s.GetCustomer(ctx, strings.TrimSpace(policy))
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return c, err
	}

	return kernel.Plugin{
		Name:        "CustomerService",
		Description: "Look up and update life insurance customers",
		Functions: []kernel.Function{
			{
				Name:        "get_customer_info",
				Description: "Get customer information",
				Params:      []kernel.Param{policyParam},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					c, err := lookup(ctx, args)
					if err != nil {
						return nil, err
					}
					if c == nil {
						return "Customer not found", nil
					}
					return c, nil
				},
			},
			{
				Name:        "update_address",
				Description: "Update customer address",
				Params: []kernel.Param{
					policyParam,
					{Name: "new_address", Type: "string", Description: "The new postal address"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					policy, err := args.String("policy_number")
					if err != nil {
						return nil, err
					}
					address, err := args.String("new_address")
					if err != nil {
						return nil, err
					}
					policy = strings.TrimSpace(policy)
					err = s.UpdateCustomerAddress(ctx, policy, address)
					if errors.Is(err, store.ErrNotFound) {
						return "Customer not found", nil
					}
					if err != nil {
						return nil, err
					}
					return fmt.Sprintf("Address updated successfully for policy %s", policy), nil
				},
			},
			{
				Name:        "get_policy_details",
				Description: "Get policy details",
				Params:      []kernel.Param{policyParam},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					c, err := lookup(ctx, args)
					if err != nil {
						return nil, err
					}
					if c == nil {
						return "Policy not found", nil
					}
					return fmt.Sprintf("Policy Type: %s, Coverage: $%d", c.PolicyType, c.CoverageAmount), nil
				},
			},
			{
				Name:        "check_claim_status",
				Description: "Check claim status",
				Params:      []kernel.Param{policyParam},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					c, err := lookup(ctx, args)
					if err != nil {
						return nil, err
					}
					if c == nil {
						return "Policy not found", nil
					}
					if len(c.PendingClaims) == 0 {
						return "No pending claims", nil
					}
					return "Pending claims: " + strings.Join(c.PendingClaims, ", "), nil
				},
			},
			{
				Name:        "suggest_policy_review",
				Description: "Suggest policy review",
				Params:      []kernel.Param{policyParam},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					c, err := lookup(ctx, args)
					if err != nil {
						return nil, err
					}
					if c == nil {
						return "Policy not found", nil
					}
					if now().Sub(c.LastInteraction) > reviewInterval {
						return "It's been over a year since your last policy review. Would you like to schedule one?", nil
					}
					return "Your policy is up to date.", nil
				},
			},
		},
	}
}
