package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/store"
)

// Applicants returns the ApplicantManagement plugin
func Applicants(s store.Store, now func() time.Time) kernel.Plugin {
	if now == nil {
		now = time.Now
	}

	return kernel.Plugin{
		Name:        "ApplicantManagement",
		Description: "Manage job applicants",
		Functions: []kernel.Function{
			{
				Name:        "add_applicant",
				Description: "Add a new applicant to the system",
				Params: []kernel.Param{
					{Name: "name", Type: "string", Description: "The applicant's full name"},
					{Name: "email", Type: "string", Description: "The applicant's email address"},
					{Name: "position", Type: "string", Description: "The position being applied for"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					name, err := args.String("name")
					if err != nil {
						return nil, err
					}
					email, err := args.String("email")
					if err != nil {
						return nil, err
					}
					position, err := args.String("position")
					if err != nil {
						return nil, err
					}

					err = s.AddApplicant(ctx, store.Applicant{
						Name:            name,
						Email:           email,
						Position:        position,
						ApplicationDate: now(),
					})
					if err != nil {
						return nil, err
					}
					return fmt.Sprintf("Added applicant %s for position %s", name, position), nil
				},
			},
			{
				Name:        "get_applicant_by_name",
				Description: "Get information about a specific applicant by name",
				Params: []kernel.Param{
					{Name: "name", Type: "string", Description: "The full name of the applicant to find"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					name, err := args.String("name")
					if err != nil {
						return nil, err
					}
					all, err := s.ListApplicants(ctx)
					if err != nil {
						return nil, err
					}
					for _, a := range all {
						if strings.EqualFold(a.Name, strings.TrimSpace(name)) {
							return a, nil
						}
					}
					return "Applicant not found", nil
				},
			},
			{
				Name:        "get_applicants_by_position",
				Description: "Get all applicants for a specific position",
				Params: []kernel.Param{
					{Name: "position", Type: "string", Description: "The position to search for"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					position, err := args.String("position")
					if err != nil {
						return nil, err
					}
					all, err := s.ListApplicants(ctx)
					if err != nil {
						return nil, err
					}
					var matched []store.Applicant
					for _, a := range all {
						if strings.EqualFold(a.Position, strings.TrimSpace(position)) {
							matched = append(matched, a)
						}
					}
					if len(matched) == 0 {
						return "No applicants found for this position", nil
					}
					return matched, nil
				},
			},
			{
				Name:        "get_all_applicants",
				Description: "Get an updated list of all applicants with their details",
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return s.ListApplicants(ctx)
				},
			},
		},
	}
}
