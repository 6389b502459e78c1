package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/themobileprof/kernelchat/internal/kernel"
)

// Departments are the valid document routing destinations
var Departments = []string{
	"Accounting",
	"Legal",
	"Human Resources",
	"IT Support",
	"Sales",
	"Customer Service",
	"Executive Office",
}

// RouteResult is the outcome of routing a document
type RouteResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RoutedTo string `json:"routed_to"`
}

// Routing returns the document Routing plugin
func Routing() kernel.Plugin {
	return kernel.Plugin{
		Name:        "Routing",
		Description: "Route documents to departments",
		Functions: []kernel.Function{
			{
				Name:        "route_document",
				Description: "Route a document to a specific department",
				Params: []kernel.Param{
					{Name: "department", Type: "string", Description: "The department to route the document to"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					department, err := args.String("department")
					if err != nil {
						return nil, err
					}
					return RouteDocument(department), nil
				},
			},
			{
				Name:        "analyze_document",
				Description: "Analyze the content of a document and suggest where it should be routed",
				Params: []kernel.Param{
					{Name: "content", Type: "string", Description: "The content of the document to be analyzed"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					content, err := args.String("content")
					if err != nil {
						return nil, err
					}
					return fmt.Sprintf("Document content: %s\n\nPossible routing destinations: %s",
						content, strings.Join(Departments, ", ")), nil
				},
			},
			{
				Name:        "get_valid_destinations",
				Description: "Get list of valid routing destinations",
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return Departments, nil
				},
			},
		},
	}
}

// RouteDocument validates department against the known destinations.
// The match is exact and case-sensitive.
func RouteDocument(department string) RouteResult {
	for _, d := range Departments {
		if d == department {
			return RouteResult{
				Success:  true,
				Message:  fmt.Sprintf("Document successfully routed to %s.", d),
				RoutedTo: d,
			}
		}
	}
	return RouteResult{
		Success: false,
		Message: fmt.Sprintf("Error: %s is not a valid routing destination.", department),
	}
}
