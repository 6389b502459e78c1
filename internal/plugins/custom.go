package plugins

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/privacy"
)

// CustomOptions configures the Custom plugin
type CustomOptions struct {
	Now    func() time.Time
	Random func(n int) int // returns a value in [0, n)
	Logf   func(format string, args ...any)
	News   *NewsReader
}

// Custom returns the general purpose Custom plugin
func Custom(opts CustomOptions) kernel.Plugin {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Random == nil {
		opts.Random = rand.IntN
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	if opts.News == nil {
		opts.News = NewNewsReader("", nil)
	}

	return kernel.Plugin{
		Name:        "Custom",
		Description: "Time, random numbers, console logging and news",
		Functions: []kernel.Function{
			{
				Name:        "get_current_time",
				Description: "Get the current time when the function is called",
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return opts.Now().Format("15:04:05"), nil
				},
			},
			{
				Name:        "get_random_number",
				Description: "Get a random number between min and max, inclusive",
				Params: []kernel.Param{
					{Name: "min", Type: "int"},
					{Name: "max", Type: "int"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					lo, err := args.Int("min")
					if err != nil {
						return nil, err
					}
					hi, err := args.Int("max")
					if err != nil {
						return nil, err
					}
					if lo > hi {
						lo, hi = hi, lo
					}
					if hi-lo < 0 || hi-lo == math.MaxInt {
						return nil, fmt.Errorf("%w: range %d..%d is too large", kernel.ErrInvalidArgument, lo, hi)
					}
					return lo + opts.Random(hi-lo+1), nil
				},
			},
			{
				Name:        "console_log",
				Description: "Log something to the console, only when requested by the user",
				Params: []kernel.Param{
					{Name: "something", Type: "string", Description: "The phrase or word to print to the console"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					something, err := args.String("something")
					if err != nil {
						return nil, err
					}
					opts.Logf("📝 console_log: %s", privacy.SanitizeForLogging(something))
					return "Logged to console: " + something, nil
				},
			},
			{
				Name:        "get_news",
				Description: "Get five current news articles with their links and a blurb",
				Params: []kernel.Param{
					{Name: "category", Type: "string", Description: "News category, for example World, Technology or Business"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return opts.News.Latest(ctx, args.StringOr("category", "HomePage"))
				},
			},
			{
				Name:        "get_headlines",
				Description: "Get the top articles for several news categories at once",
				Params: []kernel.Param{
					{Name: "categories", Type: "[]string", Description: "The categories to fetch"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					categories, err := args.Strings("categories")
					if err != nil {
						return nil, err
					}
					return opts.News.Headlines(ctx, categories)
				},
			},
		},
	}
}
