package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/store"
)

var lightIDParam = kernel.Param{Name: "id", Type: "int", Description: "The light id"}

// Lights returns the smart-home Lights plugin
func Lights(s store.Store) kernel.Plugin {
	// update loads a light, applies fn and saves it back
	update := func(ctx context.Context, args kernel.Args, fn func(*store.Light) error) (any, error) {
		id, err := args.Int("id")
		if err != nil {
			return nil, err
		}
		light, err := s.GetLight(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Light %d not found", id), nil
		}
		if err != nil {
			return nil, err
		}
		if err := fn(light); err != nil {
			return nil, err
		}
		if err := s.SaveLight(ctx, *light); err != nil {
			return nil, err
		}
		return light, nil
	}

	return kernel.Plugin{
		Name:        "Lights",
		Description: "Control the lights in the house",
		Functions: []kernel.Function{
			{
				Name:        "get_lights",
				Description: "Get a list of all lights and their current state",
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return s.ListLights(ctx)
				},
			},
			{
				Name:        "toggle_light",
				Description: "Turn a specific light on or off",
				Params: []kernel.Param{
					lightIDParam,
					{Name: "is_on", Type: "bool", Description: "Whether the light should be on"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return update(ctx, args, func(l *store.Light) error {
						on, err := args.Bool("is_on")
						if err != nil {
							return err
						}
						l.IsOn = on
						l.Brightness = 0
						if on {
							l.Brightness = 100
						}
						return nil
					})
				},
			},
			{
				Name:        "set_brightness",
				Description: "Set the brightness of a specific light",
				Params: []kernel.Param{
					lightIDParam,
					{Name: "brightness", Type: "int", Description: "Brightness from 0 to 100"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return update(ctx, args, func(l *store.Light) error {
						b, err := args.Int("brightness")
						if err != nil {
							return err
						}
						l.Brightness = min(max(b, 0), 100)
						l.IsOn = l.Brightness > 0
						return nil
					})
				},
			},
			{
				Name:        "change_color",
				Description: "Change the color of a specific light",
				Params: []kernel.Param{
					lightIDParam,
					{Name: "color", Type: "string", Description: "The new color"},
				},
				Invoke: func(ctx context.Context, args kernel.Args) (any, error) {
					return update(ctx, args, func(l *store.Light) error {
						color, err := args.String("color")
						if err != nil {
							return err
						}
						l.Color = color
						return nil
					})
				},
			},
		},
	}
}
