package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrFunctionNotFound = errors.New("function not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrDuplicatePlugin  = errors.New("plugin already registered")
)

// Param describes one function argument for the model
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Function is a named operation the model may ask the host to run
type Function struct {
	Name        string                                            `json:"name"`
	Description string                                            `json:"description"`
	Params      []Param                                           `json:"params,omitempty"`
	Invoke      func(ctx context.Context, args Args) (any, error) `json:"-"`
}

// Plugin groups related functions under one name
type Plugin struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Functions   []Function `json:"functions"`
}

// InvokeObserver is notified after every function invocation
type InvokeObserver func(plugin, function string, err error)

// Kernel is the registry of plugins available to the chat engine
type Kernel struct {
	mu       sync.RWMutex
	plugins  map[string]Plugin
	order    []string
	observer InvokeObserver
}

// New creates an empty kernel
func New() *Kernel {
	return &Kernel{
		plugins: make(map[string]Plugin),
	}
}

// OnInvoke registers an observer for invocations
func (k *Kernel) OnInvoke(fn InvokeObserver) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.observer = fn
}

// AddPlugin registers a plugin. Names are unique.
func (k *Kernel) AddPlugin(p Plugin) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.plugins[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name)
	}
	k.plugins[p.Name] = p
	k.order = append(k.order, p.Name)
	return nil
}

// Plugins returns registered plugins in registration order
func (k *Kernel) Plugins() []Plugin {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]Plugin, 0, len(k.order))
	for _, name := range k.order {
		out = append(out, k.plugins[name])
	}
	return out
}

// SplitName splits "Plugin.function" into its parts
func SplitName(qualified string) (plugin, function string, ok bool) {
	plugin, function, ok = strings.Cut(strings.TrimSpace(qualified), ".")
	if !ok || plugin == "" || function == "" {
		return "", "", false
	}
	return plugin, function, true
}

// Lookup finds a function by its qualified name. Matching is
// case-insensitive because models are loose with capitalisation.
func (k *Kernel) Lookup(qualified string) (Plugin, Function, error) {
	pluginName, fnName, ok := SplitName(qualified)
	if !ok {
		return Plugin{}, Function{}, fmt.Errorf("%w: %q", ErrFunctionNotFound, qualified)
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	for _, name := range k.order {
		if !strings.EqualFold(name, pluginName) {
			continue
		}
		p := k.plugins[name]
		for _, fn := range p.Functions {
			if strings.EqualFold(fn.Name, fnName) {
				return p, fn, nil
			}
		}
	}
	return Plugin{}, Function{}, fmt.Errorf("%w: %q", ErrFunctionNotFound, qualified)
}

// Invoke runs a function and renders its result as text
func (k *Kernel) Invoke(ctx context.Context, qualified string, args Args) (string, error) {
	p, fn, err := k.Lookup(qualified)
	if err != nil {
		return "", err
	}
	if args == nil {
		args = Args{}
	}

	result, err := fn.Invoke(ctx, args)

	k.mu.RLock()
	observer := k.observer
	k.mu.RUnlock()
	if observer != nil {
		observer(p.Name, fn.Name, err)
	}

	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", p.Name, fn.Name, err)
	}
	return Render(result)
}

// Render converts a function result into the text handed back to the model
func Render(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "Done.", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to render result: %w", err)
	}
	return string(data), nil
}

// Catalog describes the functions of the named plugins (all when none are
// given) in the form used inside system prompts.
func (k *Kernel) Catalog(plugins ...string) string {
	allowed := make(map[string]bool, len(plugins))
	for _, name := range plugins {
		allowed[strings.ToLower(name)] = true
	}

	var sb strings.Builder
	for _, p := range k.Plugins() {
		if len(allowed) > 0 && !allowed[strings.ToLower(p.Name)] {
			continue
		}

		fns := make([]Function, len(p.Functions))
		copy(fns, p.Functions)
		sort.SliceStable(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })

		for _, fn := range fns {
			sb.WriteString("- ")
			sb.WriteString(p.Name)
			sb.WriteString(".")
			sb.WriteString(fn.Name)
			sb.WriteString("(")
			for i, param := range fn.Params {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(param.Name)
				if param.Type != "" {
					sb.WriteString(" ")
					sb.WriteString(param.Type)
				}
			}
			sb.WriteString("): ")
			sb.WriteString(fn.Description)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
