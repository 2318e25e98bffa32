// Package command parses operator lines and dispatches them to typed handlers.
package command

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MaxValues is the most values a command line carries; extra tokens are dropped.
const MaxValues = 5

var (
	ErrEmpty          = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrArity          = errors.New("wrong number of values")
	ErrBadValue       = errors.New("bad value")
)

// Command is one parsed line: a name followed by up to MaxValues tokens.
type Command struct {
	Name   string
	Values []string
}

func (c Command) Count() int { return len(c.Values) }

// Parse trims line and splits it on whitespace.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}
	values := fields[1:]
	if len(values) > MaxValues {
		values = values[:MaxValues]
	}
	return Command{Name: strings.ToLower(fields[0]), Values: values}, nil
}

// Handler runs one command. Arity is the exact number of values it takes.
type Handler struct {
	Name  string
	Arity int
	Usage string
	Help  string
	Run   func(values []string) (string, error)
}

// Registry maps command names to handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h, replacing any handler with the same name.
func (r *Registry) Register(h Handler) {
	r.handlers[strings.ToLower(h.Name)] = h
}

// Lookup returns the handler for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[strings.ToLower(name)]
	return h, ok
}

// Dispatch checks arity and runs the handler for cmd.
func (r *Registry) Dispatch(cmd Command) (string, error) {
	h, ok := r.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	if cmd.Count() != h.Arity {
		return "", fmt.Errorf("%w: %s takes %d, got %d (usage: %s)", ErrArity, h.Name, h.Arity, cmd.Count(), h.usage())
	}
	return h.Run(cmd.Values)
}

// Execute parses and dispatches line.
func (r *Registry) Execute(line string) (string, error) {
	cmd, err := Parse(line)
	if err != nil {
		return "", err
	}
	return r.Dispatch(cmd)
}

// Help lists every command, sorted by name.
func (r *Registry) Help() string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		h := r.handlers[name]
		fmt.Fprintf(&b, "%-28s %s\n", h.usage(), h.Help)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h Handler) usage() string {
	if h.Usage != "" {
		return h.Name + " " + h.Usage
	}
	return h.Name
}

// Action builds a handler that takes no values.
func Action(name, help string, fn func() (string, error)) Handler {
	return Handler{Name: name, Help: help, Run: func([]string) (string, error) { return fn() }}
}

// Text builds a handler that takes one raw token.
func Text(name, usage, help string, fn func(string) (string, error)) Handler {
	return Handler{Name: name, Arity: 1, Usage: usage, Help: help, Run: func(v []string) (string, error) {
		return fn(v[0])
	}}
}

// Int builds a handler that takes one whole number.
func Int(name, usage, help string, fn func(int) (string, error)) Handler {
	return Handler{Name: name, Arity: 1, Usage: usage, Help: help, Run: func(v []string) (string, error) {
		n, err := ParseInt(v[0])
		if err != nil {
			return "", err
		}
		return fn(n)
	}}
}

// Float builds a handler that takes one number.
func Float(name, usage, help string, fn func(float64) (string, error)) Handler {
	return Handler{Name: name, Arity: 1, Usage: usage, Help: help, Run: func(v []string) (string, error) {
		f, err := ParseFloat(v[0])
		if err != nil {
			return "", err
		}
		return fn(f)
	}}
}

// IntPair builds a handler that takes two whole numbers.
func IntPair(name, usage, help string, fn func(a, b int) (string, error)) Handler {
	return Handler{Name: name, Arity: 2, Usage: usage, Help: help, Run: func(v []string) (string, error) {
		a, err := ParseInt(v[0])
		if err != nil {
			return "", err
		}
		b, err := ParseInt(v[1])
		if err != nil {
			return "", err
		}
		return fn(a, b)
	}}
}

// ParseFloat accepts any finite number.
func ParseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: not a number", ErrBadValue, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w %q: not finite", ErrBadValue, s)
	}
	return f, nil
}

// ParseInt accepts whole numbers, including forms like "500.0".
func ParseInt(s string) (int, error) {
	f, err := ParseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w %q: not a whole number", ErrBadValue, s)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w %q: out of range", ErrBadValue, s)
	}
	return int(f), nil
}
