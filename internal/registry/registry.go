// Package registry implements the dealer portal's records: customer
// registrations, dealers, admins, and admin notifications.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/bikereg/internal/config"
	"github.com/zulandar/bikereg/internal/notify"
)

var (
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("registry: not found")
	// ErrDuplicate means a record with the same natural key already exists.
	ErrDuplicate = errors.New("registry: duplicate")
	// ErrInvalidCredentials is returned by Login and CheckRegistrationPassword.
	ErrInvalidCredentials = errors.New("registry: invalid credentials")
)

// ValidationError lists per-field problems with an input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "registry: validation failed: " + strings.Join(parts, "; ")
}

// fieldErrors accumulates validation messages.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// Registry is the portal's data layer.
type Registry struct {
	db       *gorm.DB
	notifier notify.Notifier
	auth     config.AuthConfig
	now      func() time.Time

	pending sync.WaitGroup
}

// Opts holds parameters for creating a Registry.
type Opts struct {
	DB *gorm.DB
	// Notifier receives registration notices. Optional.
	Notifier notify.Notifier
	Auth     config.AuthConfig
	// Now overrides the clock in tests.
	Now func() time.Time
}

// New creates a Registry.
func New(opts Opts) (*Registry, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("registry: db is required")
	}
	r := &Registry{
		db:       opts.DB,
		notifier: opts.Notifier,
		auth:     opts.Auth,
		now:      opts.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Close waits for in-flight notifier deliveries.
func (r *Registry) Close() {
	r.pending.Wait()
}

// forward sends text to the notifier in the background.
func (r *Registry) forward(text string) {
	if r.notifier == nil {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.notifier.Notify(ctx, text); err != nil {
			log.Printf("registry: notify: %v", err)
		}
	}()
}

// Page selects a window of a listing. Zero values mean page 1, 10 per page.
type Page struct {
	Page  int
	Limit int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return q.Offset((page - 1) * limit).Limit(limit)
}

// isDigits reports whether s is exactly n ASCII digits.
func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func notFound(what string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
}
