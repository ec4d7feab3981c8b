// Package resolver picks the message template for a lifecycle state and
// renders its placeholders.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/messaging/repository"
)

// ErrTemplateNotFound is returned when no active template exists for a state
// or name. Callers treat it as a degraded path and fall back to a default body.
var ErrTemplateNotFound = errors.New("message template not found")

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// TemplateStore is the read side of the template repository.
type TemplateStore interface {
	ListActiveByTriggerState(ctx context.Context, state string) ([]repository.Template, error)
	GetByName(ctx context.Context, name string) (repository.Template, error)
}

// Message is a rendered template.
type Message struct {
	Subject string
	Body    string
}

type Resolver struct {
	store TemplateStore
}

func New(store TemplateStore) *Resolver {
	return &Resolver{store: store}
}

// ResolveForState returns the active template for state. When several are
// active the one with the smallest name wins, then the smallest id, so the
// choice does not depend on storage order.
func (r *Resolver) ResolveForState(ctx context.Context, state domain.State) (repository.Template, error) {
	if _, err := domain.RankOf(state); err != nil {
		return repository.Template{}, err
	}

	candidates, err := r.store.ListActiveByTriggerState(ctx, state.String())
	if err != nil {
		return repository.Template{}, fmt.Errorf("list templates for %s: %w", state, err)
	}

	active := make([]repository.Template, 0, len(candidates))
	for _, tpl := range candidates {
		if tpl.IsActive {
			active = append(active, tpl)
		}
	}
	if len(active) == 0 {
		return repository.Template{}, fmt.Errorf("%w for state %s", ErrTemplateNotFound, state)
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].Name != active[j].Name {
			return active[i].Name < active[j].Name
		}
		return active[i].ID.String() < active[j].ID.String()
	})
	return active[0], nil
}

func (r *Resolver) GetByName(ctx context.Context, name string) (repository.Template, error) {
	tpl, err := r.store.GetByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return tpl, err
}

// Render replaces each {name} placeholder whose key is in variables.
// Placeholders without a value are left as they are.
func Render(content string, variables map[string]string) string {
	if len(variables) == 0 {
		return content
	}
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := variables[key]; ok {
			return value
		}
		return match
	})
}

// RenderTemplate renders the subject and content of tpl.
func RenderTemplate(tpl repository.Template, variables map[string]string) Message {
	return Message{
		Subject: Render(tpl.Subject, variables),
		Body:    Render(tpl.Content, variables),
	}
}
