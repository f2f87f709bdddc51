package selector

import (
	"context"
	"errors"
	"fmt"
)

// Candidate is one selectable record. Name is its identity within a prompt.
type Candidate struct {
	Name  string
	Value any
}

// FetchFunc loads the candidates shown by a prompt
type FetchFunc func(ctx context.Context) ([]Candidate, error)

// LookupFunc maps a chosen display name back to its candidate
type LookupFunc func(name string) (Candidate, bool)

// Listing is a fetch result that carries its candidates in Items
type Listing struct {
	Items []Candidate
}

// FromSlice serves a fixed set of candidates
func FromSlice(items []Candidate) FetchFunc {
	return func(context.Context) ([]Candidate, error) {
		return append([]Candidate(nil), items...), nil
	}
}

// FromListing adapts a source returning a Listing. A nil listing has no items.
func FromListing(fetch func(ctx context.Context) (*Listing, error)) FetchFunc {
	return func(ctx context.Context) ([]Candidate, error) {
		listing, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if listing == nil {
			return nil, nil
		}
		return listing.Items, nil
	}
}

// ErrNotFound is wrapped by NotFoundError
var ErrNotFound = errors.New("item not found")

// NotFoundError reports a list selection the lookup could not resolve
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find item with name %q", e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// FetchError reports a failed candidate fetch
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching items: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
