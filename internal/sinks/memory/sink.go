// Package memory provides an in-memory Sink. It backs pipeline and service
// tests that need a real destination without touching disk or network.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.Sink = (*Sink)(nil)

// Sink is an in-memory implementation of driven.Sink. Referrals are held
// keyed by identity key, mirroring the keyed destinations.
type Sink struct {
	idempotent bool

	mu        sync.RWMutex
	open      bool
	referrals map[string]domain.Referral
	order     []string
}

// Options adjusts sink behaviour.
type Options struct {
	// Idempotent lets a rewrite of an existing identity key replace the
	// stored referral. Append mode rejects the duplicate record instead.
	Idempotent bool
}

// New creates an empty in-memory sink.
func New(opts Options) *Sink {
	return &Sink{
		idempotent: opts.Idempotent,
		referrals:  make(map[string]domain.Referral),
	}
}

// Name returns the destination identifier.
func (s *Sink) Name() string {
	return "memory"
}

// Open marks the sink ready. It never fails.
func (s *Sink) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

// Write stores one batch. Duplicate keys in append mode fail the record,
// not the batch.
func (s *Sink) Write(ctx context.Context, batch []*domain.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return fmt.Errorf("%w: sink not open", domain.ErrSinkUnavailable)
	}

	for _, r := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, exists := s.referrals[r.IdentityKey]; exists {
			if !s.idempotent {
				r.WriteError = "duplicate identity key " + r.IdentityKey
				continue
			}
		} else {
			s.order = append(s.order, r.IdentityKey)
		}
		s.referrals[r.IdentityKey] = *r
	}
	return nil
}

// Close marks the sink closed. Stored referrals stay readable.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// Get returns the stored referral for an identity key.
func (s *Sink) Get(identityKey string) (domain.Referral, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.referrals[identityKey]
	return r, ok
}

// All returns the stored referrals in first-write order.
func (s *Sink) All() []domain.Referral {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Referral, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.referrals[key])
	}
	return out
}

// Len returns the number of stored referrals.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.referrals)
}
