package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Chase-Garrett/towhee/internal/metrics"
)

// Identity is who a connection belongs to for its lifetime. Verified is false
// for guests; token-derived identities are verified even when the store could
// not be reached.
type Identity struct {
	ID          string
	DisplayName string
	Verified    bool
}

// Resolver turns an optional bearer credential into an Identity. It has no
// failure exit: every path degrades to a usable Identity, so a connection is
// never rejected for authentication.
type Resolver struct {
	secret        []byte
	store         Store
	lookupTimeout time.Duration
}

// NewResolver builds a resolver. The store may be nil; lookups then degrade
// to token-only identities.
func NewResolver(secret []byte, store Store, lookupTimeout time.Duration) *Resolver {
	return &Resolver{secret: secret, store: store, lookupTimeout: lookupTimeout}
}

// Resolve applies the degrading ladder: no credential or an unverifiable one
// yields a guest; a valid token yields a verified identity, enriched from the
// store when it answers in time.
func (r *Resolver) Resolve(ctx context.Context, credential string) (identity Identity) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Warn("identity resolution panicked, falling back to guest")
			identity = guestIdentity()
		}
	}()

	if credential == "" {
		return guestIdentity()
	}

	subject, err := ParseToken(r.secret, credential)
	if err != nil {
		log.WithError(err).Debug("credential rejected, connecting as guest")
		return guestIdentity()
	}

	record, err := r.lookup(ctx, subject)
	if err != nil {
		log.WithError(err).WithField("user", subject).Warn("identity store unavailable, using token identity")
		metrics.IdentitiesResolved.WithLabelValues("degraded").Inc()
		return Identity{ID: subject, DisplayName: "User", Verified: true}
	}
	if record == nil {
		metrics.IdentitiesResolved.WithLabelValues("degraded").Inc()
		return Identity{ID: subject, DisplayName: "Unknown User", Verified: true}
	}

	metrics.IdentitiesResolved.WithLabelValues("verified").Inc()
	return Identity{ID: record.ID, DisplayName: record.Name, Verified: true}
}

// lookup bounds the store call with the configured timeout and absorbs panics
// so a misbehaving store degrades like an unavailable one.
func (r *Resolver) lookup(ctx context.Context, id string) (record *Record, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			record = nil
			err = errors.Errorf("identity lookup panic: %v", rec)
		}
	}()

	if r.store == nil {
		return nil, errors.New("no identity store configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	return r.store.FindByID(ctx, id)
}

func guestIdentity() Identity {
	metrics.IdentitiesResolved.WithLabelValues("guest").Inc()
	return Identity{
		ID:          "guest_" + uuid.NewString()[:8],
		DisplayName: "Guest User",
		Verified:    false,
	}
}
