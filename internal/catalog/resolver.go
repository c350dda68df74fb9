package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ReferenceMode decides what happens when a caller-supplied reference ID does not exist.
type ReferenceMode string

const (
	// ReferenceModeLenient relinks stale IDs to the dimension's Unknown entity.
	ReferenceModeLenient ReferenceMode = "lenient"
	// ReferenceModeStrict rejects stale IDs with ErrStaleReference.
	ReferenceModeStrict ReferenceMode = "strict"
)

// ParseReferenceMode maps a configuration value to a ReferenceMode.
func ParseReferenceMode(raw string) (ReferenceMode, error) {
	switch ReferenceMode(raw) {
	case ReferenceModeLenient, "":
		return ReferenceModeLenient, nil
	case ReferenceModeStrict:
		return ReferenceModeStrict, nil
	}
	return "", validationError("reference mode %q", raw)
}

// Resolution is the outcome of resolving one dimension.
type Resolution struct {
	ID uuid.UUID
	// Created is set when the resolver inserted a new entity.
	Created bool
	// Substituted is set when a stale ID was replaced by the Unknown entity.
	Substituted bool
}

// Resolver maps names or IDs to reference entities, creating missing ones inside the
// caller's transaction.
type Resolver struct {
	mode   ReferenceMode
	now    func() time.Time
	logger *slog.Logger
}

// NewResolver builds a Resolver.
func NewResolver(mode ReferenceMode, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ReferenceModeLenient
	}
	return &Resolver{mode: mode, now: time.Now, logger: logger}
}

// Resolve returns the ID of the entity named name in dim, creating it when absent. A blank
// name resolves to the Unknown entity.
func (r *Resolver) Resolve(ctx context.Context, tx TxRepository, dim Dimension, name string) (Resolution, error) {
	if !dim.Valid() {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	name = NormalizeName(name)
	if name == "" {
		return r.ResolveUnknown(ctx, tx, dim)
	}
	return r.findOrCreate(ctx, tx, dim, name, false)
}

// ResolveUnknown returns the Unknown entity of dim, creating it on first use.
func (r *Resolver) ResolveUnknown(ctx context.Context, tx TxRepository, dim Dimension) (Resolution, error) {
	if !dim.Valid() {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	return r.findOrCreate(ctx, tx, dim, UnknownName, true)
}

// ResolveID verifies a caller-supplied ID. Blank IDs resolve to Unknown. IDs that are
// malformed or missing are substituted with Unknown in lenient mode and rejected in strict
// mode.
func (r *Resolver) ResolveID(ctx context.Context, tx TxRepository, dim Dimension, rawID string) (Resolution, error) {
	if !dim.Valid() {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	rawID = NormalizeName(rawID)
	if rawID == "" {
		return r.ResolveUnknown(ctx, tx, dim)
	}
	id, err := uuid.Parse(rawID)
	if err == nil {
		ref, findErr := tx.FindReferenceByID(ctx, dim, id)
		if findErr == nil {
			return Resolution{ID: ref.ID}, nil
		}
		if !errors.Is(findErr, ErrNotFound) {
			return Resolution{}, fmt.Errorf("catalog: resolve %s id: %w", dim, findErr)
		}
	}
	if r.mode == ReferenceModeStrict {
		return Resolution{}, fmt.Errorf("%w: %s %q", ErrStaleReference, dim, rawID)
	}
	r.logger.WarnContext(ctx, "stale reference replaced with unknown",
		slog.String("dimension", string(dim)),
		slog.String("id", rawID))
	res, err := r.ResolveUnknown(ctx, tx, dim)
	if err != nil {
		return Resolution{}, err
	}
	res.Substituted = true
	return res, nil
}

func (r *Resolver) findOrCreate(ctx context.Context, tx TxRepository, dim Dimension, name string, sentinel bool) (Resolution, error) {
	ref, err := tx.FindReferenceByName(ctx, dim, name)
	if err == nil {
		return Resolution{ID: ref.ID}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Resolution{}, fmt.Errorf("catalog: resolve %s: %w", dim, err)
	}

	now := r.now()
	candidate := Reference{
		Dimension:    dim,
		Name:         name,
		IsActive:     true,
		DisplayOnPOS: true,
	}
	if sentinel {
		candidate.Code = dim.UnknownCode()
	} else {
		candidate.Code, err = r.nextCode(ctx, tx, dim, now)
		if err != nil {
			return Resolution{}, err
		}
	}
	switch dim {
	case DimensionCategory:
		s := categorySlug(name, now)
		candidate.Slug = &s
	case DimensionTax:
		zero := 0.0
		candidate.Percentage = &zero
	}

	// Two attempts: the first conflict may be a concurrent insert of the same name, which
	// the re-fetch picks up; otherwise the code collided and a fallback code is tried.
	for attempt := 0; attempt < 2; attempt++ {
		created, inserted, err := tx.InsertReference(ctx, candidate)
		if err != nil {
			return Resolution{}, fmt.Errorf("catalog: create %s: %w", dim, err)
		}
		if inserted {
			r.logger.DebugContext(ctx, "reference created",
				slog.String("dimension", string(dim)),
				slog.String("name", name),
				slog.String("code", created.Code))
			return Resolution{ID: created.ID, Created: true}, nil
		}
		existing, err := tx.FindReferenceByName(ctx, dim, name)
		if err == nil {
			return Resolution{ID: existing.ID}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Resolution{}, fmt.Errorf("catalog: resolve %s: %w", dim, err)
		}
		candidate.Code = fallbackCode(now)
	}
	return Resolution{}, fmt.Errorf("catalog: create %s %q: %w", dim, name, ErrReferenceConflict)
}

// nextCode increments the code of the most recently created entity of dim. A non-numeric
// predecessor, such as an Unknown sentinel, yields a timestamp code with a random suffix.
func (r *Resolver) nextCode(ctx context.Context, tx TxRepository, dim Dimension, now time.Time) (string, error) {
	last, ok, err := tx.LastReferenceCode(ctx, dim)
	if err != nil {
		return "", fmt.Errorf("catalog: last %s code: %w", dim, err)
	}
	if !ok {
		return "1", nil
	}
	if next, ok := nextNumericCode(last); ok {
		return next, nil
	}
	return fallbackCode(now), nil
}

// fallbackCode is six low-order millisecond digits plus five random hex characters.
func fallbackCode(now time.Time) string {
	return timestampDigits(now, 6) + "-" + uuid.NewString()[:5]
}
