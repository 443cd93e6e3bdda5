package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"culturascape/api/docstore"
	"culturascape/api/models"
)

// CollectionProfiles is the remote mirror collection.
const CollectionProfiles = "user_profiles"

// Outcome reports which side of a merge won.
type Outcome int

const (
	OutcomeNoChange Outcome = iota
	OutcomePulledRemote
	OutcomePushedLocal
	OutcomeCreatedRemote
)

// Reconciler resolves a local profile against its remote mirror with
// strict last-write-wins on LastUpdated. Ties touch nothing. Concurrent
// edits on both sides inside the same millisecond can drop one side;
// profile edits are rare and user-attributable, so last-write-wins is the
// stated policy rather than a bug.
type Reconciler struct {
	store docstore.Store
}

func NewReconciler(store docstore.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Merge reconciles local against the remote document under key. It
// returns the effective profile: local mutated in place when the remote
// side wins.
func (r *Reconciler) Merge(ctx context.Context, key string, local *models.Profile) (Outcome, error) {
	if r.store == nil {
		return OutcomeNoChange, nil
	}
	remote, err := r.store.Get(ctx, CollectionProfiles, key)
	if errors.Is(err, docstore.ErrNotFound) {
		if err := r.push(ctx, key, local, true); err != nil {
			return OutcomeNoChange, err
		}
		return OutcomeCreatedRemote, nil
	}
	if err != nil {
		return OutcomeNoChange, fmt.Errorf("fetch remote profile: %w", err)
	}

	remoteUpdated := int64(0)
	if t, ok := docstore.AsTime(remote["lastUpdated"]); ok {
		remoteUpdated = t.UnixMilli()
	}

	switch {
	case remoteUpdated > local.LastUpdated:
		if err := overlayRemote(remote, local); err != nil {
			return OutcomeNoChange, err
		}
		local.LastUpdated = remoteUpdated
		return OutcomePulledRemote, nil
	case local.LastUpdated > remoteUpdated:
		if err := r.push(ctx, key, local, false); err != nil {
			return OutcomeNoChange, err
		}
		return OutcomePushedLocal, nil
	default:
		return OutcomeNoChange, nil
	}
}

// push writes the local user and preferences to the remote mirror. Only
// those two fields move; the remote lastUpdated is server-assigned.
func (r *Reconciler) push(ctx context.Context, key string, local *models.Profile, create bool) error {
	fields := docstore.Document{
		"sessionId":   key,
		"user":        toDocument(local.User),
		"preferences": toDocument(local.Preferences),
		"lastUpdated": docstore.ServerTimestamp(),
	}
	if create {
		fields["createdAt"] = docstore.ServerTimestamp()
		if err := r.store.Create(ctx, CollectionProfiles, key, fields); err != nil {
			return fmt.Errorf("create remote profile: %w", err)
		}
		return nil
	}
	if err := r.store.UpdateFields(ctx, CollectionProfiles, key, fields); err != nil {
		return fmt.Errorf("push profile: %w", err)
	}
	return nil
}

// overlayRemote lays the remote user/preferences over local: remote
// fields win per key, untouched local keys survive.
func overlayRemote(remote docstore.Document, local *models.Profile) error {
	if user, ok := remote["user"]; ok && user != nil {
		if local.User == nil {
			local.User = &models.UserInfo{}
		}
		if err := decodeInto(user, local.User); err != nil {
			return fmt.Errorf("decode remote user: %w", err)
		}
	}
	if prefs, ok := remote["preferences"]; ok && prefs != nil {
		if err := decodeInto(prefs, &local.Preferences); err != nil {
			return fmt.Errorf("decode remote preferences: %w", err)
		}
	}
	return nil
}

// decodeInto overlays a loosely-typed store value onto a struct; fields
// absent from the document keep their current value.
func decodeInto(value any, target any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

// toDocument flattens a struct into a store document.
func toDocument(value any) docstore.Document {
	raw, err := json.Marshal(value)
	if err != nil {
		return docstore.Document{}
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return docstore.Document{}
	}
	return doc
}
