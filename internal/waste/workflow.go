package waste

import (
	"context"
	"errors"
)

// RepairTariff is the fixed cost, in minor units, assigned when an item
// enters the Repaired status.
const RepairTariff int64 = 100

// TransitionInput carries the optional payload accompanying a status change.
type TransitionInput struct {
	ImageURL string
}

// Event describes a committed workflow change, published after the write.
type Event struct {
	ItemID    string
	OwnerID   string
	Operation Operation
	From      Status
	To        Status
}

// Publisher receives committed workflow events. Implementations must not
// block; the engine calls it after the registry write succeeds.
type Publisher interface {
	Publish(Event)
}

// Engine enforces the disposition transition graph over Registry records.
//
//	Pending    -> Processing                 always
//	Processing -> Recycled                   operation Recycle or Destroy
//	Processing -> Repaired                   operation Repair, image supplied
//
// Recycled is terminal. Repaired items leave the registry through purchase.
type Engine struct {
	registry Registry
	pub      Publisher
}

// NewEngine builds a workflow engine. pub may be nil.
func NewEngine(registry Registry, pub Publisher) *Engine {
	return &Engine{registry: registry, pub: pub}
}

// Transition moves an item to target, applying the side effects of the target
// status atomically with the status write. A lost compare-and-update race
// surfaces as ErrConflict; retrying with a fresh read is the caller's job.
func (e *Engine) Transition(ctx context.Context, itemID string, target Status, in TransitionInput) (Item, error) {
	current, err := e.registry.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A vanished item was either never submitted or already purchased;
			// either way there is nothing left to transition.
			return Item{}, ErrGone
		}
		return Item{}, err
	}

	mutate, err := planTransition(current, target, in)
	if err != nil {
		return Item{}, err
	}

	updated, err := e.registry.CompareAndUpdate(ctx, itemID, current.Status, mutate)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Item{}, ErrGone
		}
		return Item{}, err
	}

	if e.pub != nil {
		e.pub.Publish(Event{
			ItemID:    updated.ID,
			OwnerID:   updated.OwnerID,
			Operation: updated.Operation,
			From:      current.Status,
			To:        updated.Status,
		})
	}
	return updated, nil
}

// planTransition validates the (current, target) pair and returns the mutator
// carrying the target's side effects.
func planTransition(current Item, target Status, in TransitionInput) (Mutator, error) {
	switch {
	case current.Status == StatusPending && target == StatusProcessing:
		return func(it *Item) { it.Status = StatusProcessing }, nil

	case current.Status == StatusProcessing && target == StatusRecycled:
		if current.Operation != OperationRecycle && current.Operation != OperationDestroy {
			return nil, ErrUnreachable
		}
		return func(it *Item) { it.Status = StatusRecycled }, nil

	case current.Status == StatusProcessing && target == StatusRepaired:
		if current.Operation != OperationRepair {
			return nil, ErrUnreachable
		}
		if in.ImageURL == "" {
			return nil, ErrMissingImage
		}
		return func(it *Item) {
			it.Status = StatusRepaired
			it.Cost = RepairTariff
			it.ImageURL = in.ImageURL
		}, nil
	}
	return nil, ErrUnreachable
}
