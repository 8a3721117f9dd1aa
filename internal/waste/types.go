package waste

import (
	"errors"
	"fmt"
	"time"
)

// Operation is the disposition declared by the owner at submission time.
type Operation string

const (
	OperationRecycle Operation = "Recycle"
	OperationDestroy Operation = "Destroy"
	OperationRepair  Operation = "Repair"
)

// ParseOperation validates a raw operation value.
func ParseOperation(raw string) (Operation, error) {
	switch Operation(raw) {
	case OperationRecycle, OperationDestroy, OperationRepair:
		return Operation(raw), nil
	}
	return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, raw)
}

// Status is the item's position in the disposition workflow.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusRecycled   Status = "Recycled"
	StatusRepaired   Status = "Repaired"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusRecycled, StatusRepaired:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
}

// Item is a submitted end-of-life device tracked through disposition.
// Records are owned by the Registry and mutated only through the Engine.
type Item struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	Operation   Operation `json:"operation"`
	Status      Status    `json:"status"`
	Location    string    `json:"location"`
	Cost        int64     `json:"cost"`                // minor units; nonzero only once Repaired
	ImageURL    string    `json:"image_url,omitempty"` // set at the Repaired transition
	CreatedAt   time.Time `json:"created_at"`
}

// Listing is the marketplace projection of a Repaired item.
type Listing struct {
	ID          string `json:"id"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
}

var (
	ErrNotFound     = errors.New("waste: item not found")
	ErrGone         = errors.New("waste: item already removed")
	ErrConflict     = errors.New("waste: concurrent update conflict")
	ErrInvalidInput = errors.New("waste: invalid input")
	ErrUnavailable  = errors.New("waste: storage unavailable")

	// ErrInvalidTransition covers every rejected status change; the two
	// sub-kinds below wrap it so callers can match either level.
	ErrInvalidTransition = errors.New("waste: invalid transition")
	ErrUnreachable       = fmt.Errorf("%w: target not reachable from current status", ErrInvalidTransition)
	ErrMissingImage      = fmt.Errorf("%w: image required before repair completes", ErrInvalidTransition)
)
