package waste

import (
	"context"
	"errors"
)

// Catalog is the marketplace read side over the registry plus the
// purchase-triggered removal path.
type Catalog struct {
	registry Registry
	pub      Publisher
}

// NewCatalog builds a catalog over registry. pub may be nil.
func NewCatalog(registry Registry, pub Publisher) *Catalog {
	return &Catalog{registry: registry, pub: pub}
}

// ListForSale returns listings for items currently in the Repaired status.
func (c *Catalog) ListForSale(ctx context.Context) ([]Listing, error) {
	repaired := StatusRepaired
	items, err := c.registry.List(ctx, &repaired)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(items))
	for _, it := range items {
		out = append(out, Listing{
			ID:          it.ID,
			ImageURL:    it.ImageURL,
			Description: it.Description,
			Cost:        it.Cost,
		})
	}
	return out, nil
}

// Purchase removes a Repaired item from the registry. A second purchase of
// the same item fails ErrGone, as does purchasing an id that never existed;
// the registry cannot tell the two apart once the row is gone.
func (c *Catalog) Purchase(ctx context.Context, itemID string) error {
	item, err := c.registry.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrGone
		}
		return err
	}
	if item.Status != StatusRepaired {
		return ErrUnreachable
	}
	if err := c.registry.Delete(ctx, itemID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrGone
		}
		return err
	}
	if c.pub != nil {
		c.pub.Publish(Event{
			ItemID:    item.ID,
			OwnerID:   item.OwnerID,
			Operation: item.Operation,
			From:      StatusRepaired,
			To:        "", // removal has no destination status
		})
	}
	return nil
}
