package carts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pledgeforge/backerstore-backend/internal/rules"
	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

// Line is a client-submitted cart line. For ordinary lines only the item id
// and quantity are trusted; PriceCents is honored solely for special lines
// (upgrade differential, carryover), whose amounts are computed upstream.
type Line struct {
	ItemID     *uuid.UUID     `json:"item_id"`
	Kind       enums.LineKind `json:"kind"`
	Name       string         `json:"name"`
	Quantity   int64          `json:"quantity"`
	PriceCents int64          `json:"price_cents"`
}

// PricedLine is a line after authoritative pricing.
type PricedLine struct {
	ItemID         *uuid.UUID     `json:"item_id,omitempty"`
	Kind           enums.LineKind `json:"kind"`
	Name           string         `json:"name"`
	Quantity       int64          `json:"quantity"`
	UnitPriceCents int64          `json:"unit_price_cents"`
	TotalCents     int64          `json:"total_cents"`
}

// Quote is the server-side pricing result. SubtotalCents is the only figure
// the payment orchestrator will ever charge from.
type Quote struct {
	Lines         []PricedLine `json:"lines"`
	SubtotalCents int64        `json:"subtotal_cents"`
}

type itemReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
}

type boundsReader interface {
	Bounds(ctx context.Context) rules.Bounds
}

// Validator recomputes line prices from the catalog and enforces the cart
// bounds. It is the financial-integrity boundary: it never mutates anything
// and its subtotal is authoritative over any client-submitted figure.
type Validator struct {
	catalog itemReader
	rules   boundsReader
	logger  *logger.Logger
}

// NewValidator builds the cart pricing validator.
func NewValidator(catalogRepo itemReader, ruleStore boundsReader, logg *logger.Logger) (*Validator, error) {
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if ruleStore == nil {
		return nil, fmt.Errorf("rule store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Validator{catalog: catalogRepo, rules: ruleStore, logger: logg}, nil
}

// Validate prices the cart under the given pricing type. Backer pricing
// falls back to the retail price when an item has no backer price.
func (v *Validator) Validate(ctx context.Context, lines []Line, pricing enums.PricingType) (*Quote, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	bounds := v.rules.Bounds(ctx)
	if int64(len(lines)) > bounds.MaxDistinctItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cart exceeds the maximum of %d distinct items", bounds.MaxDistinctItems))
	}

	quote := &Quote{Lines: make([]PricedLine, 0, len(lines))}
	for i, line := range lines {
		quantity, err := v.boundQuantity(ctx, i, line.Quantity, bounds)
		if err != nil {
			return nil, err
		}

		priced, err := v.priceLine(ctx, line, quantity, pricing)
		if err != nil {
			return nil, err
		}

		quote.Lines = append(quote.Lines, *priced)
		quote.SubtotalCents += priced.TotalCents
	}

	if quote.SubtotalCents > bounds.MaxOrderTotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order total %d exceeds the maximum of %d cents", quote.SubtotalCents, bounds.MaxOrderTotalCents))
	}

	return quote, nil
}

// boundQuantity coerces a quantity of 0 to 1, matching the long-standing
// store behavior, then enforces the configured bounds.
func (v *Validator) boundQuantity(ctx context.Context, index int, quantity int64, bounds rules.Bounds) (int64, error) {
	if quantity == 0 {
		ctx = v.logger.WithField(ctx, "line_index", index)
		v.logger.Warn(ctx, "cart line submitted with quantity 0, treating as 1")
		quantity = 1
	}
	if quantity < bounds.MinQuantity || quantity > bounds.MaxPerItem {
		return 0, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("line %d quantity %d is outside the allowed range %d-%d",
				index, quantity, bounds.MinQuantity, bounds.MaxPerItem))
	}
	return quantity, nil
}

func (v *Validator) priceLine(ctx context.Context, line Line, quantity int64, pricing enums.PricingType) (*PricedLine, error) {
	if line.Kind.Special() {
		return &PricedLine{
			ItemID:         line.ItemID,
			Kind:           line.Kind,
			Name:           line.Name,
			Quantity:       quantity,
			UnitPriceCents: line.PriceCents,
			TotalCents:     line.PriceCents * quantity,
		}, nil
	}

	if line.ItemID == nil || *line.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart line is missing an item id")
	}

	item, err := v.catalog.FindByID(ctx, *line.ItemID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("cart references unknown item %s", line.ItemID))
		}
		return nil, err
	}

	unitPrice := unitPriceFor(item, pricing)
	return &PricedLine{
		ItemID:         line.ItemID,
		Kind:           enums.LineKindItem,
		Name:           item.Name,
		Quantity:       quantity,
		UnitPriceCents: unitPrice,
		TotalCents:     unitPrice * quantity,
	}, nil
}

func unitPriceFor(item *models.CatalogItem, pricing enums.PricingType) int64 {
	if pricing == enums.PricingTypeBacker && item.BackerPriceCents != nil {
		return *item.BackerPriceCents
	}
	return item.RetailPriceCents
}
