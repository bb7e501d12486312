package controllers

import (
	"context"
	"net/http"

	"github.com/pledgeforge/backerstore-backend/api/responses"
	"github.com/pledgeforge/backerstore-backend/api/validators"
	"github.com/pledgeforge/backerstore-backend/internal/carts"
	"github.com/pledgeforge/backerstore-backend/internal/strategies"
	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

type accountFinder interface {
	FindByIdentity(ctx context.Context, identityID string) (*models.BackerAccount, error)
}

type accountClassifier interface {
	Classify(ctx context.Context, account *models.BackerAccount) enums.Classification
}

type strategyResolver interface {
	Resolve(ctx context.Context, classification enums.Classification) strategies.Resolved
}

type cartValidator interface {
	Validate(ctx context.Context, lines []carts.Line, pricing enums.PricingType) (*carts.Quote, error)
}

// CartQuote prices a cart without committing anything: the shopper is
// classified, strategies resolved, and every line validated and repriced
// server-side. The response mirrors what checkout would charge.
func CartQuote(accounts accountFinder, classifier accountClassifier, resolver strategyResolver, validator cartValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if accounts == nil || classifier == nil || resolver == nil || validator == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote dependencies unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		lines, err := cartLinesFromRequest(payload.Lines)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var account *models.BackerAccount
		if payload.IdentityID != "" {
			found, err := accounts.FindByIdentity(ctx, payload.IdentityID)
			switch {
			case err == nil:
				account = found
			case pkgerrors.As(err).Code() == pkgerrors.CodeNotFound:
				// Unknown identity quotes as a guest.
			default:
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		classification := classifier.Classify(ctx, account)
		resolved := resolver.Resolve(ctx, classification)

		quote, err := validator.Validate(ctx, lines, resolved.Pricing.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newQuoteResponse(resolved, quote, payload.ShippingCents))
	}
}

type quoteRequest struct {
	IdentityID    string            `json:"identity_id,omitempty"`
	Lines         []cartLineRequest `json:"lines" validate:"required,min=1"`
	ShippingCents int64             `json:"shipping_cents" validate:"gte=0"`
}

type quoteResponse struct {
	Strategies    strategyPairResponse `json:"strategies"`
	Lines         []quoteLineResponse  `json:"lines"`
	SubtotalCents int64                `json:"subtotal_cents"`
	ShippingCents int64                `json:"shipping_cents"`
	TotalCents    int64                `json:"total_cents"`
}

type quoteLineResponse struct {
	ItemID         *string `json:"item_id,omitempty"`
	Kind           string  `json:"kind"`
	Name           string  `json:"name"`
	Quantity       int64   `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	TotalCents     int64   `json:"total_cents"`
}

func newQuoteResponse(resolved strategies.Resolved, quote *carts.Quote, shippingCents int64) quoteResponse {
	resp := quoteResponse{
		Strategies: strategyPairResponse{
			Classification: resolved.Classification.String(),
			PricingType:    resolved.Pricing.Type.String(),
			PricingReason:  resolved.Pricing.Reason,
			PaymentMethod:  resolved.Payment.Method.String(),
			PaymentReason:  resolved.Payment.Reason,
		},
		Lines:         make([]quoteLineResponse, 0, len(quote.Lines)),
		SubtotalCents: quote.SubtotalCents,
		ShippingCents: shippingCents,
		TotalCents:    quote.SubtotalCents + shippingCents,
	}
	for _, line := range quote.Lines {
		var itemID *string
		if line.ItemID != nil {
			value := line.ItemID.String()
			itemID = &value
		}
		resp.Lines = append(resp.Lines, quoteLineResponse{
			ItemID:         itemID,
			Kind:           line.Kind.String(),
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
		})
	}
	return resp
}
