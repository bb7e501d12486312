package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pledgeforge/backerstore-backend/api/responses"
	"github.com/pledgeforge/backerstore-backend/api/validators"
	"github.com/pledgeforge/backerstore-backend/internal/carts"
	checkoutsvc "github.com/pledgeforge/backerstore-backend/internal/checkout"
	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

// Checkout handles cart submission end to end. The server reprices every
// line; the optional client_total_cents is advisory only.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := cartLinesFromRequest(payload.Lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), checkoutsvc.Input{
			IdentityID:       validators.SanitizeString(payload.IdentityID, 128),
			Email:            validators.SanitizeString(payload.Email, 254),
			Name:             validators.SanitizeString(payload.Name, 200),
			Lines:            lines,
			ShippingCents:    payload.ShippingCents,
			PaymentMethodID:  payload.PaymentMethodID,
			ClientTotalCents: payload.ClientTotalCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type cartLineRequest struct {
	ItemID     *uuid.UUID `json:"item_id,omitempty" validate:"omitempty,uuid4"`
	Kind       string     `json:"kind,omitempty"`
	Name       string     `json:"name,omitempty"`
	Quantity   int64      `json:"quantity" validate:"gte=0"`
	PriceCents int64      `json:"price_cents,omitempty"`
}

type checkoutRequest struct {
	IdentityID       string            `json:"identity_id" validate:"required"`
	Email            string            `json:"email" validate:"required,email"`
	Name             string            `json:"name,omitempty"`
	Lines            []cartLineRequest `json:"lines" validate:"required,min=1"`
	ShippingCents    int64             `json:"shipping_cents" validate:"gte=0"`
	PaymentMethodID  string            `json:"payment_method_id" validate:"required"`
	ClientTotalCents *int64            `json:"client_total_cents,omitempty"`
}

type checkoutResponse struct {
	OrderID       uuid.UUID            `json:"order_id"`
	Status        string               `json:"status"`
	Paid          bool                 `json:"paid"`
	PaymentMode   string               `json:"payment_mode"`
	PricingType   string               `json:"pricing_type"`
	SubtotalCents int64                `json:"subtotal_cents"`
	ShippingCents int64                `json:"shipping_cents"`
	TotalCents    int64                `json:"total_cents"`
	Lines         []orderLineResponse  `json:"lines"`
	Strategies    strategyPairResponse `json:"strategies"`
}

type orderLineResponse struct {
	ItemID         *uuid.UUID `json:"item_id,omitempty"`
	Kind           string     `json:"kind"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	TotalCents     int64      `json:"total_cents"`
}

type strategyPairResponse struct {
	Classification string `json:"classification"`
	PricingType    string `json:"pricing_type"`
	PricingReason  string `json:"pricing_reason"`
	PaymentMethod  string `json:"payment_method"`
	PaymentReason  string `json:"payment_reason"`
}

func cartLinesFromRequest(reqLines []cartLineRequest) ([]carts.Line, error) {
	lines := make([]carts.Line, 0, len(reqLines))
	for _, reqLine := range reqLines {
		kind := enums.LineKindItem
		if reqLine.Kind != "" {
			parsed, err := enums.ParseLineKind(reqLine.Kind)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line kind")
			}
			kind = parsed
		}
		lines = append(lines, carts.Line{
			ItemID:     reqLine.ItemID,
			Kind:       kind,
			Name:       reqLine.Name,
			Quantity:   reqLine.Quantity,
			PriceCents: reqLine.PriceCents,
		})
	}
	return lines, nil
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	resp := checkoutResponse{
		OrderID:       result.Order.ID,
		Status:        result.Order.Status.String(),
		Paid:          result.Order.Paid,
		PaymentMode:   result.Order.PaymentMode.String(),
		PricingType:   result.Order.PricingType.String(),
		SubtotalCents: result.Order.SubtotalCents,
		ShippingCents: result.Order.ShippingCents,
		TotalCents:    result.Order.TotalCents,
		Lines:         newOrderLineResponses(result.Order.Lines),
		Strategies: strategyPairResponse{
			Classification: result.Strategies.Classification.String(),
			PricingType:    result.Strategies.Pricing.Type.String(),
			PricingReason:  result.Strategies.Pricing.Reason,
			PaymentMethod:  result.Strategies.Payment.Method.String(),
			PaymentReason:  result.Strategies.Payment.Reason,
		},
	}
	return resp
}

func newOrderLineResponses(lines []models.OrderLine) []orderLineResponse {
	out := make([]orderLineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, orderLineResponse{
			ItemID:         line.ItemID,
			Kind:           line.Kind.String(),
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
		})
	}
	return out
}
