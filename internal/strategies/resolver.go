package strategies

import (
	"context"
	"fmt"

	"github.com/pledgeforge/backerstore-backend/internal/rules"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

// PricingStrategy decides which catalog price a shopper pays.
type PricingStrategy struct {
	Type   enums.PricingType `json:"type"`
	Reason string            `json:"reason"`
}

// PaymentStrategy decides when funds are collected.
type PaymentStrategy struct {
	Method enums.PaymentMode `json:"method"`
	Reason string            `json:"reason"`
}

// Resolved is the full strategy pair for a classification. Derived per
// request, never persisted.
type Resolved struct {
	Classification enums.Classification `json:"classification"`
	Pricing        PricingStrategy      `json:"pricing"`
	Payment        PaymentStrategy      `json:"payment"`
}

type classificationDefaults struct {
	pricing enums.PricingType
	payment enums.PaymentMode
}

// defaultTable covers every classification. resolveDefaults falls back to
// guest behavior for anything outside the closed set, which cannot happen
// once the classifier has run.
var defaultTable = map[enums.Classification]classificationDefaults{
	enums.ClassificationGuest:      {pricing: enums.PricingTypeRetail, payment: enums.PaymentModeImmediate},
	enums.ClassificationCollected:  {pricing: enums.PricingTypeBacker, payment: enums.PaymentModeDeferred},
	enums.ClassificationPOT:        {pricing: enums.PricingTypeBacker, payment: enums.PaymentModeDeferred},
	enums.ClassificationDropped:    {pricing: enums.PricingTypeBacker, payment: enums.PaymentModeImmediate},
	enums.ClassificationCanceled:   {pricing: enums.PricingTypeBacker, payment: enums.PaymentModeImmediate},
	enums.ClassificationLatePledge: {pricing: enums.PricingTypeRetail, payment: enums.PaymentModeImmediate},
}

type ruleReader interface {
	GetString(ctx context.Context, category, key string) (string, bool)
}

// Resolver maps a classification to its pricing and payment strategies,
// honoring rule-store overrides and degrading to the default table when the
// store is unavailable or holds an invalid value.
type Resolver struct {
	rules  ruleReader
	logger *logger.Logger
}

// NewResolver builds the strategy resolver.
func NewResolver(ruleStore ruleReader, logg *logger.Logger) (*Resolver, error) {
	if ruleStore == nil {
		return nil, fmt.Errorf("rule store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Resolver{rules: ruleStore, logger: logg}, nil
}

// Resolve returns the strategy pair for the classification. Each strategy
// carries a reason naming either the default table or the overriding rule.
func (r *Resolver) Resolve(ctx context.Context, classification enums.Classification) Resolved {
	defaults := resolveDefaults(classification)
	category := rules.StrategyCategory(classification.String())

	resolved := Resolved{
		Classification: classification,
		Pricing: PricingStrategy{
			Type:   defaults.pricing,
			Reason: fmt.Sprintf("default pricing for %s accounts", classification),
		},
		Payment: PaymentStrategy{
			Method: defaults.payment,
			Reason: fmt.Sprintf("default payment collection for %s accounts", classification),
		},
	}

	if raw, ok := r.rules.GetString(ctx, category, rules.KeyPricingType); ok {
		pricing, err := enums.ParsePricingType(raw)
		if err != nil {
			r.warnInvalidRule(ctx, category, rules.KeyPricingType, raw)
		} else {
			resolved.Pricing = PricingStrategy{
				Type:   pricing,
				Reason: fmt.Sprintf("rule override %s/%s", category, rules.KeyPricingType),
			}
		}
	}

	if raw, ok := r.rules.GetString(ctx, category, rules.KeyPaymentMethod); ok {
		payment, err := enums.ParsePaymentMode(raw)
		if err != nil {
			r.warnInvalidRule(ctx, category, rules.KeyPaymentMethod, raw)
		} else {
			resolved.Payment = PaymentStrategy{
				Method: payment,
				Reason: fmt.Sprintf("rule override %s/%s", category, rules.KeyPaymentMethod),
			}
		}
	}

	return resolved
}

func resolveDefaults(classification enums.Classification) classificationDefaults {
	if defaults, ok := defaultTable[classification]; ok {
		return defaults
	}
	return defaultTable[enums.ClassificationGuest]
}

func (r *Resolver) warnInvalidRule(ctx context.Context, category, key, value string) {
	ctx = r.logger.WithFields(ctx, map[string]any{
		"rule_category": category,
		"rule_key":      key,
		"rule_value":    value,
	})
	r.logger.Warn(ctx, "rule override is invalid, keeping default strategy")
}
