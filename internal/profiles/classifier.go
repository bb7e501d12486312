package profiles

import (
	"context"
	"fmt"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

// Classifier maps raw account attributes to exactly one classification.
// Classification is deterministic and does no I/O; the logger only records
// accounts whose imported status is outside the known set.
type Classifier struct {
	logger *logger.Logger
}

// NewClassifier builds the profile classifier.
func NewClassifier(logg *logger.Logger) (*Classifier, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Classifier{logger: logg}, nil
}

// Classify resolves the account category. Precedence, highest first: missing
// backer number, late pledge, dropped, canceled, collected with pledge over
// time, collected. A nil account is a guest checkout.
func (c *Classifier) Classify(ctx context.Context, account *models.BackerAccount) enums.Classification {
	if account == nil || !account.HasBackerNumber() {
		return enums.ClassificationGuest
	}
	if account.LatePledge {
		return enums.ClassificationLatePledge
	}
	switch account.Status {
	case enums.AccountStatusDropped:
		return enums.ClassificationDropped
	case enums.AccountStatusCanceled:
		return enums.ClassificationCanceled
	case enums.AccountStatusCollected:
		if account.PledgeOverTime {
			return enums.ClassificationPOT
		}
		return enums.ClassificationCollected
	}

	ctx = c.logger.WithFields(ctx, map[string]any{
		"identity_id": account.IdentityID,
		"status":      account.Status.String(),
	})
	c.logger.Warn(ctx, "account has unexpected status, classifying as guest")
	return enums.ClassificationGuest
}
