package controllers

import (
	"context"
	"net/http"

	"github.com/pledgeforge/backerstore-backend/api/responses"
	"github.com/pledgeforge/backerstore-backend/internal/reconcile"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

type captureRunner interface {
	Run(ctx context.Context) (*reconcile.SweepSummary, error)
}

// AdminCaptureRun triggers a bulk-capture sweep over every order holding a
// saved card. The sweep takes no arguments: selection is by order status
// alone. Declined captures are reported in the summary, not as request
// failures; only persistence problems surface as errors.
func AdminCaptureRun(sweeper captureRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if sweeper == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "capture sweeper unavailable"))
			return
		}

		summary, err := sweeper.Run(ctx)
		if err != nil {
			if summary != nil {
				// Partial persistence failures still produced a summary;
				// surface both so the operator can reconcile by hand.
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture sweep finished with persistence errors").WithDetails(summary))
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}
