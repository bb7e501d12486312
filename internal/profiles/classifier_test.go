package profiles

import (
	"context"
	"io"
	"testing"

	"github.com/pledgeforge/backerstore-backend/pkg/db/models"
	"github.com/pledgeforge/backerstore-backend/pkg/enums"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func backerNumber(n int64) *int64 {
	return &n
}

func TestClassifyPrecedence(t *testing.T) {
	c := testClassifier(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		account *models.BackerAccount
		want    enums.Classification
	}{
		{name: "nil account is guest", account: nil, want: enums.ClassificationGuest},
		{
			name:    "no backer number is guest even with status",
			account: &models.BackerAccount{Status: enums.AccountStatusCollected},
			want:    enums.ClassificationGuest,
		},
		{
			name:    "late pledge overrides status",
			account: &models.BackerAccount{BackerNumber: backerNumber(7), LatePledge: true, Status: enums.AccountStatusDropped},
			want:    enums.ClassificationLatePledge,
		},
		{
			name:    "dropped",
			account: &models.BackerAccount{BackerNumber: backerNumber(7), Status: enums.AccountStatusDropped},
			want:    enums.ClassificationDropped,
		},
		{
			name:    "canceled",
			account: &models.BackerAccount{BackerNumber: backerNumber(7), Status: enums.AccountStatusCanceled},
			want:    enums.ClassificationCanceled,
		},
		{
			name:    "collected with pledge over time",
			account: &models.BackerAccount{BackerNumber: backerNumber(7), Status: enums.AccountStatusCollected, PledgeOverTime: true},
			want:    enums.ClassificationPOT,
		},
		{
			name:    "collected",
			account: &models.BackerAccount{BackerNumber: backerNumber(7), Status: enums.AccountStatusCollected},
			want:    enums.ClassificationCollected,
		},
		{
			name:    "unknown status falls back to guest",
			account: &models.BackerAccount{BackerNumber: backerNumber(7), Status: enums.AccountStatus("imported")},
			want:    enums.ClassificationGuest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(ctx, tt.account); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := testClassifier(t)
	ctx := context.Background()
	account := &models.BackerAccount{BackerNumber: backerNumber(42), Status: enums.AccountStatusCollected, PledgeOverTime: true}

	first := c.Classify(ctx, account)
	for i := 0; i < 10; i++ {
		if got := c.Classify(ctx, account); got != first {
			t.Fatalf("classification changed between calls: %s then %s", first, got)
		}
	}
	if !first.IsValid() {
		t.Fatalf("classification %s not in closed set", first)
	}
}
