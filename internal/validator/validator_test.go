package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/pauljones0/live-deals/internal/models"
)

func strPtr(s string) *string { return &s }

func TestValidator_ValidateDeal(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		deal    models.Deal
		wantErr string // empty means valid
	}{
		{
			name: "Valid Deal",
			deal: models.Deal{
				ID:         "feed-0-Taco_Bell",
				Restaurant: "Taco Bell",
				Title:      "Free taco Tuesday",
				ValidUntil: strPtr("2031-01-01"),
				Location:   models.DefaultLocation,
			},
		},
		{
			name: "No expiry",
			deal: models.Deal{
				ID:       "x",
				Location: models.OnlineLocation,
			},
		},
		{
			name: "Missing ID",
			deal: models.Deal{
				Location: models.DefaultLocation,
			},
			wantErr: "id is required",
		},
		{
			name: "Title too long",
			deal: models.Deal{
				ID:       "x",
				Title:    strings.Repeat("a", 121),
				Location: models.DefaultLocation,
			},
			wantErr: "title exceeds 120 characters",
		},
		{
			name: "Location too long",
			deal: models.Deal{
				ID:       "x",
				Location: strings.Repeat("b", 81),
			},
			wantErr: "location exceeds 80 characters",
		},
		{
			name: "Untruncated date",
			deal: models.Deal{
				ID:         "x",
				Location:   models.DefaultLocation,
				ValidUntil: strPtr("2031-01-01T00:00:00Z"),
			},
			wantErr: "validUntil exceeds 10 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDeal(tt.deal)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateDeal() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidDeal) {
				t.Fatalf("Expected ErrInvalidDeal, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateDeal() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateDealNamesEveryField(t *testing.T) {
	err := New().ValidateDeal(models.Deal{Title: strings.Repeat("a", 121)})
	if err == nil {
		t.Fatal("Expected an error")
	}
	for _, want := range []string{"id is required", "title exceeds 120 characters", "location is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error %q does not mention %q", err, want)
		}
	}
}
