package tracker

import (
	"testing"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func prev(price string) *models.PriceSample {
	return &models.PriceSample{Price: decimal.RequireFromString(price), Availability: models.InStock}
}

func TestEvaluatePriority(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name string
		in   EvalInput
		want models.AlertType
	}{
		{
			name: "target beats drop",
			in:   EvalInput{Price: d("800"), Priced: true, Previous: prev("1000"), Availability: models.InStock, Target: d("899")},
			want: models.AlertTargetReached,
		},
		{
			name: "target on equality",
			in:   EvalInput{Price: d("899"), Priced: true, Previous: prev("900"), Availability: models.InStock, Target: d("899")},
			want: models.AlertTargetReached,
		},
		{
			name: "drop below threshold",
			in:   EvalInput{Price: d("850"), Priced: true, Previous: prev("1000"), Availability: models.InStock, Target: d("500")},
			want: models.AlertSignificantDrop,
		},
		{
			name: "drop of exactly ten percent is not significant",
			in:   EvalInput{Price: d("900"), Priced: true, Previous: prev("1000"), Availability: models.InStock, Target: d("500")},
			want: models.AlertNone,
		},
		{
			name: "no previous sample means no drop",
			in:   EvalInput{Price: d("100"), Priced: true, Availability: models.InStock, Target: d("50")},
			want: models.AlertNone,
		},
		{
			name: "back in stock after out of stock marker",
			in:   EvalInput{Price: d("1000"), Priced: true, Previous: prev("1000"), Availability: models.InStock, PreviousAvailability: models.OutOfStock, Target: d("500"), LastAlert: models.AlertOutOfStock},
			want: models.AlertBackInStock,
		},
		{
			name: "in stock without marker",
			in:   EvalInput{Price: d("1000"), Priced: true, Previous: prev("1000"), Availability: models.InStock, PreviousAvailability: models.OutOfStock, Target: d("500"), LastAlert: models.AlertSignificantDrop},
			want: models.AlertNone,
		},
		{
			name: "limited is not back in stock",
			in:   EvalInput{Price: d("1000"), Priced: true, Previous: prev("1000"), Availability: models.Limited, Target: d("500"), LastAlert: models.AlertOutOfStock},
			want: models.AlertNone,
		},
		{
			name: "going out of stock records a marker",
			in:   EvalInput{Price: d("1000"), Priced: false, Previous: prev("1000"), Availability: models.OutOfStock, PreviousAvailability: models.InStock, Target: d("500")},
			want: models.AlertOutOfStock,
		},
		{
			name: "marker is not repeated",
			in:   EvalInput{Price: d("1000"), Priced: false, Previous: prev("1000"), Availability: models.OutOfStock, PreviousAvailability: models.InStock, Target: d("500"), LastAlert: models.AlertOutOfStock},
			want: models.AlertNone,
		},
		{
			name: "unpriced reading never reaches target",
			in:   EvalInput{Price: d("400"), Priced: false, Previous: prev("400"), Availability: models.OutOfStock, PreviousAvailability: models.InStock, Target: d("500")},
			want: models.AlertOutOfStock,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.in.DropThreshold.IsZero() {
				tt.in.DropThreshold = decimal.NewFromInt(-10)
			}
			assert.Equal(t, tt.want, Evaluate(tt.in).Type)
		})
	}
}

func TestEvaluatePercentChange(t *testing.T) {
	v := Evaluate(EvalInput{
		Price:         decimal.NewFromInt(850),
		Priced:        true,
		Previous:      prev("1000"),
		Target:        decimal.NewFromInt(1),
		DropThreshold: decimal.NewFromInt(-10),
	})
	assert.Equal(t, "-15", v.PercentChange.String())

	v = Evaluate(EvalInput{Price: decimal.NewFromInt(5), Priced: true, Previous: prev("0"), DropThreshold: decimal.NewFromInt(-10)})
	assert.True(t, v.PercentChange.IsZero())
}
