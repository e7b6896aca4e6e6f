package domain_test

import (
	"testing"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_UtilizationPercent(t *testing.T) {
	tests := []struct {
		name    string
		initial int
		current int
		want    float64
	}{
		{"untouched", 100, 100, 0},
		{"half consumed", 100, 50, 50},
		{"fully consumed", 100, 0, 100},
		{"zero initial", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &domain.Batch{InitialQuantity: tt.initial, CurrentQuantity: tt.current}
			assert.Equal(t, tt.want, b.UtilizationPercent())
		})
	}
}

func TestBatch_TotalValue(t *testing.T) {
	cost := decimal.NewFromFloat(2.50)
	b := &domain.Batch{CurrentQuantity: 40, CostPerUnit: &cost}

	assert.True(t, b.TotalValue().Equal(decimal.NewFromInt(100)))

	noCost := &domain.Batch{CurrentQuantity: 40}
	assert.True(t, noCost.TotalValue().IsZero())
}

func TestNewBatchView(t *testing.T) {
	ref := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	cost := decimal.NewFromInt(3)
	b := &domain.Batch{
		InitialQuantity: 200,
		CurrentQuantity: 150,
		ExpiryDate:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		CostPerUnit:     &cost,
	}

	view := domain.NewBatchView(b, ref)
	assert.Equal(t, 5, view.DaysUntilExpiry)
	assert.Equal(t, 25.0, view.UtilizationPercent)
	assert.True(t, view.TotalValue.Equal(decimal.NewFromInt(450)))
}

func TestCountMap_ValueScan(t *testing.T) {
	m := domain.CountMap{"critical": 3, "warning": 2}

	v, err := m.Value()
	require.NoError(t, err)

	var back domain.CountMap
	require.NoError(t, back.Scan(v))
	assert.Equal(t, m, back)

	var fromNil domain.CountMap
	require.NoError(t, fromNil.Scan(nil))
	assert.Equal(t, domain.CountMap{}, fromNil)

	var nilMap domain.CountMap
	v, err = nilMap.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}
