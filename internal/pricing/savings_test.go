package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usemate/order-stats-api/internal/models"
)

func snapshot(amountIn, amountOutMin, recieved string) *models.BlockData {
	return &models.BlockData{
		Amounts: models.BlockAmounts{
			AmountIn:     amountIn,
			AmountOutMin: amountOutMin,
			Recieved:     recieved,
		},
	}
}

func TestComputeSavings_Gain(t *testing.T) {
	created := snapshot("100", "95", "")
	executed := snapshot("", "95", "110")

	savings, ok := ComputeSavings(created, executed)
	require.True(t, ok)
	assert.Equal(t, "10", savings.Amount)
	assert.Equal(t, "10.00000", savings.Percentage)
}

// The savings percentage is relative to amountIn, not to the received
// amount. Earlier revisions of this service divided by the received
// amount; amountIn is the canonical denominator.
func TestComputeSavings_DenominatorIsAmountIn(t *testing.T) {
	created := snapshot("50", "", "")
	executed := snapshot("", "", "40")

	savings, ok := ComputeSavings(created, executed)
	require.True(t, ok)
	assert.Equal(t, "-10", savings.Amount)
	// With recieved as denominator this would be -25.00000.
	assert.Equal(t, "-20.00000", savings.Percentage)
}

func TestComputeSavings_FractionalRounding(t *testing.T) {
	created := snapshot("3", "", "")
	executed := snapshot("", "", "4")

	savings, ok := ComputeSavings(created, executed)
	require.True(t, ok)
	assert.Equal(t, "1", savings.Amount)
	assert.Equal(t, "33.33333", savings.Percentage)
}

func TestComputeSavings_AbsentValues(t *testing.T) {
	cases := []struct {
		name     string
		created  *models.BlockData
		executed *models.BlockData
	}{
		{"nil created", nil, snapshot("", "", "110")},
		{"nil executed", snapshot("100", "", ""), nil},
		{"missing amountIn", snapshot("", "", ""), snapshot("", "", "110")},
		{"missing recieved", snapshot("100", "", ""), snapshot("", "", "")},
		{"zero amountIn is absent", snapshot("0", "", ""), snapshot("", "", "110")},
		{"zero recieved is absent", snapshot("100", "", ""), snapshot("", "", "0")},
		{"garbage amountIn", snapshot("not-a-number", "", ""), snapshot("", "", "110")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := ComputeSavings(tc.created, tc.executed)
			assert.False(t, ok)
		})
	}
}

func TestComputeSavings_LargeAmounts(t *testing.T) {
	// Values well beyond float64's exact integer range.
	created := snapshot("10000000000000000000000", "", "")
	executed := snapshot("", "", "10000000000000000000001")

	savings, ok := ComputeSavings(created, executed)
	require.True(t, ok)
	assert.Equal(t, "1", savings.Amount)
	assert.Equal(t, "0.00000", savings.Percentage)
}
