package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func white(n int) []byte {
	buf := make([]byte, n*3)
	for i := range buf {
		buf[i] = 255
	}
	return buf
}

func TestPowerBudgetClamp(t *testing.T) {
	// 10 LEDs at full white draw 600 mA.
	buf := white(10)
	p := Power{LEDChanMA: 20, BudgetMA: 300}
	assert.InDelta(t, 600, p.EstimateMA(buf), 0.01)

	p.Apply(buf)
	assert.LessOrEqual(t, p.EstimateMA(buf), 300.1)
}

func TestWhiteCap(t *testing.T) {
	buf := white(1)
	Power{WhiteCap: 0.5}.Apply(buf)
	sum := int(buf[0]) + int(buf[1]) + int(buf[2])
	assert.LessOrEqual(t, sum, 383)
}

func TestPowerDisabled(t *testing.T) {
	p := Power{}
	assert.False(t, p.Enabled())
	buf := white(4)
	p.Apply(buf)
	assert.Equal(t, white(4), buf)

	assert.True(t, Power{BudgetMA: 1}.Enabled())
	assert.True(t, Power{WhiteCap: 0.8}.Enabled())
}

func TestPowerUnderBudgetUntouched(t *testing.T) {
	buf := []byte{10, 20, 30}
	Power{LEDChanMA: 20, BudgetMA: 1000}.Apply(buf)
	assert.Equal(t, []byte{10, 20, 30}, buf)
}
