package render

import "math"

// Power scales output so the strip stays inside a current budget.
//
//   - WhiteCap caps r+g+b per LED at WhiteCap*3*255; 0 or >= 1 disables it.
//   - LEDChanMA is the draw of one channel at full scale (WS2812 ≈ 20 mA).
//   - BudgetMA is the whole-strip budget; 0 disables the global stage.
type Power struct {
	WhiteCap  float64
	LEDChanMA float64
	BudgetMA  float64
}

// Enabled reports whether Apply can change a frame.
func (p Power) Enabled() bool {
	return (p.WhiteCap > 0 && p.WhiteCap < 1) || p.BudgetMA > 0
}

// EstimateMA returns the estimated draw of an RGB frame in mA.
func (p Power) EstimateMA(rgb []byte) float64 {
	chanMA := p.LEDChanMA
	if chanMA <= 0 {
		chanMA = 20
	}
	var sum float64
	for _, v := range rgb {
		sum += float64(v)
	}
	return sum / 255.0 * chanMA
}

// Apply limits rgb in place.
func (p Power) Apply(rgb []byte) {
	if p.WhiteCap > 0 && p.WhiteCap < 1 {
		applyWhiteCap(rgb, p.WhiteCap)
	}
	if p.BudgetMA <= 0 {
		return
	}
	cur := p.EstimateMA(rgb)
	if cur <= p.BudgetMA {
		return
	}
	scale(rgb, p.BudgetMA/cur)
}

// applyWhiteCap clamps per-LED RGB so r+g+b <= whiteCap*3*255.
func applyWhiteCap(rgb []byte, whiteCap float64) {
	limit := whiteCap * 3.0 * 255.0
	for i := 0; i+2 < len(rgb); i += 3 {
		s := float64(rgb[i]) + float64(rgb[i+1]) + float64(rgb[i+2])
		if s > limit {
			k := limit / s
			rgb[i] = byte(math.Floor(float64(rgb[i]) * k))
			rgb[i+1] = byte(math.Floor(float64(rgb[i+1]) * k))
			rgb[i+2] = byte(math.Floor(float64(rgb[i+2]) * k))
		}
	}
}

func scale(rgb []byte, k float64) {
	for i, v := range rgb {
		rgb[i] = byte(math.Floor(float64(v) * k))
	}
}
