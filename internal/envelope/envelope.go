// Package envelope evaluates keyframed curves with easing. The render loop
// uses them for the breathing, pulse and flash animations.
package envelope

// Keyframe is a value V at normalized time T. Ease applies to the segment
// starting at this keyframe.
type Keyframe struct {
	T    float64 `yaml:"t" json:"t"`
	V    float64 `yaml:"v" json:"v"`
	Ease string  `yaml:"ease,omitempty" json:"ease,omitempty"` // "linear","smooth","cubic"
}

// Envelope is a list of keyframes sorted by T.
type Envelope struct {
	Keys []Keyframe `yaml:"keys" json:"keys"`
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// smootherstep 6x^5 - 15x^4 + 10x^3
func smootherstep(x float64) float64 {
	return x * x * x * (x*(x*6-15) + 10)
}

func easeApply(kind string, x float64) float64 {
	switch kind {
	case "smooth":
		return x * x * (3 - 2*x)
	case "cubic":
		return smootherstep(x)
	default:
		return x
	}
}

// Eval returns the value at t. No keys gives 0; before the first and after
// the last key the end values hold.
func (e Envelope) Eval(t float64) float64 {
	n := len(e.Keys)
	if n == 0 {
		return 0
	}
	if n == 1 || t <= e.Keys[0].T {
		return e.Keys[0].V
	}
	if t >= e.Keys[n-1].T {
		return e.Keys[n-1].V
	}
	for i := 0; i < n-1; i++ {
		a := e.Keys[i]
		b := e.Keys[i+1]
		if t >= a.T && t <= b.T {
			den := b.T - a.T
			if den <= 0 {
				return b.V
			}
			u := easeApply(a.Ease, clamp01((t-a.T)/den))
			return a.V + (b.V-a.V)*u
		}
	}
	return e.Keys[n-1].V
}

// Breath rises and falls once over [0,1].
func Breath() Envelope {
	return Envelope{Keys: []Keyframe{
		{T: 0, V: 0, Ease: "smooth"},
		{T: 0.5, V: 1, Ease: "smooth"},
		{T: 1, V: 0},
	}}
}

// Flash jumps to full and decays over [0,1].
func Flash() Envelope {
	return Envelope{Keys: []Keyframe{
		{T: 0, V: 1},
		{T: 0.2, V: 1, Ease: "cubic"},
		{T: 1, V: 0},
	}}
}
