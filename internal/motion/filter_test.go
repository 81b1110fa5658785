package motion

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name  string
		v     float64
		limit float64
		want  float64
	}{
		{"範囲内", 5, 20, 5},
		{"上限超過", 50, 20, 20},
		{"下限超過", -50, 20, -20},
		{"境界値", 20, 20, 20},
		{"負の境界値", -20, 20, -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clamp(tt.v, tt.limit); got != tt.want {
				t.Errorf("clamp(%v, %v) = %v, want %v", tt.v, tt.limit, got, tt.want)
			}
		})
	}
}

// TestSmooth_ConvergesMonotonically は一定の目標値に対して単調に収束し、
// 行き過ぎないことを検証する。
func TestSmooth_ConvergesMonotonically(t *testing.T) {
	for _, start := range []float64{-20, -3, 0, 7.5, 20} {
		for _, target := range []float64{-15, 0, 12} {
			prev := start
			for i := 0; i < 500; i++ {
				next := smooth(prev, target, 0.1)

				lo, hi := math.Min(prev, target), math.Max(prev, target)
				if next < lo-epsilon || next > hi+epsilon {
					t.Fatalf("start=%v target=%v step=%d: %v は [%v, %v] の範囲外", start, target, i, next, lo, hi)
				}
				if math.Abs(next-target) > math.Abs(prev-target)+epsilon {
					t.Fatalf("start=%v target=%v step=%d: 目標値から遠ざかった (%v -> %v)", start, target, i, prev, next)
				}
				prev = next
			}
			if math.Abs(prev-target) > 1e-6 {
				t.Errorf("start=%v target=%v: 収束していない (%v)", start, target, prev)
			}
		}
	}
}

// TestDecayIntegrate_DecaysGeometrically は入力がゼロのとき値が d^n で減衰することを検証する。
func TestDecayIntegrate_DecaysGeometrically(t *testing.T) {
	opts := DefaultOptions()
	v0 := 15.0
	v := v0
	for n := 1; n <= 50; n++ {
		v = opts.decayAxis(v, 0)
		want := v0 * math.Pow(opts.Decay, float64(n))
		if math.Abs(v-want) > 1e-9 {
			t.Fatalf("n=%d: got %v, want %v", n, v, want)
		}
	}
}

func TestSmoothAxis_ClampsTargetBeforeSmoothing(t *testing.T) {
	opts := Options{Sensitivity: 0.5, Smoothing: 0.1, MaxRotation: 20}.normalize()

	// 100*0.5=50 は平滑化の前に20へクランプされる
	got := opts.smoothAxis(0, 100)
	if !almostEqual(got, 2) {
		t.Errorf("smoothAxis(0, 100) = %v, want 2", got)
	}
}

func TestDecayAxis_ClampsEveryUpdate(t *testing.T) {
	opts := DefaultOptions()
	v := 0.0
	for i := 0; i < 100; i++ {
		v = opts.decayAxis(v, 500)
		if v > opts.MaxRotation || v < -opts.MaxRotation {
			t.Fatalf("step %d: %v はクランプ範囲外", i, v)
		}
	}
	if v != opts.MaxRotation {
		t.Errorf("v = %v, want %v", v, opts.MaxRotation)
	}
}

func TestOptions_Normalize(t *testing.T) {
	got := Options{Smoothing: 2, Decay: 1, MaxRotation: math.NaN(), Sensitivity: -1}.normalize()
	want := DefaultOptions()
	if got != want {
		t.Errorf("normalize() = %+v, want %+v", got, want)
	}

	custom := Options{Sensitivity: 0.5, Smoothing: 0.15, MaxRotation: 30, Decay: 0.8, PointerScale: 5, Model: ModelRateIntegration}
	if got := custom.normalize(); got != custom {
		t.Errorf("normalize() changed valid options: %+v", got)
	}
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		in      string
		want    Model
		wantErr bool
	}{
		{"", ModelHybrid, false},
		{"hybrid", ModelHybrid, false},
		{"RATE", ModelRateIntegration, false},
		{" orientation ", ModelAbsoluteOrientation, false},
		{"magic", ModelHybrid, true},
	}

	for _, tt := range tests {
		got, err := ParseModel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseModel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseModel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
