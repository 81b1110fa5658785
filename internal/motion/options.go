package motion

import (
	"fmt"
	"math"
	"strings"
)

// Model はセンサー入力から回転値を求める方式。プロセッサごとに1つだけ選ぶ。
type Model int

const (
	// ModelHybrid は左右（Y）を傾き角の指数平滑化、前後（X）を角速度の減衰積分で求める。
	ModelHybrid Model = iota
	// ModelRateIntegration は角速度 beta→X、gamma→Y を指数平滑化する。
	ModelRateIntegration
	// ModelAbsoluteOrientation は傾き角 beta→X、gamma→Y を指数平滑化する。
	ModelAbsoluteOrientation
)

// String はModelの文字列表現を返す。
func (m Model) String() string {
	switch m {
	case ModelRateIntegration:
		return "rate"
	case ModelAbsoluteOrientation:
		return "orientation"
	default:
		return "hybrid"
	}
}

// ParseModel は文字列からModelを解析する。空文字列はModelHybrid。
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hybrid":
		return ModelHybrid, nil
	case "rate":
		return ModelRateIntegration, nil
	case "orientation":
		return ModelAbsoluteOrientation, nil
	default:
		return ModelHybrid, fmt.Errorf("unknown motion model: %q", s)
	}
}

const (
	DefaultSensitivity  = 0.35
	DefaultSmoothing    = 0.1
	DefaultMaxRotation  = 20.0
	DefaultDecay        = 0.92
	DefaultPointerScale = 10.0
)

// Options はプロセッサの設定。ゼロ値のフィールドはデフォルト値になる。
type Options struct {
	// Sensitivity は平滑化前にセンサー値へ掛ける倍率。
	Sensitivity float64
	// Smoothing は指数平滑化の係数α（0 < α <= 1）。
	Smoothing float64
	// MaxRotation は対称クランプ範囲（度）。
	MaxRotation float64
	// Decay は減衰積分の係数（0 < d < 1）。ModelHybridのみ使用。
	Decay float64
	// PointerScale は正規化済みポインター位置に掛ける倍率。
	PointerScale float64
	Model        Model
}

// DefaultOptions はデフォルト設定を返す。
func DefaultOptions() Options {
	return Options{
		Sensitivity:  DefaultSensitivity,
		Smoothing:    DefaultSmoothing,
		MaxRotation:  DefaultMaxRotation,
		Decay:        DefaultDecay,
		PointerScale: DefaultPointerScale,
		Model:        ModelHybrid,
	}
}

// normalize は範囲外・非有限の値をデフォルト値に置き換えたOptionsを返す。
func (o Options) normalize() Options {
	d := DefaultOptions()
	if !positive(o.Sensitivity) {
		o.Sensitivity = d.Sensitivity
	}
	if !positive(o.Smoothing) || o.Smoothing > 1 {
		o.Smoothing = d.Smoothing
	}
	if !positive(o.MaxRotation) {
		o.MaxRotation = d.MaxRotation
	}
	if !positive(o.Decay) || o.Decay >= 1 {
		o.Decay = d.Decay
	}
	if !positive(o.PointerScale) {
		o.PointerScale = d.PointerScale
	}
	if o.Model < ModelHybrid || o.Model > ModelAbsoluteOrientation {
		o.Model = d.Model
	}
	return o
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
