// Package motion はカードの3Dチルト表示に使う回転値を生成する信号処理を提供する。
//
// デバイスのジャイロ（角速度）・傾き（絶対角度）イベント、またはポインター座標を入力として、
// 平滑化・クランプ済みの2軸回転値（Rotation）を出力する。
// 入力源はセンサーとポインターのどちらか一方のみが回転値を書き換える（単一ライター）。
package motion

import "math"

// Rotation はカードに適用するチルト角（度）を表す。
// X は前後方向（rotateX）、Y は左右方向（rotateY）。
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PermissionState はセンサー利用許可の状態を表す。
type PermissionState int

const (
	// PermissionNotRequested は許可をまだ要求していない状態。
	PermissionNotRequested PermissionState = iota
	// PermissionGranted は許可済み（または許可不要のプラットフォーム）。
	PermissionGranted
	// PermissionDenied は拒否、またはリクエストが失敗した状態。
	PermissionDenied
)

// String はPermissionStateの文字列表現を返す。
func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "not_requested"
	}
}

// PermissionResponse はプラットフォームの許可リクエストの応答値。
type PermissionResponse string

const (
	ResponseGranted PermissionResponse = "granted"
	ResponseDenied  PermissionResponse = "denied"
	ResponseDefault PermissionResponse = "default"
)

// Capability は起動時に1回だけ判定されるセンサー対応状況。
type Capability int

const (
	// CapabilityUnsupported はタッチまたはセンサーイベントに非対応のデバイス。
	// ポインター操作のみで回転値を更新する。
	CapabilityUnsupported Capability = iota
	// CapabilityNoPermissionAPI はセンサー対応かつ許可APIを持たないデバイス（Android、iOS 12以下など）。
	CapabilityNoPermissionAPI
	// CapabilityPermissionAPI は明示的な許可リクエストが必要なデバイス（iOS 13以降）。
	CapabilityPermissionAPI
)

// String はCapabilityの文字列表現を返す。
func (c Capability) String() string {
	switch c {
	case CapabilityNoPermissionAPI:
		return "no_permission_api"
	case CapabilityPermissionAPI:
		return "permission_api"
	default:
		return "unsupported"
	}
}

// Sample はセンサーから届く生イベント。MotionSample または OrientationSample。
// 永続化されず、1回の更新で消費される。
type Sample interface {
	sample()
}

// RotationRate は各軸まわりの角速度（deg/s）。値が欠けている軸はnil。
type RotationRate struct {
	Alpha *float64
	Beta  *float64
	Gamma *float64
}

// MotionSample は角速度を含むdevicemotionイベント。
type MotionSample struct {
	RotationRate *RotationRate
}

// OrientationSample は絶対角度を含むdeviceorientationイベント。
// Alpha（方位）は使用しない。
type OrientationSample struct {
	Alpha *float64
	Beta  *float64
	Gamma *float64
}

func (MotionSample) sample()      {}
func (OrientationSample) sample() {}

// Rect は要素のバウンディングボックス（クライアント座標）。
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Float はサンプル構築用のヘルパー。
func Float(v float64) *float64 {
	return &v
}

// axisValue は欠損・非有限値を除外して軸の値を取り出す。
func axisValue(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
