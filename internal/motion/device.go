package motion

import "context"

// Device はセンサーAPIを持つプラットフォームの境界。
type Device interface {
	// SupportsTouch はタッチ入力に対応しているかを返す。
	SupportsTouch() bool
	// SupportsMotion はdevicemotion/deviceorientationイベントを発行できるかを返す。
	SupportsMotion() bool
	// Subscribe はセンサーイベントの購読を開始する。
	// handlerは到着順に逐次呼び出されなければならない。
	Subscribe(handler func(Sample)) (Subscription, error)
}

// PermissionRequester は明示的な許可リクエストを持つプラットフォーム（iOS 13以降）が実装する。
// 呼び出しはキャンセルできない前提で扱う。
type PermissionRequester interface {
	RequestPermission(ctx context.Context) (PermissionResponse, error)
}

// Subscription はSubscribeで取得したセンサー購読。
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc は関数をSubscriptionとして扱うアダプタ。
type SubscriptionFunc func()

// Unsubscribe は購読を解除する。
func (f SubscriptionFunc) Unsubscribe() {
	f()
}

// Negotiate はデバイスのセンサー対応状況を判定する。
// 許可APIの有無はPermissionRequesterの実装有無で判定し、イベントごとには再判定しない。
func Negotiate(dev Device) Capability {
	if dev == nil || !dev.SupportsTouch() || !dev.SupportsMotion() {
		return CapabilityUnsupported
	}
	if _, ok := dev.(PermissionRequester); ok {
		return CapabilityPermissionAPI
	}
	return CapabilityNoPermissionAPI
}
