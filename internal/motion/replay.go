package motion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ScriptedDevice はあらかじめ決めた対応状況を返し、Emitでサンプルを配信するDevice。
// 記録済みセンサーデータの再生やテストに使う。
type ScriptedDevice struct {
	touch  bool
	motion bool

	mu           sync.Mutex
	handler      func(Sample)
	subscribes   int
	unsubscribes int
}

// NewScriptedDevice はScriptedDeviceを生成する。
func NewScriptedDevice(touch, motion bool) *ScriptedDevice {
	return &ScriptedDevice{touch: touch, motion: motion}
}

// SupportsTouch はタッチ対応かを返す。
func (d *ScriptedDevice) SupportsTouch() bool { return d.touch }

// SupportsMotion はセンサー対応かを返す。
func (d *ScriptedDevice) SupportsMotion() bool { return d.motion }

// Subscribe はhandlerを登録する。同時に登録できるhandlerは1つ。
func (d *ScriptedDevice) Subscribe(handler func(Sample)) (Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handler != nil {
		return nil, errors.New("scripted device: already subscribed")
	}
	d.handler = handler
	d.subscribes++

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() {
			d.mu.Lock()
			d.handler = nil
			d.unsubscribes++
			d.mu.Unlock()
		})
	}), nil
}

// Emit は購読中のhandlerへサンプルを配信する。購読者がいなければfalseを返す。
func (d *ScriptedDevice) Emit(s Sample) bool {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()

	if h == nil {
		return false
	}
	h(s)
	return true
}

// Subscribed は購読中のhandlerがあるかを返す。
func (d *ScriptedDevice) Subscribed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler != nil
}

// Counts はSubscribeとUnsubscribeの呼び出し回数を返す。
func (d *ScriptedDevice) Counts() (subscribes, unsubscribes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscribes, d.unsubscribes
}

// WithPermission は許可APIを持つデバイスとしてラップする。
// RequestPermissionはresp、errをそのまま返す。
func (d *ScriptedDevice) WithPermission(resp PermissionResponse, err error) *PermissionDevice {
	return &PermissionDevice{ScriptedDevice: d, resp: resp, err: err}
}

// PermissionDevice は許可APIを持つScriptedDevice。
type PermissionDevice struct {
	*ScriptedDevice
	resp PermissionResponse
	err  error

	// Gate が非nilの場合、RequestPermissionはGateが閉じられるまで応答しない。
	Gate chan struct{}
}

// RequestPermission は設定された応答を返す。
func (d *PermissionDevice) RequestPermission(ctx context.Context) (PermissionResponse, error) {
	if d.Gate != nil {
		<-d.Gate
	}
	return d.resp, d.err
}

// EventKind は再生イベントの種類。
type EventKind string

const (
	EventSample       EventKind = "sample"
	EventPointerMove  EventKind = "pointer_move"
	EventPointerLeave EventKind = "pointer_leave"
)

// Event は再生する入力イベント1件。
type Event struct {
	Kind   EventKind
	Sample Sample
	X, Y   float64
	Rect   Rect
}

// Script は再生するデバイス条件と入力イベント列。
type Script struct {
	Touch  bool
	Motion bool
	// PermissionAPI がtrueの場合、PermissionResponse（PermissionErrorが空でなければエラー）で応答する。
	PermissionAPI      bool
	PermissionResponse PermissionResponse
	PermissionError    string
	Events             []Event
}

// Frame はイベント1件を適用した後の回転値。
type Frame struct {
	Rotation Rotation `json:"rotation"`
	Applied  bool     `json:"applied"`
}

// ReplayResult は再生結果。
type ReplayResult struct {
	Capability  Capability
	Permission  PermissionState
	GyroEnabled bool
	Frames      []Frame
}

// Replay はScriptの条件でプロセッサを起動し、イベントを順に適用した結果を返す。
func Replay(ctx context.Context, opts Options, script Script, logger *slog.Logger) (*ReplayResult, error) {
	base := NewScriptedDevice(script.Touch, script.Motion)
	var dev Device = base
	if script.PermissionAPI {
		var err error
		if script.PermissionError != "" {
			err = errors.New(script.PermissionError)
		}
		dev = base.WithPermission(script.PermissionResponse, err)
	}

	p := NewProcessor(opts, logger)
	defer p.Close()

	p.Mount(ctx, dev)
	select {
	case <-p.Ready():
	case <-ctx.Done():
		return nil, fmt.Errorf("motion replay: %w", ctx.Err())
	}

	result := &ReplayResult{
		Capability:  p.Capability(),
		Permission:  p.Permission(),
		GyroEnabled: p.GyroEnabled(),
		Frames:      make([]Frame, 0, len(script.Events)),
	}

	for i, ev := range script.Events {
		var applied bool
		switch ev.Kind {
		case EventSample:
			// 購読されていない（センサーモードでない）場合、HandleSampleはfalseを返す
			if ev.Sample != nil {
				applied = p.HandleSample(ev.Sample)
			}
		case EventPointerMove:
			applied = p.PointerMove(ev.X, ev.Y, ev.Rect)
		case EventPointerLeave:
			applied = p.ResetRotation()
		default:
			return nil, fmt.Errorf("motion replay: unknown event kind %q at index %d", ev.Kind, i)
		}
		result.Frames = append(result.Frames, Frame{Rotation: p.Rotation(), Applied: applied})
	}

	return result, nil
}
