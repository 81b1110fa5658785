package motion

import (
	"context"
	"log/slog"
	"sync"
)

// Processor はセンサーまたはポインターの入力から回転値を生成する状態を持つ処理器。
// 1つのカード表示（ページ）ごとに生成し、Closeで破棄する。
//
// センサーが有効な間はポインター操作による更新を受け付けない。
type Processor struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	rotation   Rotation
	gyro       bool
	permission PermissionState
	capability Capability
	mounted    bool
	closed     bool
	sub        Subscription

	ready     chan struct{}
	readyOnce sync.Once
}

// NewProcessor はProcessorを生成する。loggerがnilの場合はslog.Default()を使う。
func NewProcessor(opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		opts:   opts.normalize(),
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Options は正規化済みの設定を返す。
func (p *Processor) Options() Options {
	return p.opts
}

// Mount はセンサー対応状況を判定し、必要なら許可リクエストを発行する。
// 許可APIを持つデバイスでは許可リクエストを非同期に実行し、即座に戻る。
// 判定の完了はReadyで待てる。2回目以降の呼び出しは何もしない。
func (p *Processor) Mount(ctx context.Context, dev Device) {
	p.mu.Lock()
	if p.mounted || p.closed {
		p.mu.Unlock()
		return
	}
	p.mounted = true
	capability := Negotiate(dev)
	p.capability = capability
	p.mu.Unlock()

	switch capability {
	case CapabilityUnsupported:
		p.logger.Info("ジャイロ非対応デバイスのためポインター操作で動作します")
		p.markReady()
	case CapabilityNoPermissionAPI:
		p.logger.Info("ジャイロを自動で有効化します（許可API なし）")
		p.enable(dev)
		p.markReady()
	case CapabilityPermissionAPI:
		requester := dev.(PermissionRequester)
		go func() {
			defer p.markReady()
			resp, err := requester.RequestPermission(ctx)
			p.resolvePermission(dev, resp, err)
		}()
	}
}

// resolvePermission は許可リクエストの応答を反映する。
// 応答到着前にCloseされていた場合は状態を変更しない。
func (p *Processor) resolvePermission(dev Device, resp PermissionResponse, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Info("破棄済みのため許可リクエストの応答を無視します",
			slog.String("response", string(resp)),
		)
		return
	}
	if err != nil || resp != ResponseGranted {
		p.permission = PermissionDenied
		p.mu.Unlock()
		if err != nil {
			p.logger.Error("ジャイロ許可リクエストに失敗しました",
				slog.String("error", err.Error()),
			)
		} else {
			p.logger.Info("ジャイロ許可が拒否されました",
				slog.String("response", string(resp)),
			)
		}
		return
	}
	p.mu.Unlock()

	p.logger.Info("ジャイロ許可が得られました")
	p.enable(dev)
}

// enable はセンサーモードへ遷移し、センサーイベントの購読を開始する。
func (p *Processor) enable(dev Device) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	prev := p.permission
	p.gyro = true
	p.permission = PermissionGranted
	p.mu.Unlock()

	sub, err := dev.Subscribe(func(s Sample) {
		p.HandleSample(s)
	})

	p.mu.Lock()
	if err != nil {
		// 購読できなければセンサーは動いていないため、許可状態も元に戻す
		p.gyro = false
		p.permission = prev
		p.mu.Unlock()
		p.logger.Error("センサーイベントの購読に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	if p.closed {
		p.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	p.sub = sub
	p.mu.Unlock()
}

func (p *Processor) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// Ready は対応状況の判定と許可リクエストが完了すると閉じられるチャネルを返す。
func (p *Processor) Ready() <-chan struct{} {
	return p.ready
}

// Rotation は現在の回転値を返す。
func (p *Processor) Rotation() Rotation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotation
}

// GyroEnabled はセンサーモードが有効かを返す。
func (p *Processor) GyroEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gyro
}

// Permission は許可状態を返す。
func (p *Processor) Permission() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission
}

// Capability はMountで判定した対応状況を返す。
func (p *Processor) Capability() Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capability
}

// HandleSample はセンサーサンプルを1件適用する。
// センサーモードでない場合、破棄済みの場合、値が欠けている場合、
// 選択中のModelが使わないサンプルの場合はfalseを返し、状態を変更しない。
func (p *Processor) HandleSample(s Sample) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.gyro || p.closed {
		return false
	}

	switch v := s.(type) {
	case MotionSample:
		return p.applyMotion(v)
	case *MotionSample:
		if v == nil {
			return false
		}
		return p.applyMotion(*v)
	case OrientationSample:
		return p.applyOrientation(v)
	case *OrientationSample:
		if v == nil {
			return false
		}
		return p.applyOrientation(*v)
	default:
		return false
	}
}

func (p *Processor) applyMotion(s MotionSample) bool {
	if s.RotationRate == nil {
		return false
	}

	switch p.opts.Model {
	case ModelRateIntegration:
		beta, okB := axisValue(s.RotationRate.Beta)
		gamma, okG := axisValue(s.RotationRate.Gamma)
		if !okB || !okG {
			return false
		}
		p.rotation = Rotation{
			X: p.opts.smoothAxis(p.rotation.X, beta),
			Y: p.opts.smoothAxis(p.rotation.Y, gamma),
		}
		return true
	case ModelHybrid:
		beta, ok := axisValue(s.RotationRate.Beta)
		if !ok {
			return false
		}
		p.rotation.X = p.opts.decayAxis(p.rotation.X, beta)
		return true
	default:
		return false
	}
}

func (p *Processor) applyOrientation(s OrientationSample) bool {
	switch p.opts.Model {
	case ModelAbsoluteOrientation:
		beta, okB := axisValue(s.Beta)
		gamma, okG := axisValue(s.Gamma)
		if !okB || !okG {
			return false
		}
		p.rotation = Rotation{
			X: p.opts.smoothAxis(p.rotation.X, beta),
			Y: p.opts.smoothAxis(p.rotation.Y, gamma),
		}
		return true
	case ModelHybrid:
		gamma, ok := axisValue(s.Gamma)
		if !ok {
			return false
		}
		p.rotation.Y = p.opts.smoothAxis(p.rotation.Y, gamma)
		return true
	default:
		return false
	}
}

// SetRotation はポインターモードで回転値を直接設定する。値はクランプされる。
// センサーモード中は何もせずfalseを返す。
func (p *Processor) SetRotation(r Rotation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gyro || p.closed {
		return false
	}
	r, ok := p.clampRotation(r)
	if !ok {
		return false
	}
	p.rotation = r
	return true
}

// PointerOffset は要素中心からの正規化オフセット（各軸 [-1, 1]）で回転値を設定する。
// 横方向のオフセットがY、縦方向のオフセットがXになる。平滑化は行わない。
func (p *Processor) PointerOffset(nx, ny float64) bool {
	return p.SetRotation(Rotation{
		X: ny * p.opts.PointerScale,
		Y: nx * p.opts.PointerScale,
	})
}

// PointerMove はクライアント座標のポインター位置と要素の矩形から回転値を設定する。
func (p *Processor) PointerMove(x, y float64, rect Rect) bool {
	if rect.Width <= 0 || rect.Height <= 0 {
		return false
	}
	halfW := rect.Width / 2
	halfH := rect.Height / 2
	nx := (x - (rect.Left + halfW)) / halfW
	ny := (y - (rect.Top + halfH)) / halfH
	return p.PointerOffset(nx, ny)
}

// ResetRotation はポインターが要素から離れたときに回転値を{0, 0}に戻す。
// センサーモード中は何もしない。
func (p *Processor) ResetRotation() bool {
	return p.SetRotation(Rotation{})
}

// Close はセンサー購読を解除し、状態を初期化する。
// 以後に到着した許可リクエストの応答やサンプルは無視される。複数回呼んでもよい。
func (p *Processor) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	sub := p.sub
	p.sub = nil
	p.gyro = false
	p.rotation = Rotation{}
	p.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	p.markReady()
}

func (p *Processor) clampRotation(r Rotation) (Rotation, bool) {
	x, okX := axisValue(&r.X)
	y, okY := axisValue(&r.Y)
	if !okX || !okY {
		return Rotation{}, false
	}
	return Rotation{
		X: clamp(x, p.opts.MaxRotation),
		Y: clamp(y, p.opts.MaxRotation),
	}, true
}
