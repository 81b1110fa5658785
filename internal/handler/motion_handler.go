package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/hitouch/internal/metrics"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/motion"
)

const (
	// maxReplayEvents は1回の再生で受け付けるイベント数の上限。
	maxReplayEvents = 5000
	// maxReplayBodySize は再生リクエストボディの上限。
	maxReplayBodySize = 1 << 20
	// replayTimeout は再生処理のタイムアウト。
	replayTimeout = 5 * time.Second
)

// MotionHandler はモーション再生APIのHTTPハンドラー。
type MotionHandler struct {
	defaults motion.Options
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// NewMotionHandler はMotionHandlerを生成する。defaultsはリクエストで上書きされない設定値。
func NewMotionHandler(defaults motion.Options, logger *slog.Logger, mc metrics.MetricsCollector) *MotionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MotionHandler{defaults: defaults, logger: logger, metrics: mc}
}

// axesPayload は3軸の値。欠けている軸はnull。
type axesPayload struct {
	Alpha *float64 `json:"alpha"`
	Beta  *float64 `json:"beta"`
	Gamma *float64 `json:"gamma"`
}

type rectPayload struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// replayOptions はデフォルト設定を上書きする値。省略したフィールドはデフォルトのまま。
type replayOptions struct {
	Sensitivity  *float64 `json:"sensitivity"`
	Smoothing    *float64 `json:"smoothing"`
	MaxRotation  *float64 `json:"max_rotation"`
	Decay        *float64 `json:"decay"`
	PointerScale *float64 `json:"pointer_scale"`
}

type replayDevice struct {
	Touch              bool   `json:"touch"`
	Motion             bool   `json:"motion"`
	PermissionAPI      bool   `json:"permission_api"`
	PermissionResponse string `json:"permission_response"`
	PermissionError    string `json:"permission_error"`
}

// replayEvent は再生イベント1件。kindはmotion/orientation/pointer_move/pointer_leave。
type replayEvent struct {
	Kind         string       `json:"kind"`
	RotationRate *axesPayload `json:"rotation_rate,omitempty"`
	Orientation  *axesPayload `json:"orientation,omitempty"`
	X            float64      `json:"x"`
	Y            float64      `json:"y"`
	Rect         *rectPayload `json:"rect,omitempty"`
}

// replayRequest はモーション再生リクエストのボディ。
type replayRequest struct {
	Model   string         `json:"model"`
	Options *replayOptions `json:"options"`
	Device  replayDevice   `json:"device"`
	Events  []replayEvent  `json:"events"`
}

// replayResponse はモーション再生のAPIレスポンス。
type replayResponse struct {
	Model       string         `json:"model"`
	Capability  string         `json:"capability"`
	Permission  string         `json:"permission"`
	GyroEnabled bool           `json:"gyro_enabled"`
	Frames      []motion.Frame `json:"frames"`
}

// Replay はリクエストのデバイス条件とイベント列でモーション処理を再生し、各フレームの回転値を返す。
// POST /api/motion/replay
func (h *MotionHandler) Replay(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReplayBodySize)

	var req replayRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	opts, script, err := h.buildScript(req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), replayTimeout)
	defer cancel()

	result, err := motion.Replay(ctx, opts, script, h.logger)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordMotionReplay(opts.Model.String(), len(result.Frames))
	writeJSON(w, http.StatusOK, replayResponse{
		Model:       opts.Model.String(),
		Capability:  result.Capability.String(),
		Permission:  result.Permission.String(),
		GyroEnabled: result.GyroEnabled,
		Frames:      result.Frames,
	})
}

// buildScript はリクエストを検証し、プロセッサ設定と再生スクリプトに変換する。
func (h *MotionHandler) buildScript(req replayRequest) (motion.Options, motion.Script, error) {
	opts := h.defaults
	if req.Model != "" {
		m, err := motion.ParseModel(req.Model)
		if err != nil {
			return opts, motion.Script{}, model.NewInvalidReplayError(err.Error())
		}
		opts.Model = m
	}
	if o := req.Options; o != nil {
		override(&opts.Sensitivity, o.Sensitivity)
		override(&opts.Smoothing, o.Smoothing)
		override(&opts.MaxRotation, o.MaxRotation)
		override(&opts.Decay, o.Decay)
		override(&opts.PointerScale, o.PointerScale)
	}

	if len(req.Events) > maxReplayEvents {
		return opts, motion.Script{}, model.NewInvalidReplayError(
			fmt.Sprintf("イベント数が上限（%d件）を超えています", maxReplayEvents))
	}

	script := motion.Script{
		Touch:           req.Device.Touch,
		Motion:          req.Device.Motion,
		PermissionAPI:   req.Device.PermissionAPI,
		PermissionError: req.Device.PermissionError,
		Events:          make([]motion.Event, 0, len(req.Events)),
	}
	if req.Device.PermissionAPI {
		switch resp := motion.PermissionResponse(req.Device.PermissionResponse); resp {
		case motion.ResponseGranted, motion.ResponseDenied, motion.ResponseDefault:
			script.PermissionResponse = resp
		case "":
			script.PermissionResponse = motion.ResponseDefault
		default:
			return opts, motion.Script{}, model.NewInvalidReplayError(
				fmt.Sprintf("permission_responseが不正です: %q", req.Device.PermissionResponse))
		}
	}

	for i, ev := range req.Events {
		e, err := toMotionEvent(ev)
		if err != nil {
			return opts, motion.Script{}, model.NewInvalidReplayError(fmt.Sprintf("events[%d]: %s", i, err))
		}
		script.Events = append(script.Events, e)
	}

	return opts, script, nil
}

func toMotionEvent(ev replayEvent) (motion.Event, error) {
	switch ev.Kind {
	case "motion":
		s := motion.MotionSample{}
		if ev.RotationRate != nil {
			s.RotationRate = &motion.RotationRate{
				Alpha: ev.RotationRate.Alpha,
				Beta:  ev.RotationRate.Beta,
				Gamma: ev.RotationRate.Gamma,
			}
		}
		return motion.Event{Kind: motion.EventSample, Sample: s}, nil
	case "orientation":
		s := motion.OrientationSample{}
		if ev.Orientation != nil {
			s.Alpha = ev.Orientation.Alpha
			s.Beta = ev.Orientation.Beta
			s.Gamma = ev.Orientation.Gamma
		}
		return motion.Event{Kind: motion.EventSample, Sample: s}, nil
	case "pointer_move":
		if ev.Rect == nil {
			return motion.Event{}, fmt.Errorf("pointer_moveにはrectが必要です")
		}
		return motion.Event{
			Kind: motion.EventPointerMove,
			X:    ev.X,
			Y:    ev.Y,
			Rect: motion.Rect{Left: ev.Rect.Left, Top: ev.Rect.Top, Width: ev.Rect.Width, Height: ev.Rect.Height},
		}, nil
	case "pointer_leave":
		return motion.Event{Kind: motion.EventPointerLeave}, nil
	default:
		return motion.Event{}, fmt.Errorf("未知のイベント種別です: %q", ev.Kind)
	}
}

func override(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
