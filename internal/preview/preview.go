// Package preview はプロフィールカードを端末に描画する対話型プレビューを提供する。
//
// 端末にはジャイロがないため、モーション処理はポインター操作のみで回転値を更新する。
// マウス移動でカードが傾き、Enter/Spaceで裏返すと裏面にQRコードを表示する。
package preview

import (
	"context"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/hitoshi/hitouch/internal/card"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/motion"
)

const (
	cardWidth  = 64
	cardHeight = 24
	frameRate  = 33 * time.Millisecond
)

var (
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	shadowStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	textStyle   = tcell.StyleDefault
	titleStyle  = tcell.StyleDefault.Bold(true)
	statusStyle = tcell.StyleDefault.Reverse(true)
)

// Preview はカード1枚分の端末プレビュー。
type Preview struct {
	screen     tcell.Screen
	profile    *model.Profile
	profileURL string
	posts      []model.Post
	card       card.Card
	proc       *motion.Processor
	logger     *slog.Logger

	// 直前のマウスイベントのボタン状態
	buttons tcell.ButtonMask
}

// New はPreviewを生成する。screenは初期化済みであること。
func New(screen tcell.Screen, p *model.Profile, profileURL string, posts []model.Post, opts motion.Options, logger *slog.Logger) *Preview {
	if logger == nil {
		logger = slog.Default()
	}
	proc := motion.NewProcessor(opts, logger)
	// 端末はセンサー非対応デバイスとして扱う
	proc.Mount(context.Background(), nil)

	return &Preview{
		screen:     screen,
		profile:    p,
		profileURL: profileURL,
		posts:      posts,
		proc:       proc,
		logger:     logger,
	}
}

// Face は現在のカードの向きを返す。
func (p *Preview) Face() card.Face {
	return p.card.Face()
}

// Target は裏面QRコードの表示対象を返す。
func (p *Preview) Target() model.Platform {
	return p.card.Target()
}

// Rotation は現在の回転値を返す。
func (p *Preview) Rotation() motion.Rotation {
	return p.proc.Rotation()
}

// Close はモーション処理を停止する。
func (p *Preview) Close() {
	p.proc.Close()
}

// cardRect は画面中央に配置したカードの矩形を返す。
func (p *Preview) cardRect() motion.Rect {
	w, h := p.screen.Size()
	cw, ch := min(cardWidth, w), min(cardHeight, h-1)
	return motion.Rect{
		Left:   float64((w - cw) / 2),
		Top:    float64((h - 1 - ch) / 2),
		Width:  float64(cw),
		Height: float64(ch),
	}
}

// rectCells はセル単位の矩形。
type rectCells struct {
	left, top, width, height int
}

func (r rectCells) contains(x, y int) bool {
	return x >= r.left && x < r.left+r.width && y >= r.top && y < r.top+r.height
}

func toCells(r motion.Rect) rectCells {
	return rectCells{int(r.Left), int(r.Top), int(r.Width), int(r.Height)}
}

// HandleKey はキー入力を反映する。終了キーの場合はfalseを返す。
func (p *Preview) HandleKey(key tcell.Key, ch rune) bool {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyEnter:
		p.card.Toggle()
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	switch ch {
	case 'q':
		return false
	case ' ':
		p.card.Toggle()
	case '1', '2', '3':
		platform := model.Platforms[ch-'1']
		// 未登録のリンクはカードに表示されないため操作できない
		if p.profile.Links.URL(platform) != "" {
			p.card.ActivateLink(platform)
		}
	}
	return true
}

// HandleMouse はマウス位置とボタンを反映する。
// カード上の移動で回転値を設定し、カード外へ出ると{0, 0}に戻す。
// カード上でButton1が押された瞬間に1回だけ裏返す。押したままのドラッグでは裏返さない。
func (p *Preview) HandleMouse(x, y int, buttons tcell.ButtonMask) {
	pressed := buttons&tcell.Button1 != 0 && p.buttons&tcell.Button1 == 0
	p.buttons = buttons

	rect := p.cardRect()
	if !toCells(rect).contains(x, y) {
		p.proc.ResetRotation()
		return
	}
	// セルの中心をポインター位置とする
	p.proc.PointerMove(float64(x)+0.5, float64(y)+0.5, rect)
	if pressed {
		p.card.Toggle()
	}
}

// HandleEvent はtcellのイベントを振り分ける。終了する場合はfalseを返す。
func (p *Preview) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return p.HandleKey(ev.Key(), ev.Rune())
	case *tcell.EventMouse:
		x, y := ev.Position()
		p.HandleMouse(x, y, ev.Buttons())
	case *tcell.EventResize:
		p.screen.Sync()
	}
	return true
}

// Lines は現在の向きに応じたカード内の行を返す。
func (p *Preview) Lines() []string {
	if p.card.Face() == card.FaceFront {
		return frontLines(p.profile, p.posts)
	}
	lines, err := backLines(&p.card, p.profile, p.profileURL)
	if err != nil {
		p.logger.Warn("QRコードの生成に失敗しました", slog.String("error", err.Error()))
		return []string{"QR code unavailable"}
	}
	return lines
}

// Draw はカードとステータス行を描画する。
func (p *Preview) Draw() {
	p.screen.Clear()
	w, h := p.screen.Size()

	rect := toCells(p.cardRect())
	rot := p.proc.Rotation()
	dx, dy := tiltOffset(rot, p.proc.Options().MaxRotation)

	// 傾きと逆方向に影を落とす
	p.drawBox(rect.left-dx, rect.top-dy, rect.width, rect.height, shadowStyle)
	p.drawBox(rect.left, rect.top, rect.width, rect.height, borderStyle)

	for i, line := range p.Lines() {
		y := rect.top + 1 + i
		if y >= rect.top+rect.height-1 {
			break
		}
		style := textStyle
		if i == 0 && p.card.Face() == card.FaceFront {
			style = titleStyle
		}
		p.drawText(rect.left+2, y, truncate(line, rect.width-4), style)
	}

	p.drawText(0, h-1, truncate(statusLine(p.card.Face(), rot), w), statusStyle)
	p.screen.Show()
}

func (p *Preview) drawBox(left, top, width, height int, style tcell.Style) {
	if width < 2 || height < 2 {
		return
	}
	right, bottom := left+width-1, top+height-1
	for x := left + 1; x < right; x++ {
		p.screen.SetContent(x, top, tcell.RuneHLine, nil, style)
		p.screen.SetContent(x, bottom, tcell.RuneHLine, nil, style)
	}
	for y := top + 1; y < bottom; y++ {
		p.screen.SetContent(left, y, tcell.RuneVLine, nil, style)
		p.screen.SetContent(right, y, tcell.RuneVLine, nil, style)
	}
	p.screen.SetContent(left, top, tcell.RuneULCorner, nil, style)
	p.screen.SetContent(right, top, tcell.RuneURCorner, nil, style)
	p.screen.SetContent(left, bottom, tcell.RuneLLCorner, nil, style)
	p.screen.SetContent(right, bottom, tcell.RuneLRCorner, nil, style)
}

func (p *Preview) drawText(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		p.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

// Run はイベントループを実行する。終了キーまたはctxのキャンセルで戻る。
func (p *Preview) Run(ctx context.Context) {
	ticker := time.NewTicker(frameRate)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				// Finiされた
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	p.Draw()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok || !p.HandleEvent(ev) {
				return
			}
		case <-ticker.C:
			p.Draw()
		}
	}
}
