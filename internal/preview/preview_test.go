package preview

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/hitoshi/hitouch/internal/card"
	"github.com/hitoshi/hitouch/internal/model"
	"github.com/hitoshi/hitouch/internal/motion"
)

const testProfileURL = "https://hitouch.example.com/profile/p-1"

func sampleProfile() *model.Profile {
	return &model.Profile{
		ID:   "p-1",
		Name: "Hitoshi",
		Links: model.Links{
			Twitter: "https://twitter.com/hitoshi",
			GitHub:  "https://github.com/hitoshi",
		},
	}
}

// newTestPreview は80x25のシミュレーション画面でPreviewを生成する。
// カードは(8,0)から64x24の矩形に配置される。
func newTestPreview(t *testing.T) *Preview {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen.Init: %v", err)
	}
	screen.SetSize(80, 25)
	t.Cleanup(screen.Fini)

	p := New(screen, sampleProfile(), testProfileURL, []model.Post{{Title: "Goの記事"}}, motion.DefaultOptions(), slog.New(slog.DiscardHandler))
	t.Cleanup(p.Close)
	return p
}

func TestPreview_HandleKey_Toggle(t *testing.T) {
	p := newTestPreview(t)

	if !p.HandleKey(tcell.KeyEnter, 0) {
		t.Fatal("Enter should not quit")
	}
	if p.Face() != card.FaceFlipped {
		t.Errorf("face = %v, want flipped", p.Face())
	}

	p.HandleKey(tcell.KeyRune, ' ')
	if p.Face() != card.FaceFront {
		t.Errorf("face = %v, want front", p.Face())
	}
}

func TestPreview_HandleKey_Links(t *testing.T) {
	p := newTestPreview(t)

	p.HandleKey(tcell.KeyRune, '2')
	if p.Face() != card.FaceFlipped || p.Target() != model.PlatformGitHub {
		t.Fatalf("face/target = %v/%q, want flipped/github", p.Face(), p.Target())
	}

	p.HandleKey(tcell.KeyRune, '1')
	if p.Face() != card.FaceFlipped || p.Target() != model.PlatformTwitter {
		t.Errorf("face/target = %v/%q, want flipped/twitter", p.Face(), p.Target())
	}

	// 同じリンクで表に戻る
	p.HandleKey(tcell.KeyRune, '1')
	if p.Face() != card.FaceFront {
		t.Errorf("face = %v, want front", p.Face())
	}

	// zennは未登録のため操作できない
	p.HandleKey(tcell.KeyRune, '3')
	if p.Face() != card.FaceFront {
		t.Errorf("unset link should be ignored, face = %v", p.Face())
	}
}

func TestPreview_HandleKey_Quit(t *testing.T) {
	p := newTestPreview(t)

	tests := []struct {
		name string
		key  tcell.Key
		ch   rune
	}{
		{"escape", tcell.KeyEscape, 0},
		{"ctrl-c", tcell.KeyCtrlC, 0},
		{"q", tcell.KeyRune, 'q'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p.HandleKey(tt.key, tt.ch) {
				t.Error("HandleKey should return false")
			}
		})
	}
}

func TestPreview_HandleMouse_TiltsCard(t *testing.T) {
	p := newTestPreview(t)

	// カード右端・縦中央
	p.HandleMouse(71, 12, tcell.ButtonNone)
	r := p.Rotation()
	if r.Y <= 9 || r.Y > motion.DefaultPointerScale {
		t.Errorf("rotation.Y = %v, want close to %v", r.Y, motion.DefaultPointerScale)
	}
	if r.X < 0 || r.X > 1 {
		t.Errorf("rotation.X = %v, want close to 0", r.X)
	}

	// カード外に出ると{0, 0}に戻る
	p.HandleMouse(0, 0, tcell.ButtonNone)
	if got := p.Rotation(); got != (motion.Rotation{}) {
		t.Errorf("rotation = %+v, want {0, 0}", got)
	}
}

func TestPreview_HandleMouse_ClickToggles(t *testing.T) {
	p := newTestPreview(t)

	p.HandleMouse(40, 12, tcell.Button1)
	if p.Face() != card.FaceFlipped {
		t.Errorf("face = %v, want flipped", p.Face())
	}

	// カード外のクリックは無視
	p.HandleMouse(2, 2, tcell.Button1)
	if p.Face() != card.FaceFlipped {
		t.Errorf("face = %v, want flipped", p.Face())
	}
}

func TestPreview_HandleMouse_DragTogglesOnce(t *testing.T) {
	p := newTestPreview(t)

	// 押したままのドラッグは押下時の1回だけ裏返す
	for i := 0; i < 5; i++ {
		p.HandleMouse(30+i, 12, tcell.Button1)
	}
	p.HandleMouse(35, 12, tcell.ButtonNone)
	if p.Face() != card.FaceFlipped {
		t.Errorf("face after drag = %v, want flipped", p.Face())
	}

	// 離した後の次の押下で表に戻る
	p.HandleMouse(35, 12, tcell.Button1)
	p.HandleMouse(35, 12, tcell.ButtonNone)
	if p.Face() != card.FaceFront {
		t.Errorf("face after second click = %v, want front", p.Face())
	}
}

func TestPreview_HandleMouse_PressOutsideThenDragIn(t *testing.T) {
	p := newTestPreview(t)

	// カード外で押してからカード上へドラッグしても裏返さない
	p.HandleMouse(2, 2, tcell.Button1)
	p.HandleMouse(40, 12, tcell.Button1)
	if p.Face() != card.FaceFront {
		t.Errorf("face = %v, want front", p.Face())
	}
}

func TestPreview_Lines(t *testing.T) {
	p := newTestPreview(t)

	front := strings.Join(p.Lines(), "\n")
	for _, want := range []string{"Hitoshi", "[1] twitter", "[2] github", "Goの記事"} {
		if !strings.Contains(front, want) {
			t.Errorf("front should contain %q, got:\n%s", want, front)
		}
	}
	if strings.Contains(front, "[3]") {
		t.Error("unset zenn link should not be listed")
	}

	p.HandleKey(tcell.KeyRune, '2')
	back := p.Lines()
	if last := back[len(back)-1]; last != "github: https://github.com/hitoshi" {
		t.Errorf("back label = %q", last)
	}

	p.HandleKey(tcell.KeyEnter, 0)
	p.HandleKey(tcell.KeyEnter, 0)
	back = p.Lines()
	if last := back[len(back)-1]; last != "profile: "+testProfileURL {
		t.Errorf("back label = %q", last)
	}
}

func TestPreview_Draw_DoesNotPanicOnSmallScreen(t *testing.T) {
	p := newTestPreview(t)
	p.screen.(tcell.SimulationScreen).SetSize(10, 4)

	p.Draw()
	p.HandleKey(tcell.KeyEnter, 0)
	p.Draw()
}

func TestHalfBlocks(t *testing.T) {
	bitmap := [][]bool{
		{true, false, true, false},
		{true, true, false, false},
		{false, true, true, false},
	}

	got := HalfBlocks(bitmap)
	want := []string{"█▄▀ ", " ▀▀ "}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTiltOffset(t *testing.T) {
	tests := []struct {
		rot    motion.Rotation
		dx, dy int
	}{
		{motion.Rotation{}, 0, 0},
		{motion.Rotation{X: 20, Y: 20}, 2, 1},
		{motion.Rotation{X: -20, Y: -10}, -1, -1},
	}
	for _, tt := range tests {
		dx, dy := tiltOffset(tt.rot, 20)
		if dx != tt.dx || dy != tt.dy {
			t.Errorf("tiltOffset(%+v) = (%d, %d), want (%d, %d)", tt.rot, dx, dy, tt.dx, tt.dy)
		}
	}
}

func TestPreview_Run_QuitsWithPendingEvents(t *testing.T) {
	p := newTestPreview(t)
	sim := p.screen.(tcell.SimulationScreen)

	finished := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(finished)
	}()

	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after q")
	}

	// 終了後に届いたイベントで読み取りゴルーチンが詰まらず、Finiで抜けること
	for i := 0; i < 200; i++ {
		sim.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	}
}
