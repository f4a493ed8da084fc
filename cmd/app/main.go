package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"

	"coaster-builder/internal/common"
	"coaster-builder/internal/config"
	"coaster-builder/internal/editor"
	"coaster-builder/internal/physics"
	"coaster-builder/internal/session"
	"coaster-builder/internal/track"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"gonum.org/v1/gonum/spatial/r3"
)

// ============================================================================
// CONFIGURATION - Adjust these values to customize the view
// ============================================================================

// Render window dimensions
const (
	WindowWidth  = 1200
	WindowHeight = 800
)

// View settings (top-down plan of the build plane, x right, z down)
const (
	PixelsPerMetre = 8.0
	MarkerRadius   = 6.0  // Pixels, also the pick radius
	PathSamples    = 400  // Curve samples drawn per frame
	MaxDrawHeight  = 40.0 // Height mapped to the brightest path colour
	EyeHeight      = 1.5  // Rider camera above the rail, metres
	LookAhead      = 6.0  // Rider camera target distance, metres
)

// Scene colors
var (
	ColorDay       = color.RGBA{135, 190, 235, 255}
	ColorNight     = color.RGBA{10, 12, 30, 255}
	ColorGrid      = color.RGBA{255, 255, 255, 25}
	ColorPathLow   = color.RGBA{60, 90, 200, 255}
	ColorPathHigh  = color.RGBA{255, 80, 40, 255}
	ColorMarker    = color.RGBA{68, 136, 255, 255}  // #4488ff
	ColorSelected  = color.RGBA{255, 102, 0, 255}   // #ff6600
	ColorPreview   = color.RGBA{0, 255, 0, 150}     // #00ff00, translucent
	ColorCar       = color.RGBA{255, 0, 0, 255}     // Red
	ColorCarFacing = color.RGBA{255, 255, 0, 255}   // Yellow
	ColorHUD       = color.RGBA{0, 0, 0, 180}
)

// ============================================================================

type Game struct {
	Session     *session.Session
	CoasterPath string
	Frame       session.Frame

	// Pointer state
	pressed      bool
	lastX, lastY int

	// Rendering offset of the world origin
	ViewOffsetX float32
	ViewOffsetY float32
}

func (g *Game) Update() error {
	s := g.Session

	// Mode and scene toggles
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if err := s.ToggleMode(); err != nil {
			log.Printf("cannot ride: %v", err)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		s.ToggleNight()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		s.SetMuted(!s.State().Muted)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) || inpututil.IsKeyJustPressed(ebiten.KeyDelete) {
		if id := s.State().Selected; id != "" {
			if err := s.RemovePoint(id); err != nil {
				log.Printf("remove point: %v", err)
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := s.Reset(); err != nil {
			log.Printf("reset: %v", err)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyL) && g.CoasterPath != "" {
		if err := g.loadCoaster(); err != nil {
			log.Printf("load coaster: %v", err)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyE) && g.CoasterPath != "" {
		if err := s.Document("coaster").Save(g.CoasterPath); err != nil {
			log.Printf("export coaster: %v", err)
		}
	}

	g.queuePointerEvents()

	g.Frame = s.Tick(1 / float64(ebiten.TPS()))
	return nil
}

// queuePointerEvents converts mouse state into editor events for this frame.
func (g *Game) queuePointerEvents() {
	x, y := ebiten.CursorPosition()
	dx, dy := float64(x-g.lastX), float64(y-g.lastY)
	g.lastX, g.lastY = x, y

	inside := x >= 0 && y >= 0 && x < WindowWidth && y < WindowHeight
	point := g.toWorld(x, y)

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && inside:
		g.pressed = true
		g.Session.Enqueue(editor.Event{Kind: editor.PointerDown, Point: point, Target: g.pick(x, y)})
	case g.pressed && !inside:
		g.pressed = false
		g.Session.Enqueue(editor.Event{Kind: editor.PointerCancel})
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) && g.pressed:
		g.pressed = false
		g.Session.Enqueue(editor.Event{Kind: editor.PointerUp, Point: point})
	case g.pressed && (dx != 0 || dy != 0):
		g.Session.Enqueue(editor.Event{Kind: editor.PointerMove, Point: point, Movement: common.Vec2{X: dx, Y: dy}})
	}
}

// pick returns the marker under the cursor, if any.
func (g *Game) pick(x, y int) track.PointID {
	id, _ := g.Session.PointAt(g.toWorld(x, y), MarkerRadius/PixelsPerMetre)
	return id
}

func (g *Game) loadCoaster() error {
	doc, err := track.LoadDocument(g.CoasterPath)
	if err != nil {
		return err
	}
	return g.Session.Load(doc)
}

// toWorld projects a screen position onto the build plane.
func (g *Game) toWorld(x, y int) r3.Vec {
	return r3.Vec{
		X: (float64(x) - float64(g.ViewOffsetX)) / PixelsPerMetre,
		Z: (float64(y) - float64(g.ViewOffsetY)) / PixelsPerMetre,
	}
}

func (g *Game) toScreen(p r3.Vec) (float32, float32) {
	return float32(p.X*PixelsPerMetre) + g.ViewOffsetX, float32(p.Z*PixelsPerMetre) + g.ViewOffsetY
}

func heightColor(h float64) color.RGBA {
	f := common.Clamp(h/MaxDrawHeight, 0, 1)
	mix := func(a, b uint8) uint8 { return uint8(float64(a) + f*(float64(b)-float64(a))) }
	return color.RGBA{
		mix(ColorPathLow.R, ColorPathHigh.R),
		mix(ColorPathLow.G, ColorPathHigh.G),
		mix(ColorPathLow.B, ColorPathHigh.B),
		255,
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	f := g.Frame

	// Sky
	if f.Night {
		screen.Fill(ColorNight)
	} else {
		screen.Fill(ColorDay)
	}

	// Ground grid, one line every 10 m
	step := float32(10 * PixelsPerMetre)
	for x := float32(math.Mod(float64(g.ViewOffsetX), float64(step))); x < WindowWidth; x += step {
		vector.StrokeLine(screen, x, 0, x, WindowHeight, 1, ColorGrid, false)
	}
	for y := float32(math.Mod(float64(g.ViewOffsetY), float64(step))); y < WindowHeight; y += step {
		vector.StrokeLine(screen, 0, y, WindowWidth, y, 1, ColorGrid, false)
	}

	// Path, shaded by height
	if !f.Curve.Degenerate() {
		samples := f.Curve.Samples(PathSamples)
		for j := 0; j < len(samples)-1; j++ {
			p1x, p1y := g.toScreen(samples[j].Position)
			p2x, p2y := g.toScreen(samples[j+1].Position)
			vector.StrokeLine(screen, p1x, p1y, p2x, p2y, 3, heightColor(samples[j].Position.Y), true)
		}
	}

	// Markers are only shown while building
	if f.Mode == session.Build {
		for i, p := range f.Points {
			sx, sy := g.toScreen(p.Position)
			col := ColorMarker
			if p.ID == f.Selected {
				col = ColorSelected
			}
			vector.DrawFilledCircle(screen, sx, sy, MarkerRadius, col, true)
			ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d %.1fm", i, p.Position.Y), int(sx)+8, int(sy)-8)
		}
		if f.Previewing {
			sx, sy := g.toScreen(f.Preview)
			vector.DrawFilledCircle(screen, sx, sy, MarkerRadius, ColorPreview, true)
			ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%.1fm", f.Preview.Y), int(sx)+8, int(sy)-8)
		}
	}

	// Car and rider camera
	if f.Riding {
		g.drawCar(screen, f.Pose)
		view := physics.Camera(f.Curve, f.Pose, EyeHeight, LookAhead)
		ex, ey := g.toScreen(view.Eye)
		tx, ty := g.toScreen(view.Target)
		vector.StrokeLine(screen, ex, ey, tx, ty, 2, ColorCarFacing, true)
	}

	g.drawHUD(screen)
}

func (g *Game) drawCar(screen *ebiten.Image, pose physics.Pose) {
	const halfL, halfW = 2.0, 1.0

	fwd := pose.Forward
	right := pose.Right
	center := pose.Sample.Position

	corners := [4][2]float64{
		{halfL, halfW},
		{halfL, -halfW},
		{-halfL, -halfW},
		{-halfL, halfW},
	}

	var path vector.Path
	for i, c := range corners {
		world := r3.Add(center, r3.Add(r3.Scale(c[0], fwd), r3.Scale(c[1], right)))
		sx, sy := g.toScreen(world)
		if i == 0 {
			path.MoveTo(sx, sy)
		} else {
			path.LineTo(sx, sy)
		}
	}
	path.Close()

	var cs ebiten.ColorScale
	cs.ScaleWithColor(ColorCar)
	vector.FillPath(screen, &path, nil, &vector.DrawPathOptions{
		AntiAlias:  true,
		ColorScale: cs,
	})
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	f := g.Frame
	st := g.Session.State()

	vector.FillRect(screen, 0, 0, 200, 220, ColorHUD, true)

	msg := "COASTER BUILDER\n"
	msg += "----------------\n"
	msg += fmt.Sprintf("Mode:   %s\n", f.Mode)
	msg += fmt.Sprintf("Points: %d\n", len(f.Points))
	if !f.Curve.Degenerate() {
		msg += fmt.Sprintf("Length: %.1fm\n", f.Curve.Length())
		if f.Curve.Closed() {
			msg += "Loop:   closed\n"
		}
	}
	if f.Riding {
		msg += fmt.Sprintf("Speed:  %.1f m/s\n", f.Speed)
		msg += fmt.Sprintf("Pos:    %.3f %s\n", f.Progress, f.Direction)
		msg += fmt.Sprintf("Bank:   %.0f deg\n", f.Pose.Bank*180/math.Pi)
		msg += fmt.Sprintf("Laps:   %d\n", f.Laps)
	} else {
		msg += fmt.Sprintf("Height: %.1fm\n", g.Session.Editor().PreviewHeight())
	}
	if f.Night {
		msg += " [Night]"
	}
	if st.Muted {
		msg += " [Muted]"
	}
	msg += "\nControls:\nSpace = Build/Ride\nN = Night  M = Mute\nDel = Remove  R = Reset"
	if g.CoasterPath != "" {
		msg += "\nL = Load  E = Export"
	}

	ebitenutil.DebugPrint(screen, msg)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return WindowWidth, WindowHeight
}

func loadConfig(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	cfg, err := config.LoadTuningConfig(config.DefaultConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		return config.EmptyTuningConfig(), nil
	}
	return cfg, err
}

func main() {
	configPath := flag.String("config", "", "tuning config JSON (default "+config.DefaultConfigPath+" when present)")
	coasterPath := flag.String("coaster", "", "coaster document to load at start, L reloads and E exports to it")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	game := &Game{
		Session:     session.New(cfg.SessionParams()),
		CoasterPath: *coasterPath,
		ViewOffsetX: WindowWidth / 2,
		ViewOffsetY: WindowHeight / 2,
	}
	if game.CoasterPath != "" {
		if err := game.loadCoaster(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Fatal(err)
		}
	}

	ebiten.SetWindowSize(WindowWidth, WindowHeight)
	ebiten.SetWindowTitle("Coaster Builder")

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
