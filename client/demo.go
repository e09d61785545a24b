package client

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/camera"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/loader"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
	"github.com/Carmen-Shannon/oxy-runtime/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-runtime/engine/sprite"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// AtlasAsset is the content name the demo swaps its generated atlas for once it has loaded.
// The image is split into a left "hero" half and a right "coin" half.
const AtlasAsset = "sprites.png"

const (
	cellSize  = 32
	heroSpeed = 1.5   // world units per second
	turnSpeed = 180.0 // degrees per second
	coinSpin  = 90.0  // degrees per second
	arena     = 4.0   // half extent of the area the hero can walk in
)

var demoRegions = []sprite.Region{
	{Name: "hero", Rect: sprite.Rect{X: 0, Y: 0, W: cellSize, H: cellSize}},
	{Name: "coin", Rect: sprite.Rect{X: cellSize, Y: 0, W: cellSize, H: cellSize}},
}

// Demo is a sprite scene: a hero moved with WASD or the arrow keys, turned with Q and E, among a ring of
// spinning coins.
type Demo struct {
	reg      resource.Registry
	cam      camera.Camera
	renderer sprite.Renderer
	atlas    sprite.Atlas
	texture  resource.Handle

	hero, coin    sprite.Sprite
	pos           mgl32.Vec2
	angle         float32
	coins         []mgl32.Vec2
	cursor        mgl32.Vec2
	width, height int
}

var (
	_ scheduler.Scene    = &Demo{}
	_ scheduler.Resizer  = &Demo{}
	_ scheduler.Releaser = &Demo{}
)

// NewDemo builds the demo scene on a generated two-sprite atlas.
//
// Parameters:
//   - reg: the registry the scene's GPU resources live in
//   - width, height: the surface size the camera starts with
//
// Returns:
//   - *Demo: the scene
//   - error: an upload, shader or atlas error
func NewDemo(reg resource.Registry, width, height int) (*Demo, error) {
	d := &Demo{
		reg:    reg,
		cam:    camera.NewCamera(camera.WithSize(width, height), camera.WithZoom(0.4)),
		width:  width,
		height: height,
	}
	var err error
	if d.renderer, err = sprite.NewRenderer(reg, sprite.WithLabel("demo sprites")); err != nil {
		return nil, err
	}
	if d.texture, err = reg.UploadTexture(generateAtlas(), gpu.Extent{Width: 2 * cellSize, Height: cellSize},
		gpu.TextureFormatRGBA8UnormSrgb, resource.WithLabel("demo atlas")); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.useAtlas(d.texture); err != nil {
		d.Release()
		return nil, err
	}

	for i := range 8 {
		a := float64(i) * math.Pi / 4
		d.coins = append(d.coins, mgl32.Vec2{float32(2 * math.Cos(a)), float32(2 * math.Sin(a))})
	}
	return d, nil
}

// useAtlas replaces the current atlas with one over texture.
func (d *Demo) useAtlas(texture resource.Handle) error {
	a, err := sprite.NewAtlas(d.reg, d.renderer.Pipeline(), texture, demoRegions)
	if err != nil {
		return err
	}
	if d.atlas != nil {
		if err := d.atlas.Release(); err != nil {
			common.Logger().Warn("release atlas", zap.Error(err))
		}
	}
	d.atlas = a
	d.hero, _ = a.Sprite("hero")
	d.coin, _ = a.Sprite("coin")
	d.renderer.SetAtlas(a)
	return nil
}

// Position returns the hero position.
func (d *Demo) Position() mgl32.Vec2 {
	return d.pos
}

// Cursor returns the world-space point under the mouse cursor as of the last Update.
func (d *Demo) Cursor() mgl32.Vec2 {
	return d.cursor
}

func (d *Demo) Active() bool {
	return d.atlas != nil
}

func (d *Demo) Update(fs *scheduler.FrameState) error {
	for _, l := range fs.Loaded {
		if l.Content.Descriptor.Name != AtlasAsset || l.Content.Descriptor.Kind != loader.ContentTexture {
			continue
		}
		if err := d.useAtlas(l.Handle); err != nil {
			return fmt.Errorf("demo: %s: %w", AtlasAsset, err)
		}
	}

	dt := float32(fs.Delta.Seconds())
	var dir mgl32.Vec2
	if fs.Input.IsHeld(common.KeyW) || fs.Input.IsHeld(common.KeyUp) {
		dir[1]++
	}
	if fs.Input.IsHeld(common.KeyS) || fs.Input.IsHeld(common.KeyDown) {
		dir[1]--
	}
	if fs.Input.IsHeld(common.KeyD) || fs.Input.IsHeld(common.KeyRight) {
		dir[0]++
	}
	if fs.Input.IsHeld(common.KeyA) || fs.Input.IsHeld(common.KeyLeft) {
		dir[0]--
	}
	if dir.Len() > 0 {
		d.pos = d.pos.Add(dir.Normalize().Mul(heroSpeed * dt))
		d.pos = mgl32.Vec2{common.Clamp(d.pos.X(), -arena, arena), common.Clamp(d.pos.Y(), -arena, arena)}
	}
	if fs.Input.IsHeld(common.KeyQ) {
		d.angle -= turnSpeed * dt
	}
	if fs.Input.IsHeld(common.KeyE) {
		d.angle += turnSpeed * dt
	}

	d.cam.SetPosition(mgl32.Vec3{d.pos.X(), d.pos.Y(), d.cam.Position().Z()})
	d.cursor = d.cam.ScreenToWorld(fs.Input.CursorX, fs.Input.CursorY, d.width, d.height)
	return nil
}

func (d *Demo) Record(fs *scheduler.FrameState) error {
	if err := d.renderer.UpdateGlobals(d.cam.Uniform(), fs.Time); err != nil {
		return err
	}
	spin := float32(fs.Time.TimeSinceStartMillis) / 1000 * coinSpin
	for _, p := range d.coins {
		d.renderer.Draw(d.coin, sprite.Instance{Size: 0.5, Pos: p, Angle: spin, Tint: [3]uint8{255, 255, 255}})
	}
	d.renderer.Draw(d.hero, sprite.Instance{Size: 1, Pos: d.pos, Layer: 1, Angle: d.angle, Tint: [3]uint8{255, 255, 255}})
	return d.renderer.Flush(fs.Pass)
}

func (d *Demo) Resize(width, height int) {
	d.width, d.height = width, height
	d.cam.Resize(width, height)
}

// Release frees the atlas, renderer and generated texture. It is safe to call more than once.
func (d *Demo) Release() error {
	var errs []error
	if d.atlas != nil {
		errs = append(errs, d.atlas.Release())
		d.atlas = nil
	}
	if d.renderer != nil {
		errs = append(errs, d.renderer.Release())
		d.renderer = nil
	}
	if !d.texture.IsZero() {
		errs = append(errs, d.reg.Release(d.texture))
		d.texture = resource.Handle{}
	}
	return errors.Join(errs...)
}

// generateAtlas draws a blue square hero and a gold coin side by side as RGBA8 pixels.
func generateAtlas() []byte {
	const w = 2 * cellSize
	pixels := make([]byte, w*cellSize*4)
	set := func(x, y int, c [4]byte) {
		copy(pixels[(y*w+x)*4:], c[:])
	}
	center := float64(cellSize-1) / 2
	for y := range cellSize {
		for x := range cellSize {
			if x > 2 && x < cellSize-3 && y > 2 && y < cellSize-3 {
				set(x, y, [4]byte{60, 110, 230, 255})
			}
			if math.Hypot(float64(x)-center, float64(y)-center) < center-2 {
				set(cellSize+x, y, [4]byte{240, 190, 40, 255})
			}
		}
	}
	return pixels
}
