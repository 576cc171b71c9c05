// Package input turns SDL2 events into viewer actions.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// Action is a viewer command.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionResize
	ActionTogglePause
	ActionNextClip
	ActionStepBack
	ActionStepForward
	ActionToggleLoop
	ActionRestart
	ActionOrbit
	ActionZoom
	ActionScreenshot
)

// Event is one action with its payload.
type Event struct {
	Action Action
	Width  int
	Height int
	// Orbit drag in pixels, or zoom wheel steps in DY.
	DX, DY float32
}

var keys = map[sdl.Scancode]Action{
	sdl.SCANCODE_ESCAPE: ActionQuit,
	sdl.SCANCODE_Q:      ActionQuit,
	sdl.SCANCODE_SPACE:  ActionTogglePause,
	sdl.SCANCODE_N:      ActionNextClip,
	sdl.SCANCODE_TAB:    ActionNextClip,
	sdl.SCANCODE_LEFT:   ActionStepBack,
	sdl.SCANCODE_RIGHT:  ActionStepForward,
	sdl.SCANCODE_L:      ActionToggleLoop,
	sdl.SCANCODE_R:      ActionRestart,
	sdl.SCANCODE_F12:    ActionScreenshot,
}

// Input collects the actions of one frame.
type Input struct {
	events []Event
}

// New creates an input handler.
func New() *Input {
	return &Input{events: make([]Event, 0, 16)}
}

// Update polls pending SDL events. It returns true once the viewer should
// quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Action: ActionQuit})
			quit = true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{
					Action: ActionResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.MouseMotionEvent:
			if e.State&(1<<(sdl.BUTTON_LEFT-1)) != 0 {
				i.events = append(i.events, Event{Action: ActionOrbit, DX: float32(e.XRel), DY: float32(e.YRel)})
			}

		case *sdl.MouseWheelEvent:
			i.events = append(i.events, Event{Action: ActionZoom, DY: float32(e.Y)})

		case *sdl.KeyboardEvent:
			if e.Type != sdl.KEYDOWN {
				continue
			}
			if a, ok := keys[e.Keysym.Scancode]; ok {
				i.events = append(i.events, Event{Action: a})
				quit = quit || a == ActionQuit
			}
		}
	}
	return quit
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}
