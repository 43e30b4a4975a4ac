package tracker

import (
	"github.com/zeusync/ardice/internal/core/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

// CommandKind names a render command. The values double as wire frame types.
type CommandKind string

const (
	CommandDrawSurface   CommandKind = "surface.draw"
	CommandRemoveSurface CommandKind = "surface.remove"
	CommandSpawnObject   CommandKind = "object.spawn"
	CommandRotateObject  CommandKind = "object.rotate"
	CommandRemoveObject  CommandKind = "object.remove"
)

// Command is an instruction for the external renderer. The tracker never waits
// for a command to be carried out.
type Command interface {
	Kind() CommandKind
}

var (
	_ Command = SurfaceGridCommand{}
	_ Command = RemoveSurfaceGridCommand{}
	_ Command = SpawnCommand{}
	_ Command = RotateCommand{}
	_ Command = RemoveObjectCommand{}
)

// SurfaceGridCommand draws or updates the visual grid of a surface.
type SurfaceGridCommand struct {
	AnchorID  string
	Center    spatial.Vec2
	Extent    spatial.Extent
	Transform spatial.Transform
}

func (SurfaceGridCommand) Kind() CommandKind { return CommandDrawSurface }

type RemoveSurfaceGridCommand struct {
	AnchorID string
}

func (RemoveSurfaceGridCommand) Kind() CommandKind { return CommandRemoveSurface }

// SpawnCommand asks the renderer to instantiate a die model at Position.
type SpawnCommand struct {
	ObjectID string
	Position r3.Vec
}

func (SpawnCommand) Kind() CommandKind { return CommandSpawnObject }

// RotateCommand tumbles one die about the x and z axes only.
type RotateCommand struct {
	ObjectID string
	Roll
}

func (RotateCommand) Kind() CommandKind { return CommandRotateObject }

type RemoveObjectCommand struct {
	ObjectID string
}

func (RemoveObjectCommand) Kind() CommandKind { return CommandRemoveObject }
