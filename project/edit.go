package project

import (
	"log/slog"

	"github.com/joshuapare/romkit/config"
	"github.com/joshuapare/romkit/rom"
	"github.com/joshuapare/romkit/rom/dirty"
	"github.com/joshuapare/romkit/rom/freespace"
)

// ActionKind is a structural change queued on an edit for ApplyActions.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionMoveTo
	ActionDelete
	ActionUpdate
)

func (k ActionKind) String() string {
	switch k {
	case ActionMoveTo:
		return "move"
	case ActionDelete:
		return "delete"
	case ActionUpdate:
		return "update"
	default:
		return "none"
	}
}

// Action is a pending change. Index is the destination of ActionMoveTo.
type Action struct {
	Kind  ActionKind
	Index int
}

// Pending actions.
var (
	NoAction     = Action{}
	DeleteAction = Action{Kind: ActionDelete}
	UpdateAction = Action{Kind: ActionUpdate}
)

// MoveTo returns an action moving an edit to index.
func MoveTo(index int) Action {
	return Action{Kind: ActionMoveTo, Index: index}
}

// Edit is one commit: metadata, the payload and the state the payload
// produced. The buffer and allocator are owned exclusively by the edit.
type Edit struct {
	meta    Metadata
	payload Payload
	rom     *rom.Buffer
	memory  *freespace.FreeSpace
	config  config.Config
	action  Action
	logger  *slog.Logger
}

// Meta returns the commit metadata.
func (e *Edit) Meta() Metadata { return e.meta }

// SetLabel replaces the commit label.
func (e *Edit) SetLabel(label string) { e.meta.Label = label }

// SetComment replaces the commit comment.
func (e *Edit) SetComment(comment string) { e.meta.Comment = comment }

// Payload returns the structured edit.
func (e *Edit) Payload() Payload { return e.payload }

// ROM returns the buffer this commit produced. During Pack it is the buffer
// being written.
func (e *Edit) ROM() *rom.Buffer { return e.rom }

// SetROM replaces the buffer. Root payloads use it to install the image
// they load.
func (e *Edit) SetROM(b *rom.Buffer) { e.rom = b }

// Memory returns the free-space allocator.
func (e *Edit) Memory() *freespace.FreeSpace { return e.memory }

// Config returns the configuration the commit is packed with.
func (e *Edit) Config() config.Config { return e.config }

// Logger returns the project logger.
func (e *Edit) Logger() *slog.Logger { return e.logger }

// Action returns the pending structural change.
func (e *Edit) Action() Action { return e.action }

// SetAction queues a structural change applied by Project.ApplyActions.
func (e *Edit) SetAction(a Action) { e.action = a }

// Changes returns the file ranges this commit wrote.
func (e *Edit) Changes() []dirty.Range { return e.rom.Dirty() }

// Unpack refreshes the payload from the commit's buffer.
func (e *Edit) Unpack() error { return e.payload.Unpack(e) }

// Export writes the commit's image to path.
func (e *Edit) Export(path string) error { return e.rom.Save(path) }
