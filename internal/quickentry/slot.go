package quickentry

import "shopledger/internal/core"

type SlotKind int

const (
	SlotNone SlotKind = iota
	SlotUndoable
	SlotRedoable
)

func (k SlotKind) String() string {
	switch k {
	case SlotUndoable:
		return "undoable"
	case SlotRedoable:
		return "redoable"
	}
	return "none"
}

// Slot is the one remembered action. Draft is set for Undoable and Redoable;
// ID only for Undoable, where it names the committed record.
type Slot struct {
	Kind  SlotKind
	Draft core.Draft
	ID    string
}

func undoable(d core.Draft, id string) Slot {
	return Slot{Kind: SlotUndoable, Draft: d, ID: id}
}

func redoable(d core.Draft) Slot {
	return Slot{Kind: SlotRedoable, Draft: d}
}
