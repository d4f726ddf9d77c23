package reaction

import (
	"strings"
	"time"
)

// ActionKind identifies one low-level step of a reaction.
type ActionKind int

const (
	ActionPrepareDrop ActionKind = iota
	ActionMoveToTop
	ActionFadeOutBottom
	ActionDeleteBottom
	ActionSlideDown
	ActionAddToTop
	ActionWait
)

func (k ActionKind) String() string {
	switch k {
	case ActionPrepareDrop:
		return "prepare-drop"
	case ActionMoveToTop:
		return "move-to-top"
	case ActionFadeOutBottom:
		return "fade-out-bottom"
	case ActionDeleteBottom:
		return "delete-bottom"
	case ActionSlideDown:
		return "slide-down"
	case ActionAddToTop:
		return "add-to-top"
	case ActionWait:
		return "wait"
	default:
		return "unknown"
	}
}

// Action is one queued step: the types it touches, or the delay for a wait.
type Action struct {
	Kind  ActionKind
	Types []MoleculeType
	Delay time.Duration
}

func (a Action) String() string {
	if a.Kind == ActionWait {
		return a.Kind.String() + "(" + a.Delay.String() + ")"
	}
	names := make([]string, len(a.Types))
	for i, t := range a.Types {
		names[i] = string(t)
	}
	return a.Kind.String() + "(" + strings.Join(names, ",") + ")"
}

// reactionActions is the queue for adding one molecule that reacts with
// another and yields a product.
func reactionActions(adding, reactsWith, producing MoleculeType) []Action {
	return []Action{
		{Kind: ActionPrepareDrop, Types: []MoleculeType{adding}},
		{Kind: ActionMoveToTop, Types: []MoleculeType{adding}},
		{Kind: ActionFadeOutBottom, Types: []MoleculeType{reactsWith}},
		{Kind: ActionDeleteBottom, Types: []MoleculeType{reactsWith}},
		{Kind: ActionSlideDown, Types: []MoleculeType{reactsWith}},
		{Kind: ActionAddToTop, Types: []MoleculeType{producing}},
	}
}

func consumeActions(consuming MoleculeType, producing []MoleculeType) []Action {
	actions := []Action{
		{Kind: ActionFadeOutBottom, Types: []MoleculeType{consuming}},
		{Kind: ActionDeleteBottom, Types: []MoleculeType{consuming}},
		{Kind: ActionSlideDown, Types: []MoleculeType{consuming}},
	}
	if len(producing) > 0 {
		actions = append(actions, Action{Kind: ActionAddToTop, Types: producing})
	}
	return actions
}

func addActions(t MoleculeType, wait time.Duration) []Action {
	var actions []Action
	if wait > 0 {
		actions = append(actions, Action{Kind: ActionWait, Delay: wait})
	}
	return append(actions,
		Action{Kind: ActionPrepareDrop, Types: []MoleculeType{t}},
		Action{Kind: ActionMoveToTop, Types: []MoleculeType{t}},
	)
}
