// Package gate derives what the local player may do from session state.
// Everything here is a pure function of its input.
package gate

import (
	"errors"

	"github.com/mcoot/tablesync/internal/model"
)

// Action names a player intent that can be gated
type Action string

const (
	ActionRoll     Action = "roll"
	ActionSelect   Action = "select"
	ActionMove     Action = "move"
	ActionBearOff  Action = "bear_off"
	ActionEndTurn  Action = "end_turn"
	ActionFold     Action = "fold"
	ActionCall     Action = "call"
	ActionRaise    Action = "raise"
	ActionAllIn    Action = "all_in"
	ActionShowdown Action = "showdown"
)

// TableTerms are the betting inputs of a table game
type TableTerms struct {
	MyBalance       model.Amount
	CurrentBet      model.Amount
	CanCall         bool
	CanShowdownCall bool
	CallAmount      model.Amount
	MinRaise        model.Amount
	MaxRaise        model.Amount
}

// Input is everything eligibility depends on
type Input struct {
	Me              model.Username
	Confirmed       bool
	TurnOwner       model.Username
	TurnActionTaken bool
	Connected       bool
	InProgress      bool
	Table           *TableTerms
}

// Eligibility is the derived set of permitted actions
type Eligibility struct {
	CanAct                  bool `json:"can_act"`
	CanPerformPrimaryAction bool `json:"can_perform_primary_action"`
	CanMove                 bool `json:"can_move"`

	CanFold             bool `json:"can_fold"`
	CanCall             bool `json:"can_call"`
	CanRaise            bool `json:"can_raise"`
	CanAllIn            bool `json:"can_all_in"`
	CanFinalizeShowdown bool `json:"can_finalize_showdown"`

	// Blocked is why CanAct is false, nil when it is true
	Blocked error `json:"-"`
}

// Evaluate derives eligibility. It fails closed: an unconfirmed identity
// or an unknown turn owner never yields CanAct.
func Evaluate(in Input) Eligibility {
	var e Eligibility

	e.Blocked = blocked(in)
	e.CanAct = e.Blocked == nil
	e.CanPerformPrimaryAction = e.CanAct && !in.TurnActionTaken
	e.CanMove = e.CanAct && in.TurnActionTaken

	if t := in.Table; t != nil {
		e.CanFold = e.CanAct
		e.CanCall = e.CanAct && t.CanCall
		e.CanRaise = e.CanAct && (t.CanCall || t.CurrentBet == 0)
		e.CanAllIn = e.CanAct && t.MyBalance < t.CurrentBet
		// finalizing a showdown is not a turn action; the server decides
		e.CanFinalizeShowdown = seated(e) && t.CurrentBet != 0 && t.CanShowdownCall
	}
	return e
}

// seated reports whether the only thing keeping the player from acting
// is the turn
func seated(e Eligibility) bool {
	return e.CanAct || errors.Is(e.Blocked, model.ErrNotYourTurn)
}

func blocked(in Input) error {
	switch {
	case !in.Connected:
		return model.ErrNotConnected
	case !in.Confirmed || in.Me == "":
		return model.ErrIdentityUnconfirmed
	case !in.InProgress:
		return model.ErrGameNotInProgress
	case in.TurnOwner == "" || in.TurnOwner != in.Me:
		return model.ErrNotYourTurn
	}
	return nil
}

// Check re-validates an action before it is dispatched
func Check(action Action, e Eligibility) error {
	op := string(action)
	if action == ActionShowdown {
		if !seated(e) {
			return model.Precondition(op, e.Blocked)
		}
		if !e.CanFinalizeShowdown {
			return model.Precondition(op, model.ErrActionNotAllowed)
		}
		return nil
	}
	if !e.CanAct {
		return model.Precondition(op, e.Blocked)
	}

	switch action {
	case ActionRoll:
		if !e.CanPerformPrimaryAction {
			return model.Precondition(op, model.ErrAlreadyRolled)
		}
	case ActionSelect, ActionMove, ActionBearOff:
		if !e.CanMove {
			return model.Precondition(op, model.ErrRollFirst)
		}
	case ActionFold, ActionEndTurn:
	case ActionCall:
		if !e.CanCall {
			return model.Precondition(op, model.ErrActionNotAllowed)
		}
	case ActionRaise:
		if !e.CanRaise {
			return model.Precondition(op, model.ErrActionNotAllowed)
		}
	case ActionAllIn:
		if !e.CanAllIn {
			return model.Precondition(op, model.ErrActionNotAllowed)
		}
	default:
		return model.Precondition(op, model.ErrActionNotAllowed)
	}
	return nil
}
