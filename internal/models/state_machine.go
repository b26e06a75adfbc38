// Package models provides data structures and state management for option trades.
package models

import (
	"fmt"
	"time"
)

// TradeState represents the lifecycle state of a recommended trade
type TradeState string

const (
	StateRecommended TradeState = "recommended" // Produced by the scanner, awaiting a decision
	StateSimulated   TradeState = "simulated"   // Approved and filled in dry-run mode
	StateRejected    TradeState = "rejected"    // Declined by the risk gate or the operator
	StateExpired     TradeState = "expired"     // Expiry passed
	StateClosed      TradeState = "closed"      // Closed before expiry
)

// IsTerminal reports whether no transitions leave the state.
func (s TradeState) IsTerminal() bool {
	return s == StateRejected || s == StateExpired || s == StateClosed
}

// StateTransition defines valid state transitions
type StateTransition struct {
	From        TradeState
	To          TradeState
	Condition   string
	Description string
}

// ValidTransitions is the complete trade lifecycle.
var ValidTransitions = []StateTransition{
	{StateRecommended, StateSimulated, "dry_run_approved", "Approved and simulated"},
	{StateRecommended, StateRejected, "risk_gate", "Failed the pre-trade risk gate"},
	{StateRecommended, StateRejected, "declined", "Declined by the operator"},
	{StateRecommended, StateExpired, "expired_unexecuted", "Expired without a decision"},
	{StateSimulated, StateExpired, "expiration", "Held through expiry"},
	{StateSimulated, StateClosed, "manual_close", "Closed before expiry"},
}

// StateMachine manages trade state transitions
type StateMachine struct {
	transitionTime  time.Time
	transitionCount map[TradeState]int
	currentState    TradeState
	previousState   TradeState
}

// NewStateMachine creates a new state machine
func NewStateMachine() *StateMachine {
	return NewStateMachineFromState(StateRecommended)
}

// NewStateMachineFromState rebuilds a machine for a persisted state; empty means recommended.
func NewStateMachineFromState(state TradeState) *StateMachine {
	if state == "" {
		state = StateRecommended
	}
	return &StateMachine{
		currentState:    state,
		previousState:   state,
		transitionTime:  time.Now().UTC(),
		transitionCount: make(map[TradeState]int),
	}
}

// GetCurrentState returns the current state
func (sm *StateMachine) GetCurrentState() TradeState {
	return sm.currentState
}

// GetPreviousState returns the previous state
func (sm *StateMachine) GetPreviousState() TradeState {
	return sm.previousState
}

// IsValidTransition checks if a transition is valid
func (sm *StateMachine) IsValidTransition(to TradeState, condition string) error {
	for _, transition := range ValidTransitions {
		if transition.From == sm.currentState && transition.To == to &&
			conditionMatches(transition.Condition, condition) {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s with condition '%s'",
		sm.currentState, to, condition)
}

// conditionMatches checks if the condition requirements are satisfied
func conditionMatches(transitionCondition, providedCondition string) bool {
	if transitionCondition == "" {
		return true
	}
	return providedCondition == transitionCondition
}

// Transition moves to a new state
func (sm *StateMachine) Transition(to TradeState, condition string) error {
	if err := sm.IsValidTransition(to, condition); err != nil {
		return err
	}
	sm.previousState = sm.currentState
	sm.currentState = to
	sm.transitionTime = time.Now().UTC()
	sm.transitionCount[to]++
	return nil
}

// GetTransitionCount returns how many times we've been in a state
func (sm *StateMachine) GetTransitionCount(state TradeState) int {
	return sm.transitionCount[state]
}

// GetStateDescription returns a human-readable description of the current state
func (sm *StateMachine) GetStateDescription() string {
	switch sm.currentState {
	case StateRecommended:
		return "Recommended, waiting for approval"
	case StateSimulated:
		return "Simulated fill, tracking to expiry"
	case StateRejected:
		return "Rejected before execution"
	case StateExpired:
		return "Expired"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown state"
	}
}
