package session

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/comigor/chatsession/internal/logger"
)

// FSM States
type FSMState stateless.State

var (
	StateIdle          FSMState = "Idle"
	StateAwaitingReply FSMState = "AwaitingReply" // a user message is pending
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerSubmit        FSMTrigger = "Submit"
	TriggerReplyReceived FSMTrigger = "ReplyReceived"
	TriggerRequestFailed FSMTrigger = "RequestFailed"
	TriggerCancel        FSMTrigger = "Cancel" // user cancel, or a cancelled outcome from the client
)

// newMachine builds the turn lifecycle:
//
//	Idle --Submit--> AwaitingReply
//	AwaitingReply --ReplyReceived|RequestFailed|Cancel--> Idle
//
// Submit is not permitted while AwaitingReply, which is how a second
// submission is refused.
func newMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateIdle)

	fsm.Configure(StateIdle).
		Permit(TriggerSubmit, StateAwaitingReply)

	fsm.Configure(StateAwaitingReply).
		Permit(TriggerReplyReceived, StateIdle).
		Permit(TriggerRequestFailed, StateIdle).
		Permit(TriggerCancel, StateIdle)

	fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.L.Debug("FSM transition", "trigger", t.Trigger, "from", t.Source, "to", t.Destination)
	})

	return fsm
}
