package domain

import "strings"

// Action is an operator input identifier handed to the dispatcher.
type Action string

// The closed action vocabulary.
const (
	ActionRally              Action = "rally"
	ActionResetRally         Action = "resetRally"
	ActionFirstServeAttempt  Action = "firstServeAttempt"
	ActionSecondServeAttempt Action = "secondServeAttempt"
	ActionFirstServeIn       Action = "firstServeIn"
	ActionSecondServeIn      Action = "secondServeIn"

	ActionWonPoint       Action = "wonPoint"
	ActionWinnerForehand Action = "winnerForehand"
	ActionWinnerBackhand Action = "winnerBackhand"
	ActionWinnerAce      Action = "winnerAce"

	ActionErrorForehandLong Action = "errorForehandLong"
	ActionErrorForehandWide Action = "errorForehandWide"
	ActionErrorForehandNet  Action = "errorForehandNet"
	ActionErrorBackhandLong Action = "errorBackhandLong"
	ActionErrorBackhandWide Action = "errorBackhandWide"
	ActionErrorBackhandNet  Action = "errorBackhandNet"

	ActionDoubleFault         Action = "doubleFault"
	ActionOpponentDoubleFault Action = "opponentDoubleFault"
	ActionOpponentAce         Action = "opponentAce"
	ActionOpponentWinner      Action = "opponentWinner"
)

// KnownActions maps every action in the vocabulary to whether it concludes a point.
var KnownActions = map[Action]bool{
	ActionRally:               false,
	ActionResetRally:          false,
	ActionFirstServeAttempt:   false,
	ActionSecondServeAttempt:  false,
	ActionFirstServeIn:        false,
	ActionSecondServeIn:       false,
	ActionWonPoint:            true,
	ActionWinnerForehand:      true,
	ActionWinnerBackhand:      true,
	ActionWinnerAce:           true,
	ActionErrorForehandLong:   true,
	ActionErrorForehandWide:   true,
	ActionErrorForehandNet:    true,
	ActionErrorBackhandLong:   true,
	ActionErrorBackhandWide:   true,
	ActionErrorBackhandNet:    true,
	ActionDoubleFault:         true,
	ActionOpponentDoubleFault: true,
	ActionOpponentAce:         true,
	ActionOpponentWinner:      true,
}

// Known reports whether a is part of the vocabulary.
func (a Action) Known() bool {
	_, ok := KnownActions[a]
	return ok
}

// Scoring reports whether a concludes a point.
func (a Action) Scoring() bool {
	return KnownActions[a]
}

// ActionRequest is the JSON body of POST /api/match/actions.
type ActionRequest struct {
	Action string `json:"action"`
}

// ToAction validates the request. Unknown identifiers pass through so the
// dispatcher can ignore them; only a blank action is rejected.
func (r *ActionRequest) ToAction() (Action, error) {
	action := strings.TrimSpace(r.Action)
	if action == "" {
		return "", NewValidationError("action", "is required")
	}
	return Action(action), nil
}
