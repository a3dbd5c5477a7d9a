// Package domain holds value types shared across bounded contexts.
package domain

import (
	"strings"

	dErrors "authguard/pkg/domain-errors"
)

// Action is the authentication operation a client is attempting.
type Action string

const (
	ActionLogin    Action = "login"
	ActionRegister Action = "register"
)

// Actions lists every supported action.
func Actions() []Action {
	return []Action{ActionLogin, ActionRegister}
}

// ParseAction validates s. The action is never defaulted: an empty or unknown value
// is a validation error.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.TrimSpace(s)); a {
	case ActionLogin, ActionRegister:
		return a, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "action is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "action must be one of: login, register")
	}
}

func (a Action) String() string { return string(a) }
