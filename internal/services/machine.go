package services

import "github.com/Ananth-NQI/eatcaterly-backend/internal/models"

// action is the effect the ordering service runs for a (state, intent) pair.
type action int

const (
	actPromptStart     action = iota // reply "text MENU to order"
	actShowMenu                      // resolve today's menu and (re)start the session
	actSelect                        // validate numbers against the snapshot
	actPromptSelection               // re-explain how to pick items
	actConfirm                       // finalize the order
	actCancel                        // drop the session
	actPromptConfirm                 // re-explain CONFIRM / MENU / CANCEL
	actHelp                          // list commands, state unchanged
)

func (a action) String() string {
	return [...]string{
		"prompt_start", "show_menu", "select", "prompt_selection",
		"confirm", "cancel", "prompt_confirm", "help",
	}[a]
}

// decide is the conversation transition table. It is total over every
// state and intent and never touches storage.
func decide(state models.SessionState, intent IntentKind) action {
	if intent == IntentHelp {
		return actHelp
	}

	switch state {
	case models.StateAwaitingSelection:
		switch intent {
		case IntentShowMenu:
			return actShowMenu
		case IntentNumericSelection:
			return actSelect
		case IntentCancel:
			return actCancel
		default:
			return actPromptSelection
		}

	case models.StateConfirmingOrder:
		switch intent {
		case IntentConfirm:
			return actConfirm
		case IntentShowMenu:
			// Silently discards the pending selection and shows a fresh menu.
			return actShowMenu
		case IntentCancel:
			return actCancel
		default:
			return actPromptConfirm
		}

	default:
		if intent == IntentShowMenu {
			return actShowMenu
		}
		return actPromptStart
	}
}
