// Package compliance interprets carrier-mandated keywords (opt-out, opt-in, help).
// It is deterministic and does no I/O; callers act on the returned Decision before
// any AI stage runs.
package compliance

import "strings"

type Action string

const (
	ActionNone   Action = "none"
	ActionOptOut Action = "opt_out"
	ActionOptIn  Action = "opt_in"
	ActionHelp   Action = "help"
)

const (
	OptOutReply = "You have been unsubscribed and will receive no further messages. Reply START to resubscribe."
	OptInReply  = "You have been resubscribed. Reply STOP to unsubscribe or HELP for help."
	HelpReply   = "Reply STOP to unsubscribe. Msg & data rates may apply. For assistance contact us directly."
)

var keywords = map[string]Action{
	"STOP":        ActionOptOut,
	"STOPALL":     ActionOptOut,
	"UNSUBSCRIBE": ActionOptOut,
	"CANCEL":      ActionOptOut,
	"END":         ActionOptOut,
	"QUIT":        ActionOptOut,
	"OPTOUT":      ActionOptOut,
	"REVOKE":      ActionOptOut,

	"START":     ActionOptIn,
	"SUBSCRIBE": ActionOptIn,
	"YES":       ActionOptIn,

	"HELP": ActionHelp,
	"INFO": ActionHelp,
}

// Decision is the interpreter's verdict for one message body.
type Decision struct {
	Action  Action
	Keyword string
	// Reply is the fixed confirmation text; empty for ActionNone.
	Reply string
}

// Matched reports whether the body was a compliance keyword.
func (d Decision) Matched() bool { return d.Action != ActionNone }

// Interpret matches the whole trimmed body, case-insensitively, against the keyword sets.
// "stop please" is not a keyword.
func Interpret(body string) Decision {
	kw := strings.ToUpper(strings.TrimSpace(body))
	switch keywords[kw] {
	case ActionOptOut:
		return Decision{Action: ActionOptOut, Keyword: kw, Reply: OptOutReply}
	case ActionOptIn:
		return Decision{Action: ActionOptIn, Keyword: kw, Reply: OptInReply}
	case ActionHelp:
		return Decision{Action: ActionHelp, Keyword: kw, Reply: HelpReply}
	default:
		return Decision{Action: ActionNone}
	}
}
