package domain

// LoginOutcome classifies the result of a single login evaluation.
type LoginOutcome int

const (
	OutcomeAllowed LoginOutcome = iota
	OutcomeBadCredentials
	OutcomeLockedOut
	OutcomeSuspended
)

// String returns a stable name for logging.
func (o LoginOutcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeBadCredentials:
		return "bad_credentials"
	case OutcomeLockedOut:
		return "locked_out"
	case OutcomeSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// User-facing rejection messages.
const (
	MsgBadCredentials = "invalid email or password"
	MsgLockedOut      = "too many login attempts, please try again later"
	MsgSuspended      = "your account is suspended, please contact an administrator"
)

// LoginResult is the per-call outcome produced by the lockout policy.
// User is non-nil only when Outcome is OutcomeAllowed.
type LoginResult struct {
	Outcome LoginOutcome
	Message string
	User    *User
}
