package errors

// Reason is the machine-readable condition behind a rejected operation.
// Clients key UI copy off of this, never off the message text.
type Reason string

const (
	ReasonInvalidTransition    Reason = "invalid_transition"
	ReasonConsultationPending  Reason = "consultation_pending"
	ReasonAlreadyActive        Reason = "already_active"
	ReasonAlreadyPending       Reason = "already_pending"
	ReasonAlreadyUsed          Reason = "already_used"
	ReasonAlreadyResolved      Reason = "already_resolved"
	ReasonAlreadyTerminal      Reason = "already_terminal"
	ReasonAlreadyReleased      Reason = "already_released"
	ReasonInvalidAmount        Reason = "invalid_amount"
	ReasonNoOpAdjustment       Reason = "noop_adjustment"
	ReasonInvalidJustification Reason = "invalid_justification"
	ReasonInvalidState         Reason = "invalid_state"
	ReasonTopUpFailed          Reason = "top_up_failed"
	ReasonDuplicateHold        Reason = "duplicate_hold"
	ReasonNotHeld              Reason = "not_held"
	ReasonUnauthorized         Reason = "unauthorized_actor"
)

var codeByReason = map[Reason]Code{
	ReasonInvalidTransition:    CodeStateConflict,
	ReasonConsultationPending:  CodeStateConflict,
	ReasonAlreadyActive:        CodeConflict,
	ReasonAlreadyPending:       CodeConflict,
	ReasonAlreadyUsed:          CodeConflict,
	ReasonAlreadyResolved:      CodeConflict,
	ReasonAlreadyTerminal:      CodeStateConflict,
	ReasonAlreadyReleased:      CodeConflict,
	ReasonInvalidAmount:        CodeValidation,
	ReasonNoOpAdjustment:       CodeValidation,
	ReasonInvalidJustification: CodeValidation,
	ReasonInvalidState:         CodeStateConflict,
	ReasonTopUpFailed:          CodeDependency,
	ReasonDuplicateHold:        CodeConflict,
	ReasonNotHeld:              CodeStateConflict,
	ReasonUnauthorized:         CodeForbidden,
}

// NewReason builds a typed error whose HTTP code derives from the reason.
func NewReason(reason Reason, message string) *Error {
	code, ok := codeByReason[reason]
	if !ok {
		code = CodeInternal
	}
	return &Error{code: code, reason: reason, message: message}
}

// WrapReason attaches a cause to a reasoned error.
func WrapReason(reason Reason, err error, message string) *Error {
	typed := NewReason(reason, message)
	typed.cause = err
	return typed
}

// ReasonIs reports whether err carries the given reason.
func ReasonIs(err error, reason Reason) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return typed.Reason() == reason
}

// CodeIs reports whether err carries the given code.
func CodeIs(err error, code Code) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return typed.Code() == code
}
