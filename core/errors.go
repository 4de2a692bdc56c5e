package core

import "fmt"

// Code is a machine-readable error code for ledger failures.
type Code string

const (
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeUnsupportedDenom     Code = "UNSUPPORTED_DENOM"
	CodeDenomMismatch        Code = "DENOM_MISMATCH"
	CodeInvalidBid           Code = "INVALID_BID"
	CodeBidTooLow            Code = "BID_TOO_LOW"
	CodeAlreadyClosed        Code = "ALREADY_CLOSED"
	CodeNotYetClosed         Code = "NOT_YET_CLOSED"
	CodeBalanceInconsistency Code = "BALANCE_INCONSISTENCY"
	CodeOverflow             Code = "OVERFLOW"
	CodeAlreadyRetracted     Code = "ALREADY_RETRACTED"
	CodeInvalidAddress       Code = "INVALID_ADDRESS"
	CodeInvalidConfig        Code = "INVALID_CONFIG"
	CodeAlreadyInstantiated  Code = "ALREADY_INSTANTIATED"
	CodeNotInstantiated      Code = "NOT_INSTANTIATED"
)

// Error is a typed ledger failure. Two errors match under errors.Is when
// their codes are equal, so callers compare against the Err* sentinels.
type Error struct {
	Code    Code
	Message string
	// Threshold is set for CodeBidTooLow: the amount the bid must exceed.
	Threshold *Coin
	Cause     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrUnauthorized         = &Error{Code: CodeUnauthorized}
	ErrUnsupportedDenom     = &Error{Code: CodeUnsupportedDenom}
	ErrDenomMismatch        = &Error{Code: CodeDenomMismatch}
	ErrInvalidBid           = &Error{Code: CodeInvalidBid}
	ErrBidTooLow            = &Error{Code: CodeBidTooLow}
	ErrAlreadyClosed        = &Error{Code: CodeAlreadyClosed}
	ErrNotYetClosed         = &Error{Code: CodeNotYetClosed}
	ErrBalanceInconsistency = &Error{Code: CodeBalanceInconsistency}
	ErrOverflow             = &Error{Code: CodeOverflow}
	ErrAlreadyRetracted     = &Error{Code: CodeAlreadyRetracted}
	ErrInvalidAddress       = &Error{Code: CodeInvalidAddress}
	ErrInvalidConfig        = &Error{Code: CodeInvalidConfig}
	ErrAlreadyInstantiated  = &Error{Code: CodeAlreadyInstantiated}
	ErrNotInstantiated      = &Error{Code: CodeNotInstantiated}
)

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func bidTooLow(highest Coin) *Error {
	return &Error{
		Code:      CodeBidTooLow,
		Message:   fmt.Sprintf("bid must exceed %s", highest),
		Threshold: &highest,
	}
}

func balanceInconsistency(balance, owed Coin) *Error {
	return newError(CodeBalanceInconsistency, fmt.Sprintf("contract balance %s does not cover %s", balance, owed))
}
