// Package fault holds the error instances returned by the bounty ledger.
//
// Each kind of failure has its own string type so that callers can
// classify an error without matching on its text.
package fault

import "errors"

// error classes
type InvalidInputError string
type InvalidStateError string
type UnauthorizedError string
type NotFoundError string
type DuplicateError string
type TransferError string
type FeeError string

// common errors - keep in alphabetic order within a class
var (
	ErrEmptySolutionURL    = InvalidInputError("solution URL cannot be empty")
	ErrEmptyTitle          = InvalidInputError("title cannot be empty")
	ErrInvalidAddress      = InvalidInputError("invalid address")
	ErrInvalidAmount       = InvalidInputError("amount must be a non-negative integer")
	ErrInvalidSubmissionID = InvalidInputError("invalid submission ID")
	ErrPastDeadline        = InvalidInputError("deadline must be in the future")
	ErrUnknownFilter       = InvalidInputError("unknown bounty filter")
	ErrZeroAddress         = InvalidInputError("address cannot be empty")

	ErrBountyNotActive = InvalidStateError("bounty is not active")
	ErrAlreadyGenesis  = InvalidStateError("ledger is already initialised")

	ErrNotBountyCreator = UnauthorizedError("not the bounty creator")
	ErrNotOwner         = UnauthorizedError("caller is not the owner")
	ErrNotTokenOwner    = UnauthorizedError("caller is not the token owner")

	ErrBountyNotFound     = NotFoundError("bounty does not exist")
	ErrSubmissionNotFound = NotFoundError("submission does not exist")
	ErrTokenNotFound      = NotFoundError("token does not exist")

	ErrAlreadySubmitted = DuplicateError("already submitted a solution")
	ErrTokenExists      = DuplicateError("token already exists")

	ErrDepositFailed  = TransferError("token transfer failed")
	ErrPayoutFailed   = TransferError("winner payment failed")
	ErrFeeFailed      = TransferError("fee payment failed")
	ErrRefundFailed   = TransferError("refund failed")
	ErrTransferFailed = TransferError("insufficient balance or allowance")

	ErrFeeTooHigh = FeeError("fee cannot exceed 10%")
)

// the error interface methods
func (e InvalidInputError) Error() string { return string(e) }
func (e InvalidStateError) Error() string { return string(e) }
func (e UnauthorizedError) Error() string { return string(e) }
func (e NotFoundError) Error() string     { return string(e) }
func (e DuplicateError) Error() string    { return string(e) }
func (e TransferError) Error() string     { return string(e) }
func (e FeeError) Error() string          { return string(e) }

// determine the class of an error
func IsErrInvalidInput(e error) bool { var t InvalidInputError; return errors.As(e, &t) }
func IsErrInvalidState(e error) bool { var t InvalidStateError; return errors.As(e, &t) }
func IsErrUnauthorized(e error) bool { var t UnauthorizedError; return errors.As(e, &t) }
func IsErrNotFound(e error) bool     { var t NotFoundError; return errors.As(e, &t) }
func IsErrDuplicate(e error) bool    { var t DuplicateError; return errors.As(e, &t) }
func IsErrTransfer(e error) bool     { var t TransferError; return errors.As(e, &t) }
func IsErrFee(e error) bool          { var t FeeError; return errors.As(e, &t) }

// result codes reported to ABCI clients
const (
	CodeOK uint32 = iota
	CodeEncoding
	CodeInvalidInput
	CodeInvalidState
	CodeUnauthorized
	CodeNotFound
	CodeDuplicateSubmission
	CodeTransferFailed
	CodeFeeTooHigh
	CodeBadSignature
	CodeBadNonce
	CodeInternal
)

// Code maps an error to its ABCI result code; unclassified errors are
// internal.
func Code(e error) uint32 {
	switch {
	case e == nil:
		return CodeOK
	case IsErrInvalidInput(e):
		return CodeInvalidInput
	case IsErrInvalidState(e):
		return CodeInvalidState
	case IsErrUnauthorized(e):
		return CodeUnauthorized
	case IsErrNotFound(e):
		return CodeNotFound
	case IsErrDuplicate(e):
		return CodeDuplicateSubmission
	case IsErrTransfer(e):
		return CodeTransferFailed
	case IsErrFee(e):
		return CodeFeeTooHigh
	}
	return CodeInternal
}
