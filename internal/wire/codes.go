package wire

// Business rejections the orchestrator must never retry. Anything outside
// this list is treated as transient and retried within the attempt budget.
const (
	CodeInvalidAmount      = "InvalidAmount"
	CodeInsufficientFunds  = "InsufficientBalance"
	CodeInvalidSymbol      = "InvalidSymbol"
	CodeInvalidProposal    = "InvalidContractProposal"
	CodeProposalExpired    = "ProposalExpired"
	CodeInvalidToken       = "InvalidToken"
	CodeAuthorizationError = "AuthorizationRequired"
)

var nonRetryable = map[string]struct{}{
	CodeInvalidAmount:      {},
	CodeInsufficientFunds:  {},
	CodeInvalidSymbol:      {},
	CodeInvalidProposal:    {},
	CodeProposalExpired:    {},
	CodeInvalidToken:       {},
	CodeAuthorizationError: {},
}

// IsNonRetryable reports whether an error code is a terminal business
// rejection.
func IsNonRetryable(code string) bool {
	_, ok := nonRetryable[code]
	return ok
}

// Err adapts an ErrorInfo into a Go error.
type Err struct {
	Code    string
	Message string
}

func (e *Err) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Retryable reports whether the rejection may be retried.
func (e *Err) Retryable() bool {
	return !IsNonRetryable(e.Code)
}

// AsError converts a wire error envelope, returning nil for no error.
func (i *ErrorInfo) AsError() error {
	if i == nil {
		return nil
	}
	return &Err{Code: i.Code, Message: i.Message}
}
