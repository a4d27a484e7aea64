package processor

import "fmt"

// BadSender is returned when fromWalletAddr is not a well-formed ledger
// address.
type BadSender struct {
	Addr string
}

func (e *BadSender) Error() string { return fmt.Sprintf("bad sender address %q", e.Addr) }

// Unsigned is returned when an inbound envelope carries no signature.
type Unsigned struct{}

func (e *Unsigned) Error() string { return "envelope is unsigned" }

// BadSignature is returned when the attached signature fails verification
// against fromWalletAddr.
type BadSignature struct{}

func (e *BadSignature) Error() string { return "signature verification failed" }

// UnknownRole is returned when role is not one of the closed set.
type UnknownRole struct {
	Role string
}

func (e *UnknownRole) Error() string { return fmt.Sprintf("unknown role %q", e.Role) }

// Underfunded is returned when contract-signed's verifyQuoteFunded
// reports less than the quoted total.
type Underfunded struct {
	SessionID string
	Funded    int64
	Required  int64
}

func (e *Underfunded) Error() string {
	return fmt.Sprintf("session %s underfunded: have %d, need %d", e.SessionID, e.Funded, e.Required)
}
