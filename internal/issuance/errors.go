package issuance

import (
	"fmt"

	"github.com/and161185/doc-issuer/internal/notify"
)

// Kind classifies a failed issuance attempt.
type Kind int

const (
	// KindValidation is a local pre-flight failure; nothing reached the network.
	KindValidation Kind = iota + 1
	// KindOwnerResolution covers a missing/invalid recipient key and encryption failures.
	KindOwnerResolution
	// KindTransaction is a signing or broadcast failure of the issue transaction.
	KindTransaction
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindOwnerResolution:
		return "owner-resolution"
	case KindTransaction:
		return "transaction"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Validation reasons.
const (
	ReasonMissingFields = "missing-fields"
	ReasonEmptyDocument = "empty-document"
)

// Error is returned by Submit for every failed attempt. The cause stays reachable
// through errors.Is/As, so an encryption failure can be told apart from a missing key.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("issuance %s (%s): %v", e.Kind, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("issuance %s: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("issuance %s: %v", e.Kind, e.Err)
	default:
		return "issuance " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// notification maps a failure to the text shown to the issuer.
func (e *Error) notification() (title, message string, sev notify.Severity) {
	switch {
	case e.Kind == KindValidation && e.Reason == ReasonEmptyDocument:
		return "Invalid document", "Document is empty, please add more fields", notify.Danger
	case e.Kind == KindValidation:
		return "Invalid data", "Please fill the neccessary fields to continue", notify.Danger
	case e.Kind == KindOwnerResolution:
		return "Invalid owner address", "Please check and correct owner address", notify.Danger
	default:
		return "Transaction failed", "Sign the transaction to issue document", notify.Danger
	}
}
