package importer

import (
	"fmt"

	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// Kind classifies how processing one uploaded object ended.
type Kind int

const (
	// Success: the invoice was committed and the transaction is PROCESSED.
	Success Kind = iota
	// Ignored: nothing to do; missing transaction, stale or duplicate notification, or a lost race.
	Ignored
	// ValidationRejected: the content was well formed but refused; the transaction is NON_VALID_INVOICE_NUMBER.
	ValidationRejected
	// Transient: an infrastructure call failed; the same notification may succeed later.
	Transient
	// Fatal: the content can never be processed.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Ignored:
		return "ignored"
	case ValidationRejected:
		return "rejected"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the tagged result of Processor.Process.
type Outcome struct {
	Kind          Kind
	TransactionID string
	// Status is the transaction status the client was last told, if any.
	Status transactions.Status
	Reason string
	Err    error
}

func (o Outcome) String() string {
	s := o.Kind.String()
	if o.Status != "" {
		s += " status=" + string(o.Status)
	}
	if o.Reason != "" {
		s += " reason=" + o.Reason
	}
	if o.Err != nil {
		s += " err=" + o.Err.Error()
	}
	return s
}

func success(txID string) Outcome {
	return Outcome{Kind: Success, TransactionID: txID, Status: transactions.StatusProcessed}
}

func ignored(txID string, status transactions.Status, reason string) Outcome {
	return Outcome{Kind: Ignored, TransactionID: txID, Status: status, Reason: reason}
}

func rejected(txID, reason string) Outcome {
	return Outcome{Kind: ValidationRejected, TransactionID: txID, Status: transactions.StatusNonValidInvoiceNumber, Reason: reason}
}

func transient(txID string, err error) Outcome {
	return Outcome{Kind: Transient, TransactionID: txID, Err: err}
}

func fatal(txID string, err error) Outcome {
	return Outcome{Kind: Fatal, TransactionID: txID, Err: err}
}
