package transactions

// transitions lists every allowed forward move. Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusGenerated: {StatusReceived, StatusTimeout, StatusCancelled},
	StatusReceived:  {StatusProcessed, StatusNonValidInvoiceNumber, StatusTimeout, StatusCancelled},
}

// IsTerminal reports whether no further transition is permitted from s.
func IsTerminal(s Status) bool {
	switch s {
	case StatusProcessed, StatusNonValidInvoiceNumber, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// IsValidTransition reports whether a writer may move a transaction from -> to.
func IsValidTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsKnown reports whether s is one of the declared statuses.
func IsKnown(s Status) bool {
	switch s {
	case StatusGenerated, StatusReceived, StatusProcessed, StatusNonValidInvoiceNumber,
		StatusTimeout, StatusCancelled, StatusNotFound:
		return true
	}
	return false
}
