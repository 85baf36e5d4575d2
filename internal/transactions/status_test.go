package transactions

import "testing"

var allStatuses = []Status{
	StatusGenerated, StatusReceived, StatusProcessed, StatusNonValidInvoiceNumber,
	StatusTimeout, StatusCancelled, StatusNotFound,
}

func TestIsValidTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusGenerated, StatusReceived, true},
		{StatusGenerated, StatusTimeout, true},
		{StatusGenerated, StatusCancelled, true},
		{StatusGenerated, StatusProcessed, false},
		{StatusReceived, StatusProcessed, true},
		{StatusReceived, StatusNonValidInvoiceNumber, true},
		{StatusReceived, StatusTimeout, true},
		{StatusReceived, StatusGenerated, false},
		{StatusProcessed, StatusTimeout, false},
		{StatusTimeout, StatusProcessed, false},
		{StatusCancelled, StatusReceived, false},
		{StatusGenerated, StatusNotFound, false},
	}
	for _, c := range cases {
		if got := IsValidTransition(c.from, c.to); got != c.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, from := range allStatuses {
		if !IsTerminal(from) {
			continue
		}
		for _, to := range allStatuses {
			if IsValidTransition(from, to) {
				t.Fatalf("terminal %s must not move to %s", from, to)
			}
		}
	}
}

// No chain of allowed moves may revisit a status.
func TestTransitionsNeverCycle(t *testing.T) {
	var walk func(s Status, seen map[Status]bool)
	walk = func(s Status, seen map[Status]bool) {
		if seen[s] {
			t.Fatalf("cycle through %s", s)
		}
		seen[s] = true
		for _, next := range transitions[s] {
			walk(next, seen)
		}
		delete(seen, s)
	}
	walk(StatusGenerated, map[Status]bool{})
}

func TestNotFoundIsNeitherStoredNorTerminal(t *testing.T) {
	if IsTerminal(StatusNotFound) {
		t.Fatal("NOT_FOUND is a client-only answer, not a lifecycle state")
	}
	if !IsKnown(StatusNotFound) {
		t.Fatal("NOT_FOUND should still be a known status")
	}
	if IsKnown(Status("URL_GENERATED")) {
		t.Fatal("unexpected known status")
	}
}
