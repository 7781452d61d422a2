package domain

// Outcome is the result of executing a ScheduledEvent.
// Success carries a signature and explorer link; failure carries a reason.
type Outcome struct {
	Success     bool   `json:"success"`
	Signature   string `json:"signature,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Succeeded builds a successful outcome.
func Succeeded(signature, explorerURL string) Outcome {
	return Outcome{Success: true, Signature: signature, ExplorerURL: explorerURL}
}

// Failed builds a failed outcome.
func Failed(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Status maps the outcome to the terminal event status it produces.
func (o Outcome) Status() EventStatus {
	if o.Success {
		return StatusExecuted
	}
	return StatusFailed
}
