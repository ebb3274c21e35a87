package dupscan

import "fmt"

// InvalidInputError reports that the caller passed illegal options or
// roots; no scan starts.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Reason }

// ScanFailureError reports a non-recoverable runtime failure, such as
// being unable to resolve any root.
type ScanFailureError struct {
	Reason string
	Err    error
}

func (e *ScanFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan failure: %s: %v", e.Reason, e.Err)
	}
	return "scan failure: " + e.Reason
}

func (e *ScanFailureError) Unwrap() error { return e.Err }

// CancelledError reports that the scan was aborted by a caller-provided
// cancel signal. No partial report is produced.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "scan cancelled" }

// IncompleteScanError is returned by the strict-completeness policy when a
// caller opts into strict mode and at least one fatal skip counter fired.
type IncompleteScanError struct {
	Stats Snapshot
}

func (e *IncompleteScanError) Error() string {
	return fmt.Sprintf("scan incomplete: %s", e.Stats.Summary())
}
