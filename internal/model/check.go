package model

import "fmt"

// CheckName identifies one analysis check within a scan.
type CheckName string

const (
	CheckTLS           CheckName = "tls"
	CheckHeaders       CheckName = "headers"
	CheckDNS           CheckName = "dns"
	CheckPerformance   CheckName = "performance"
	CheckSEO           CheckName = "seo"
	CheckAccessibility CheckName = "accessibility"
)

// AllChecks returns the full, ordered set of checks the system knows about.
// Every scan context carries an execution entry for each of these, whether or
// not the caller's plan allows them.
func AllChecks() []CheckName {
	return []CheckName{
		CheckTLS,
		CheckHeaders,
		CheckDNS,
		CheckPerformance,
		CheckSEO,
		CheckAccessibility,
	}
}

// ParseCheckName validates a user-supplied check name.
func ParseCheckName(s string) (CheckName, error) {
	for _, name := range AllChecks() {
		if string(name) == s {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: unknown check %q", ErrInvalidInput, s)
}

// CheckStatus is the lifecycle state of a single check execution.
type CheckStatus string

const (
	CheckPending CheckStatus = "pending"
	CheckRunning CheckStatus = "running"
	CheckSuccess CheckStatus = "success"
	CheckFailed  CheckStatus = "failed"
)

// ScanStatus is the lifecycle state of a whole scan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanPartial   ScanStatus = "partial"
	ScanFailed    ScanStatus = "failed"
)

// Terminal reports whether no further automatic transition can occur.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanPartial || s == ScanFailed
}
