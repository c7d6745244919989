package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PassesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pass_server_passes_issued_total",
		Help: "Participant passes issued, by trigger.",
	}, []string{"trigger"}) // issue, refresh, bulk

	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pass_server_redemptions_total",
		Help: "Redemption attempts, by outcome.",
	}, []string{"outcome"}) // success, duplicate, unknown_credential, owner_not_found, not_registered, error

	ScansSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pass_server_scans_suppressed_total",
		Help: "Scanner decodes dropped by the duplicate-scan window.",
	})

	PassEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pass_server_pass_emails_total",
		Help: "Pass emails handed to the mailer, by result.",
	}, []string{"result"}) // sent, failed, disabled
)

// Redemption outcome label values.
const (
	OutcomeSuccess           = "success"
	OutcomeDuplicate         = "duplicate"
	OutcomeUnknownCredential = "unknown_credential"
	OutcomeOwnerNotFound     = "owner_not_found"
	OutcomeNotRegistered     = "not_registered"
	OutcomeError             = "error"
)
