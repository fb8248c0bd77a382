package models

import "time"

// FailureKind classifies why an operation did not succeed.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureTransport    FailureKind = "transport"
	FailureProtocol     FailureKind = "protocol"
	FailureUnauthorized FailureKind = "unauthorized"
	FailureRemote       FailureKind = "remote"
	FailureEmpty        FailureKind = "empty"
	FailureAnomaly      FailureKind = "anomaly"
	FailureReference    FailureKind = "reference"
	FailureStorage      FailureKind = "storage"
	FailureInvalid      FailureKind = "invalid"
)

// SyncResult reports one catalog sync attempt.
type SyncResult struct {
	Catalog string
	Success bool
	Kind    FailureKind
	Message string
	// Fetched is the number of rows in the remote snapshot.
	Fetched int
	// Stored is the local row count after the attempt.
	Stored int
	// Anomaly is set when the sync succeeded but the local count does not
	// match the snapshot.
	Anomaly  string
	Duration time.Duration
}

// SyncProgress is emitted before (Result == nil) and after each catalog.
type SyncProgress struct {
	Catalog string
	Index   int
	Total   int
	Result  *SyncResult
}

// ProgressFunc receives SyncProgress updates. It may be nil.
type ProgressFunc func(SyncProgress)

type IntegrityStatus string

const (
	IntegrityPopulated IntegrityStatus = "populated"
	IntegrityEmpty     IntegrityStatus = "empty"
	IntegrityErrored   IntegrityStatus = "errored"
)

type CatalogIntegrity struct {
	Catalog      string
	Status       IntegrityStatus
	Rows         int
	LastSyncedAt time.Time
	Error        string
}

// IntegrityReport is the result of re-counting every catalog table.
type IntegrityReport struct {
	CheckedAt time.Time
	Catalogs  []CatalogIntegrity
}

// Healthy reports whether every catalog is populated.
func (r IntegrityReport) Healthy() bool {
	for _, c := range r.Catalogs {
		if c.Status != IntegrityPopulated {
			return false
		}
	}
	return true
}

// With returns the names of catalogs in the given status.
func (r IntegrityReport) With(status IntegrityStatus) []string {
	var names []string
	for _, c := range r.Catalogs {
		if c.Status == status {
			names = append(names, c.Catalog)
		}
	}
	return names
}

// SubmissionResult reports one outbox submission.
type SubmissionResult struct {
	Kind    VoucherKind
	ID      int64
	Success bool
	// Purged is true once the local record has been removed.
	Purged  bool
	Failure FailureKind
	Message string
}

// AuthorizationResult reports an approve or reject decision sent to the
// remote system.
type AuthorizationResult struct {
	RequestID int64
	Action    string
	Success   bool
	Failure   FailureKind
	Message   string
}
