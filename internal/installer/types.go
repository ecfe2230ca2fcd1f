package installer

import (
	"time"
)

// State is how far an install has progressed.
type State int

const (
	// StatePending means nothing has happened yet.
	StatePending State = iota
	// StateFetched means the artifact is staged in the cache.
	StateFetched
	// StateVerified means the staged bytes passed every integrity check.
	StateVerified
	// StatePlaced means the executable is at its final path.
	StatePlaced
	// StateChecked means the post-install smoke test passed.
	StateChecked
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetched:
		return "fetched"
	case StateVerified:
		return "verified"
	case StatePlaced:
		return "placed"
	case StateChecked:
		return "checked"
	default:
		return "unknown"
	}
}

// Step names the operation an install failed in.
type Step string

const (
	StepNone    Step = ""
	StepFetch   Step = "fetch"
	StepVerify  Step = "verify"
	StepExtract Step = "extract"
	StepPlace   Step = "place"
	StepCheck   Step = "check"
)

// VerificationMethod indicates how an artifact was verified
type VerificationMethod int

const (
	// VerificationNone indicates no verification (should never happen in production)
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 indicates the declared checksum matched
	VerificationSHA256
	// VerificationGPG indicates an OpenPGP detached signature was verified
	VerificationGPG
	// VerificationSigstore indicates a sigstore bundle was verified
	VerificationSigstore
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationSHA256:
		return "sha256"
	case VerificationGPG:
		return "gpg"
	case VerificationSigstore:
		return "sigstore"
	case VerificationNone:
		return "none"
	default:
		return "unknown"
	}
}

// Result describes one install attempt.
type Result struct {
	Name    string
	Version string
	URL     string
	// Path is the final location of the executable.
	Path string
	// SHA256 is the verified digest of the fetched artifact.
	SHA256 string

	State    State
	FailedAt Step

	// Verified is true once every integrity check passed.
	Verified     bool
	Verification []VerificationMethod
	// Checked is true when the post-install smoke test passed.
	Checked     bool
	CheckOutput string

	// CacheHit is set when a verified artifact was reused from the cache.
	CacheHit bool
	// Replaced is set when an existing binary was swapped out.
	Replaced    bool
	ReceiptPath string
	Duration    time.Duration
}

// advance moves the result forward; states never move back.
func (r *Result) advance(to State) {
	if to > r.State {
		r.State = to
	}
}

// fail records the step an install stopped at.
func (r *Result) fail(step Step) {
	if r.FailedAt == StepNone {
		r.FailedAt = step
	}
}

// Failed reports whether the install stopped before placement.
func (r *Result) Failed() bool {
	return r.FailedAt != StepNone && r.FailedAt != StepCheck
}
