package models

// FailureKind classifies a recovered failure. Every kind maps to a fixed
// user-safe string; the kind itself is only surfaced to logs and metrics.
type FailureKind string

const (
	FailureNone                 FailureKind = ""
	FailureInvalidInput         FailureKind = "invalid_input"
	FailureRateLimited          FailureKind = "rate_limited"
	FailureRetrievalUnavailable FailureKind = "retrieval_unavailable"
	FailureGenerationFailure    FailureKind = "generation_failure"
	FailureFallbackUnavailable  FailureKind = "fallback_unavailable"
)

// Result is the total outcome of one Answer call. Answer is always a
// user-safe string; Kind is FailureNone on success. No error escapes the
// orchestrator, so canned-response selection is a function of this value.
type Result struct {
	Answer string      `json:"answer"`
	Intent Intent      `json:"-"`
	Kind   FailureKind `json:"failure_kind,omitempty"`
	// Sources lists the document names the answer was grounded on.
	Sources []string `json:"sources,omitempty"`
}

// Failed reports whether the result carries a recovered failure.
func (r Result) Failed() bool { return r.Kind != FailureNone }
