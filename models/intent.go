package models

// Intent is the closed set of conversational intents recognized before
// retrieval is attempted.
type Intent int

const (
	IntentGeneric Intent = iota
	IntentFactualQuestion
	IntentFarewell
	IntentDecline
	IntentAffirmative
	IntentGreeting
	IntentGratitude
)

// String returns the intent name used in logs and metrics labels.
func (i Intent) String() string {
	switch i {
	case IntentGeneric:
		return "generic"
	case IntentFactualQuestion:
		return "factual_question"
	case IntentFarewell:
		return "farewell"
	case IntentDecline:
		return "decline"
	case IntentAffirmative:
		return "affirmative"
	case IntentGreeting:
		return "greeting"
	case IntentGratitude:
		return "gratitude"
	default:
		return "unknown"
	}
}

// AllIntents enumerates every intent, used to verify response tables
// are exhaustive at startup.
func AllIntents() []Intent {
	return []Intent{
		IntentGeneric,
		IntentFactualQuestion,
		IntentFarewell,
		IntentDecline,
		IntentAffirmative,
		IntentGreeting,
		IntentGratitude,
	}
}

// NeedsRetrieval reports whether the intent falls through to the
// retrieval-augmented generation path instead of a canned reply.
func (i Intent) NeedsRetrieval() bool {
	return i == IntentGeneric || i == IntentFactualQuestion
}
