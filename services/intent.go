package services

import (
	"fmt"
	"math/rand"
	"strings"

	"knowledge-assistant/models"
)

// Canned responses. ResponseWelcome opens a CLI session; the rest map
// one-to-one to short-circuit intents or failure kinds.
const (
	ResponseWelcome      = "Hi! Instant answer ready—ask me anything!"
	ResponseUnknown      = "I don't know."
	ResponseFarewell     = "Bye! Come back any time."
	ResponseError        = "Error occurred—please try again."
	ResponseInvalidInput = "Please send a short, plain-text question."
	ResponseRateLimited  = "You're asking very fast! Give it a minute and try again."
	ResponseDecline      = "No problem. I'm here if you need anything."
	ResponseGratitude    = "You're welcome!"
	ResponseAffirmative  = "Great! What would you like to know?"
)

var greetingResponses = []string{
	"Greetings, what can I fetch?",
	"Hello! What can I help you find?",
	"Hey there! Ask away.",
}

var (
	interrogatives = []string{"who", "what", "where", "when", "why", "how"}

	farewellSet    = newStringSet("bye", "goodbye", "see ya", "later", "q", "quit", "exit")
	declineSet     = newStringSet("no", "nah", "nope", "stop")
	affirmativeSet = newStringSet("yes", "yep", "sure", "ok", "okay", "please")

	gratitudeTokens = []string{"thanks", "thank you", "thx", "thank u", "ty"}
	greetingTokens  = []string{"hi", "hello", "hey", "yo", "greetings"}
)

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func newStringSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// IntentService classifies questions into conversational intents and
// serves the canned reply for intents that never reach retrieval.
type IntentService struct {
	responses map[models.Intent]string
	pick      func(n int) int
}

func NewIntentService() *IntentService {
	s := &IntentService{
		responses: map[models.Intent]string{
			models.IntentFarewell:    ResponseFarewell,
			models.IntentDecline:     ResponseDecline,
			models.IntentGratitude:   ResponseGratitude,
			models.IntentAffirmative: ResponseAffirmative,
		},
		pick: rand.Intn,
	}
	s.verifyResponses()
	return s
}

// verifyResponses panics at construction when an intent that
// short-circuits retrieval has no reply defined. Catches the case
// where a new intent is added without a response.
func (s *IntentService) verifyResponses() {
	for _, intent := range models.AllIntents() {
		if intent.NeedsRetrieval() || intent == models.IntentGreeting {
			continue
		}
		if _, ok := s.responses[intent]; !ok {
			panic(fmt.Sprintf("no canned response defined for intent %s", intent))
		}
	}
	if len(greetingResponses) == 0 {
		panic("greeting response pool is empty")
	}
}

// Classify maps a sanitized question to an intent. First match wins:
//  1. interrogative prefix forces FactualQuestion over any keyword
//  2. full-text farewell membership (q/quit/exit are CLI synonyms)
//  3. full-text decline membership
//  4. gratitude token anywhere in the text
//  5. full-text affirmative membership
//  6. greeting token anywhere in the text
//  7. Generic, which proceeds to retrieval
//
// Gratitude outranks greeting substrings, so "thanks, bye" reads as
// gratitude; farewell only matches the whole text.
func (s *IntentService) Classify(question string) models.Intent {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return models.IntentGeneric
	}

	for _, w := range interrogatives {
		if strings.HasPrefix(q, w) && (len(q) == len(w) || !isLetter(q[len(w)])) {
			return models.IntentFactualQuestion
		}
	}

	if _, ok := farewellSet[q]; ok {
		return models.IntentFarewell
	}
	if _, ok := declineSet[q]; ok {
		return models.IntentDecline
	}
	for _, token := range gratitudeTokens {
		if strings.Contains(q, token) {
			return models.IntentGratitude
		}
	}
	if _, ok := affirmativeSet[q]; ok {
		return models.IntentAffirmative
	}
	for _, token := range greetingTokens {
		if strings.Contains(q, token) {
			return models.IntentGreeting
		}
	}
	return models.IntentGeneric
}

// Respond returns the canned reply for a short-circuit intent.
// Greeting picks uniformly at random from a fixed pool; everything
// else is a fixed literal. Panics for retrieval intents, which have no
// canned reply by definition.
func (s *IntentService) Respond(intent models.Intent) string {
	if intent == models.IntentGreeting {
		return greetingResponses[s.pick(len(greetingResponses))]
	}
	resp, ok := s.responses[intent]
	if !ok {
		panic(fmt.Sprintf("no canned response for intent %s", intent))
	}
	return resp
}

// GreetingPool exposes the greeting replies so callers can assert
// membership rather than equality.
func GreetingPool() []string {
	pool := make([]string, len(greetingResponses))
	copy(pool, greetingResponses)
	return pool
}
