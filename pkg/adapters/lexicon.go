package adapters

// lexiconEntry maps a word to a valence on the VADER scale [-4, +4].
type lexiconEntry struct {
	Word    string
	Valence float64
}

// Valences assigned to the embedded lexicon. Strong words carry ±2.5,
// ordinary polarity words ±1.5, matching the convention of the Chen &
// Skiena (2014) multilingual lexicons.
const (
	valPositive       = 1.5
	valNegative       = -1.5
	valStrongPositive = 2.5
	valStrongNegative = -2.5
)

// sentimentLexicon is the embedded English valence dictionary used by
// LocalLLM. It is deliberately small: enough coverage for operational text
// (alerts, review comments, feedback snippets), not a general NLP model.
var sentimentLexicon = []lexiconEntry{
	// Strong positive.
	{"excellent", valStrongPositive},
	{"outstanding", valStrongPositive},
	{"perfect", valStrongPositive},
	{"amazing", valStrongPositive},
	{"wonderful", valStrongPositive},
	{"fantastic", valStrongPositive},
	{"brilliant", valStrongPositive},
	{"superb", valStrongPositive},
	{"love", valStrongPositive},
	{"flawless", valStrongPositive},

	// Positive.
	{"good", valPositive},
	{"great", valPositive},
	{"nice", valPositive},
	{"clean", valPositive},
	{"fast", valPositive},
	{"stable", valPositive},
	{"reliable", valPositive},
	{"helpful", valPositive},
	{"improved", valPositive},
	{"improvement", valPositive},
	{"fixed", valPositive},
	{"fix", valPositive},
	{"works", valPositive},
	{"working", valPositive},
	{"correct", valPositive},
	{"success", valPositive},
	{"successful", valPositive},
	{"happy", valPositive},
	{"pleased", valPositive},
	{"smooth", valPositive},
	{"efficient", valPositive},
	{"useful", valPositive},
	{"elegant", valPositive},
	{"solid", valPositive},
	{"thanks", valPositive},
	{"thank", valPositive},
	{"resolved", valPositive},
	{"recovered", valPositive},
	{"healthy", valPositive},
	{"passed", valPositive},
	{"better", valPositive},
	{"best", valPositive},
	{"like", valPositive},
	{"well", valPositive},
	{"easy", valPositive},
	{"simple", valPositive},
	{"clear", valPositive},
	{"safe", valPositive},
	{"secure", valPositive},
	{"robust", valPositive},

	// Negative.
	{"bad", valNegative},
	{"poor", valNegative},
	{"slow", valNegative},
	{"wrong", valNegative},
	{"error", valNegative},
	{"errors", valNegative},
	{"fail", valNegative},
	{"failed", valNegative},
	{"failure", valNegative},
	{"failing", valNegative},
	{"broken", valNegative},
	{"breaks", valNegative},
	{"bug", valNegative},
	{"buggy", valNegative},
	{"crash", valNegative},
	{"crashed", valNegative},
	{"flaky", valNegative},
	{"unstable", valNegative},
	{"unreliable", valNegative},
	{"confusing", valNegative},
	{"unclear", valNegative},
	{"missing", valNegative},
	{"leak", valNegative},
	{"stale", valNegative},
	{"degraded", valNegative},
	{"timeout", valNegative},
	{"stuck", valNegative},
	{"hang", valNegative},
	{"hangs", valNegative},
	{"regression", valNegative},
	{"outage", valNegative},
	{"problem", valNegative},
	{"problems", valNegative},
	{"issue", valNegative},
	{"issues", valNegative},
	{"worse", valNegative},
	{"hard", valNegative},
	{"difficult", valNegative},
	{"annoying", valNegative},
	{"unhappy", valNegative},
	{"sad", valNegative},
	{"dislike", valNegative},
	{"invalid", valNegative},
	{"corrupt", valNegative},
	{"corrupted", valNegative},
	{"lost", valNegative},
	{"dropped", valNegative},
	{"rejected", valNegative},
	{"denied", valNegative},

	// Strong negative.
	{"terrible", valStrongNegative},
	{"horrible", valStrongNegative},
	{"awful", valStrongNegative},
	{"disaster", valStrongNegative},
	{"disastrous", valStrongNegative},
	{"catastrophic", valStrongNegative},
	{"unusable", valStrongNegative},
	{"hate", valStrongNegative},
	{"worst", valStrongNegative},
	{"critical", valStrongNegative},
	{"fatal", valStrongNegative},
	{"panic", valStrongNegative},
}
