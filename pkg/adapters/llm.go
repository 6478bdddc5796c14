package adapters

import (
	"context"
	"math"
	"strings"

	"github.com/axonworks/axon/pkg/alg/text"
)

// Sentiment labels.
const (
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentPositive = "positive"
)

// Sentiment is the result of AnalyzeSentiment. Score maps the valence to
// [0, 1]: 0 most negative, 0.5 neutral, 1 most positive.
type Sentiment struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// LLM is the language-model boundary used by proposer atoms. Failures are
// returned as plain errors; the scheduler converts them to atom.error
// signals without retrying.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error)
}

// Normalization constant for the compound valence, following the VADER
// convention: compound = sum / sqrt(sum² + alpha).
const valenceAlpha = 15.0

// Compound thresholds separating the three labels, again per VADER.
const labelBand = 0.05

// generateMaxWords bounds the extractive reply of the local adapter.
const generateMaxWords = 32

// LocalLLM is the in-process fallback adapter: sentiment from an embedded
// valence lexicon and extractive generation. It keeps demo workflows and
// tests runnable without a model endpoint.
type LocalLLM struct {
	valence map[string]float64
}

// NewLocalLLM loads the embedded lexicon.
func NewLocalLLM() *LocalLLM {
	valence := make(map[string]float64, len(sentimentLexicon))

	for _, e := range sentimentLexicon {
		valence[e.Word] = e.Valence
	}

	return &LocalLLM{valence: valence}
}

// Generate implements LLM with an extractive heuristic: the reply is the
// first generateMaxWords words of the prompt.
func (l *LocalLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	words := strings.Fields(prompt)
	if len(words) > generateMaxWords {
		words = words[:generateMaxWords]
	}

	return strings.Join(words, " "), nil
}

// AnalyzeSentiment implements LLM by summing lexicon valences over the
// tokens of the input. Confidence is the fraction of tokens the lexicon
// covered; text without any known token is neutral with zero confidence.
func (l *LocalLLM) AnalyzeSentiment(ctx context.Context, input string) (Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return Sentiment{}, err
	}

	tokens := text.Tokenize(input)
	if len(tokens) == 0 {
		return Sentiment{Label: SentimentNeutral, Score: 0.5}, nil
	}

	var sum float64

	matched := 0

	for _, tok := range tokens {
		if v, ok := l.valence[tok]; ok {
			sum += v
			matched++
		}
	}

	compound := sum / math.Sqrt(sum*sum+valenceAlpha)
	score := (compound + 1) / 2

	label := SentimentNeutral

	switch {
	case compound <= -labelBand:
		label = SentimentNegative
	case compound >= labelBand:
		label = SentimentPositive
	}

	return Sentiment{
		Label:      label,
		Score:      score,
		Confidence: float64(matched) / float64(len(tokens)),
	}, nil
}
