// Package classifier asks a language model which layout template describes a
// statement the detector could not place.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/statement-ledger/internal/logging"

	"github.com/cenkalti/backoff/v4"
)

// maxSampleRunes bounds the first-page text sent in a prompt.
const maxSampleRunes = 4000

// ErrInvalidAnswer is returned when the model reply cannot be read.
var ErrInvalidAnswer = errors.New("invalid classifier answer")

// Candidate is a template the classifier may choose.
type Candidate struct {
	Name string
	Bank string
}

// Suggestion is the classifier verdict. Template is empty when the model
// recognized none of the candidates.
type Suggestion struct {
	Template   string  `json:"template"`
	Confidence float64 `json:"confidence"`
}

// Classifier suggests a template for a document sample.
type Classifier interface {
	Classify(ctx context.Context, sample string, candidates []Candidate) (Suggestion, error)
}

// GenerateFunc sends a prompt to a model and returns its text reply.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Options tunes a ModelClassifier.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
}

// ModelClassifier implements Classifier on top of any text model.
type ModelClassifier struct {
	generate GenerateFunc
	opts     Options
	logger   logging.Logger
}

// New creates a ModelClassifier around generate.
func New(generate GenerateFunc, opts Options, logger logging.Logger) *ModelClassifier {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &ModelClassifier{generate: generate, opts: opts, logger: logger}
}

// Classify builds the prompt, calls the model with retries and parses the
// JSON answer. Transport failures are retried; an unreadable answer is not.
func (c *ModelClassifier) Classify(ctx context.Context, sample string, candidates []Candidate) (Suggestion, error) {
	if len(candidates) == 0 {
		return Suggestion{}, fmt.Errorf("no candidate templates")
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	prompt := BuildPrompt(sample, candidates)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)

	var suggestion Suggestion
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		reply, err := c.generate(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("Classifier request failed, retrying",
				logging.F(logging.FieldAttempt, attempt),
				logging.F(logging.FieldError, err.Error()))
			return err
		}
		s, err := ParseAnswer(reply, candidates)
		if err != nil {
			return backoff.Permanent(err)
		}
		suggestion = s
		return nil
	}, policy)
	if err != nil {
		return Suggestion{}, fmt.Errorf("classify layout: %w", err)
	}

	c.logger.Debug("Classifier answered",
		logging.F(logging.FieldTemplate, suggestion.Template),
		logging.F(logging.FieldConfidence, suggestion.Confidence),
		logging.F(logging.FieldAttempt, attempt))
	return suggestion, nil
}

// BuildPrompt lists the candidates and appends the truncated sample.
func BuildPrompt(sample string, candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("You identify the layout of bank statements.\n")
	sb.WriteString("Choose the template that matches the statement text below, or none.\n")
	sb.WriteString("Templates:\n")
	for _, c := range candidates {
		if c.Bank != "" {
			fmt.Fprintf(&sb, "- %s (%s)\n", c.Name, c.Bank)
		} else {
			fmt.Fprintf(&sb, "- %s\n", c.Name)
		}
	}
	sb.WriteString("Answer with JSON only: {\"template\": \"<name or empty>\", \"confidence\": <0..1>}\n")
	sb.WriteString("Statement:\n")
	runes := []rune(sample)
	if len(runes) > maxSampleRunes {
		runes = runes[:maxSampleRunes]
	}
	sb.WriteString(string(runes))
	return sb.String()
}

// ParseAnswer reads the JSON object in reply. A template outside candidates
// is an error; confidence is clamped to [0, 1].
func ParseAnswer(reply string, candidates []Candidate) (Suggestion, error) {
	start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Suggestion{}, fmt.Errorf("%w: no JSON object in %q", ErrInvalidAnswer, reply)
	}
	var s Suggestion
	if err := json.Unmarshal([]byte(reply[start:end+1]), &s); err != nil {
		return Suggestion{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	s.Template = strings.TrimSpace(s.Template)
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	if s.Template == "" {
		s.Confidence = 0
		return s, nil
	}
	for _, c := range candidates {
		if c.Name == s.Template {
			return s, nil
		}
	}
	return Suggestion{}, fmt.Errorf("%w: unknown template %q", ErrInvalidAnswer, s.Template)
}
