package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Credential and availability errors. They are distinguishable so callers
// can fail a whole grading job with an actionable code instead of a generic
// message.
var (
	ErrMissingAPIKey = errors.New("openai api key is not configured")
	ErrInvalidAPIKey = errors.New("openai api key was rejected")
	ErrUnavailable   = errors.New("openai service unreachable")
)

const (
	maxCommentLen       = 4000
	maxInlineTextLen    = 1000
	maxQuoteLen         = 400
	maxBackoff          = 8 * time.Second
	simplifiedMaxTokens = 2000
)

// GradingInput is everything needed to grade one answer.
type GradingInput struct {
	StudentLabel string
	RubricText   string
	QuestionText string
	MaxPoints    int
	AnswerText   string
	Mode         model.GradingMode
	// APIKey is the per-professor credential; empty means not configured.
	APIKey string
}

// InlineAnnotation is a reconciled, text-bounded inline comment candidate.
type InlineAnnotation struct {
	ID         string
	StartIndex int
	EndIndex   int
	Text       string
}

// GradingResult is a fully-validated grade for one answer. Every field has
// been coerced, clamped and bounds-checked; it is safe to persist as-is.
type GradingResult struct {
	PointsAwarded  float64
	Comment        string
	OverallComment string
	InlineComments []InlineAnnotation
}

// Client calls the model provider to grade answers. It is stateless and
// safe for concurrent use; the same input is always safe to re-invoke.
type Client struct {
	model      string
	baseURL    string
	maxTokens  int
	timeout    time.Duration
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a grading client from application configuration.
func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		model:      cfg.OpenAIModel,
		baseURL:    cfg.OpenAIBaseURL,
		maxTokens:  cfg.OpenAIMaxTokens,
		timeout:    cfg.OpenAITimeout,
		maxRetries: cfg.OpenAIRetries,
		log:        log.With().Str("component", "ai_client").Logger(),
	}
}

// Grade produces a structured grade for one (answer, rubric, max-points)
// tuple. Transient provider failures are retried with exponential backoff;
// a response truncated by the token limit triggers exactly one retry with a
// simplified prompt and a higher budget. Malformed model output degrades to
// a zero-point result rather than an error.
func (c *Client) Grade(ctx context.Context, in GradingInput) (*GradingResult, error) {
	if in.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	in.Mode = normalizeMode(in.Mode)

	api := c.newAPI(in.APIKey)
	started := time.Now()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(in.Mode)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(in)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxCompletionTokens: c.maxTokens,
	}

	resp, err := c.completeWithRetry(ctx, api, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		c.log.Warn().
			Int("max_tokens", c.maxTokens).
			Msg("Model response truncated by token limit, retrying with simplified prompt")
		return c.gradeSimplified(ctx, api, in)
	}

	result := c.normalize(in, choice.Message.Content)

	c.log.Info().
		Str("model", c.model).
		Dur("duration", time.Since(started)).
		Int("answer_chars", len(in.AnswerText)).
		Int("max_points", in.MaxPoints).
		Str("mode", string(in.Mode)).
		Float64("points", result.PointsAwarded).
		Msg("AI grading call completed")

	return result, nil
}

// gradeSimplified is the truncation-recovery path: shorter prompt, higher
// token budget, comment-only result.
func (c *Client) gradeSimplified(ctx context.Context, api *openai.Client, in GradingInput) (*GradingResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSimplifiedSystemPrompt(in.MaxPoints)},
			{Role: openai.ChatMessageRoleUser, Content: buildSimplifiedUserPrompt(in)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxCompletionTokens: simplifiedMaxTokens,
	}

	resp, err := c.completeWithRetry(ctx, api, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices on simplified retry")
	}

	var raw rawGrading
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		c.log.Warn().Err(err).Msg("Simplified retry returned unparseable JSON, defaulting to zero")
		raw = rawGrading{}
	}

	comment := coerceString(raw.Comment)
	if comment == "" {
		comment = "Evaluación completada con prompt simplificado."
	}

	return &GradingResult{
		PointsAwarded: clampPoints(coerceNumber(raw.PointsAwarded), in.MaxPoints),
		Comment:       truncate(comment, maxInlineTextLen),
	}, nil
}

// completeWithRetry performs one chat completion with a per-attempt timeout
// and bounded exponential backoff on transient failures (429, 5xx,
// timeouts, connection resets). Authentication failures are never retried.
func (c *Client) completeWithRetry(ctx context.Context, api *openai.Client, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := api.CreateChatCompletion(callCtx, req)
		cancel()

		if err == nil {
			return resp, nil
		}

		kind := classifyError(err)
		if kind == errPermanent {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 401 {
				return openai.ChatCompletionResponse{}, fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
			}
			return openai.ChatCompletionResponse{}, err
		}
		lastErr = err

		if attempt >= c.maxRetries {
			break
		}
		if ctx.Err() != nil {
			break
		}

		backoff := time.Second << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Transient model provider error, retrying")

		select {
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return openai.ChatCompletionResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

type errorKind int

const (
	errTransient errorKind = iota
	errPermanent
)

// classifyError maps provider errors to the retry taxonomy. 401 is rewritten
// to ErrInvalidAPIKey so the job layer can surface a specific remediation.
func classifyError(err error) errorKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401:
			return errPermanent
		case apiErr.HTTPStatusCode == 429:
			return errTransient
		case apiErr.HTTPStatusCode >= 500:
			return errTransient
		default:
			return errPermanent
		}
	}
	// Timeouts, connection resets and other transport errors.
	return errTransient
}

func (c *Client) newAPI(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// ────────────────────────────────────────────────────────────────────────────
// Defensive normalization
// ────────────────────────────────────────────────────────────────────────────

// rawGrading mirrors the response contract but with untyped fields: the
// model is expected, not guaranteed, to comply, so every field is coerced
// rather than trusted.
type rawGrading struct {
	PointsAwarded  interface{} `json:"pointsAwarded"`
	Comment        interface{} `json:"comment"`
	OverallComment interface{} `json:"overallComment"`
	InlineComments []rawInline `json:"inlineComments"`
}

type rawInline struct {
	ID         interface{} `json:"id"`
	StartIndex interface{} `json:"startIndex"`
	EndIndex   interface{} `json:"endIndex"`
	Text       interface{} `json:"text"`
	Quote      interface{} `json:"quote"`
}

// normalize turns raw model output into a fully-valid GradingResult.
// Unparseable content degrades to a zero-point result; out-of-range numbers
// are clamped; inline comments are reconciled against the literal answer
// text and dropped when no valid span remains.
func (c *Client) normalize(in GradingInput, content string) *GradingResult {
	var raw rawGrading
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		c.log.Warn().Err(err).Int("content_len", len(content)).Msg("Model returned invalid JSON, defaulting grade to zero")
		return &GradingResult{}
	}

	result := &GradingResult{
		PointsAwarded:  clampPoints(coerceNumber(raw.PointsAwarded), in.MaxPoints),
		Comment:        truncate(coerceString(raw.Comment), maxCommentLen),
		OverallComment: truncate(coerceString(raw.OverallComment), maxCommentLen),
	}

	for _, ic := range raw.InlineComments {
		text := truncate(coerceString(ic.Text), maxInlineTextLen)
		if text == "" {
			continue
		}

		proposed := ProposedSpan{
			StartIndex: coerceOptionalNumber(ic.StartIndex),
			EndIndex:   coerceOptionalNumber(ic.EndIndex),
			Quote:      truncate(coerceString(ic.Quote), maxQuoteLen),
		}
		span, far, ok := ReconcileSpan(in.AnswerText, proposed)
		if !ok {
			continue
		}
		if far {
			c.log.Warn().
				Str("quote", proposed.Quote).
				Int("matched_start", span.Start).
				Msg("Inline comment indices far from quote match; reconciled to quote")
		}

		id := coerceString(ic.ID)
		if id == "" {
			id = uuid.New().String()
		}

		result.InlineComments = append(result.InlineComments, InlineAnnotation{
			ID:         id,
			StartIndex: span.Start,
			EndIndex:   span.End,
			Text:       text,
		})
	}

	return result
}

// clampPoints bounds a coerced score into [0, maxPoints]. Non-finite input
// has already been mapped to 0 by coerceNumber.
func clampPoints(points float64, maxPoints int) float64 {
	if points < 0 {
		return 0
	}
	if max := float64(maxPoints); points > max {
		return max
	}
	return points
}

// coerceNumber extracts a finite float from untyped JSON, defaulting to 0.
func coerceNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		if isFinite(n) {
			return n
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil && isFinite(f) {
			return f
		}
	}
	return 0
}

// coerceOptionalNumber is like coerceNumber but preserves absence.
func coerceOptionalNumber(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		if isFinite(n) {
			return &n
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil && isFinite(f) {
			return &f
		}
	}
	return nil
}

func coerceString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
