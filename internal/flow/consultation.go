package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/BTreeMap/BioFlow/internal/models"
)

// ConsultationStrategyName is the strategy name sent when a consultation finishes.
const ConsultationStrategyName = "Personalized Protocol"

var (
	// ErrNoIssues is returned by Start when there is nothing to ask about.
	ErrNoIssues = errors.New("no biomarker issues to consult on")
	// ErrConsultationInactive is returned when an answer arrives with no session running.
	ErrConsultationInactive = errors.New("no active consultation")
	// ErrInvalidOption is returned when an answer does not match the current question.
	ErrInvalidOption = errors.New("option does not belong to the current question")
)

// PlanRequest is what a finished consultation hands to plan generation.
type PlanRequest struct {
	StrategyName    string            `json:"strategy_name"`
	BloodStrategies []string          `json:"blood_strategies"`
	Lifestyle       map[string]string `json:"lifestyle"`
}

// Finalizer receives the answers of a finished consultation.
type Finalizer interface {
	Finalize(ctx context.Context, req PlanRequest) error
}

// FinalizerFunc adapts a function to Finalizer.
type FinalizerFunc func(ctx context.Context, req PlanRequest) error

// Finalize calls f.
func (f FinalizerFunc) Finalize(ctx context.Context, req PlanRequest) error { return f(ctx, req) }

// ChoicesSaver persists lifestyle answers as they are given.
type ChoicesSaver func(ctx context.Context, choices map[string]string) error

// ConsultationSnapshot is a read-only view of the session for renderers.
type ConsultationSnapshot struct {
	Active  bool             `json:"active"`
	Step    int              `json:"step"`
	Total   int              `json:"total"`
	Current *models.Question `json:"current,omitempty"`
}

// Consultation walks the user through one question per biomarker issue followed
// by the lifestyle catalog, then hands the collected answers off exactly once.
type Consultation struct {
	mu              sync.Mutex
	active          bool
	step            int
	queue           []models.Question
	bloodStrategies []string
	userChoices     map[string]string

	finalizer Finalizer
	saveFn    ChoicesSaver
}

// NewConsultation creates an idle engine. saveFn may be nil.
func NewConsultation(finalizer Finalizer, saveFn ChoicesSaver) *Consultation {
	return &Consultation{
		finalizer:       finalizer,
		saveFn:          saveFn,
		bloodStrategies: []string{},
		userChoices:     map[string]string{},
	}
}

// BuildQueue returns the biomarker questions followed by the lifestyle questions,
// each group in its original order.
func BuildQueue(issues []models.Issue, lifestyle []models.LifestyleQuestion) []models.Question {
	queue := make([]models.Question, 0, len(issues)+len(lifestyle))
	for _, issue := range issues {
		queue = append(queue, models.NewBiomarkerQuestion(issue))
	}
	for _, q := range lifestyle {
		queue = append(queue, models.NewLifestyleQuestion(q))
	}
	return queue
}

// Start begins a new session. Any session in progress is discarded.
func (c *Consultation) Start(issues []models.Issue, lifestyle []models.LifestyleQuestion) error {
	if len(issues) == 0 {
		return ErrNoIssues
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = BuildQueue(issues, lifestyle)
	c.bloodStrategies = []string{}
	c.userChoices = map[string]string{}
	c.step = 0
	c.active = true
	slog.Info("Consultation started", "issues", len(issues), "lifestyle", len(lifestyle), "total", len(c.queue))
	return nil
}

// Begin starts a session for the given issues, or finalizes immediately with
// empty blood strategies when there are none.
func (c *Consultation) Begin(ctx context.Context, issues []models.Issue, lifestyle []models.LifestyleQuestion) error {
	err := c.Start(issues, lifestyle)
	if !errors.Is(err, ErrNoIssues) {
		return err
	}

	c.mu.Lock()
	c.active = false
	c.bloodStrategies = []string{}
	req := c.requestLocked()
	c.mu.Unlock()

	slog.Info("Consultation skipped, no issues found")
	return c.finalize(ctx, req)
}

// Select records the answer to the current question and advances. After the
// last question the session ends and the finalizer runs once.
func (c *Consultation) Select(ctx context.Context, opt models.Option) (ConsultationSnapshot, error) {
	return c.answer(ctx, func(models.Question) (models.Option, error) { return opt, nil })
}

// SelectIndex answers the current question with its i-th option.
func (c *Consultation) SelectIndex(ctx context.Context, i int) (ConsultationSnapshot, error) {
	return c.answer(ctx, func(q models.Question) (models.Option, error) {
		if i < 0 || i >= len(q.Options) {
			return models.Option{}, fmt.Errorf("option %d of %d: %w", i, len(q.Options), ErrInvalidOption)
		}
		return q.Options[i], nil
	})
}

// SelectText answers the current question with the option whose text matches.
func (c *Consultation) SelectText(ctx context.Context, text string) (ConsultationSnapshot, error) {
	return c.answer(ctx, func(q models.Question) (models.Option, error) {
		for _, o := range q.Options {
			if o.Text == text {
				return o, nil
			}
		}
		return models.Option{}, fmt.Errorf("%q: %w", text, ErrInvalidOption)
	})
}

// answer resolves the option against the current question and records it
// under one lock, so concurrent answers cannot land on the next question.
func (c *Consultation) answer(ctx context.Context, resolve func(models.Question) (models.Option, error)) (ConsultationSnapshot, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		slog.Warn("Consultation answer ignored, no active session")
		return ConsultationSnapshot{}, ErrConsultationInactive
	}

	q := c.queue[c.step]
	opt, err := resolve(q)
	if err != nil {
		c.mu.Unlock()
		return ConsultationSnapshot{}, err
	}
	choices, err := c.selectLocked(q, opt)
	if err != nil {
		c.mu.Unlock()
		return ConsultationSnapshot{}, err
	}

	if choices != nil && c.saveFn != nil {
		if err := c.saveFn(ctx, choices); err != nil {
			slog.Warn("Consultation failed to persist lifestyle choices", "error", err)
		}
	}

	if c.step < len(c.queue) {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}

	c.active = false
	req := c.requestLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	slog.Info("Consultation complete", "bloodStrategies", len(req.BloodStrategies), "lifestyle", len(req.Lifestyle))
	return snap, c.finalize(ctx, req)
}

// selectLocked records opt for q and advances the step. It returns the
// lifestyle choices to persist, or nil for a biomarker answer.
func (c *Consultation) selectLocked(q models.Question, opt models.Option) (map[string]string, error) {
	var choices map[string]string
	switch q.Kind {
	case models.QuestionKindBiomarker:
		c.bloodStrategies = append(c.bloodStrategies, opt.Text)
	case models.QuestionKindLifestyle:
		c.userChoices[q.ID] = opt.Text
		choices = maps.Clone(c.userChoices)
	default:
		return nil, fmt.Errorf("question %d: %w", c.step, models.ErrUnknownQuestionKind)
	}
	c.step++
	slog.Debug("Consultation answer recorded", "kind", q.Kind, "id", q.ID, "step", c.step, "total", len(c.queue))
	return choices, nil
}

// Reset discards the session and all collected answers.
func (c *Consultation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.step = 0
	c.queue = nil
	c.bloodStrategies = []string{}
	c.userChoices = map[string]string{}
}

// Snapshot returns the current session view.
func (c *Consultation) Snapshot() ConsultationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Answers returns copies of the collected blood strategies and lifestyle choices.
func (c *Consultation) Answers() ([]string, map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.bloodStrategies...), maps.Clone(c.userChoices)
}

// SetUserChoices replaces the lifestyle answers used when a session is skipped.
func (c *Consultation) SetUserChoices(choices map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if choices == nil {
		choices = map[string]string{}
	}
	c.userChoices = maps.Clone(choices)
}

func (c *Consultation) snapshotLocked() ConsultationSnapshot {
	snap := ConsultationSnapshot{Active: c.active, Step: c.step, Total: len(c.queue)}
	if c.active && c.step < len(c.queue) {
		q := c.queue[c.step]
		q.Options = append([]models.Option{}, q.Options...)
		snap.Current = &q
	}
	return snap
}

func (c *Consultation) requestLocked() PlanRequest {
	return PlanRequest{
		StrategyName:    ConsultationStrategyName,
		BloodStrategies: append([]string{}, c.bloodStrategies...),
		Lifestyle:       maps.Clone(c.userChoices),
	}
}

func (c *Consultation) finalize(ctx context.Context, req PlanRequest) error {
	if c.finalizer == nil {
		return nil
	}
	if err := c.finalizer.Finalize(ctx, req); err != nil {
		slog.Error("Consultation finalization failed", "error", err)
		return err
	}
	return nil
}
