package models

import (
	"errors"
	"fmt"
)

// QuestionKind tags the variant of a Question. The zero value is invalid so a
// Question built without one of the constructors is detectable.
type QuestionKind int

const (
	// QuestionKindBiomarker is a question derived from a lab-report issue.
	QuestionKindBiomarker QuestionKind = iota + 1
	// QuestionKindLifestyle is a static profiling question from the catalog.
	QuestionKindLifestyle
)

// Icons used for biomarker remediation options.
const (
	IconDiet      = "🥦"
	IconLifestyle = "🧘"
)

// IssueOptionTypeDiet is the only option type rendered with the diet icon.
const IssueOptionTypeDiet = "Diet"

// ErrUnknownQuestionKind is returned when a Question carries no valid kind.
var ErrUnknownQuestionKind = errors.New("unknown question kind")

func (k QuestionKind) String() string {
	switch k {
	case QuestionKindBiomarker:
		return "bio"
	case QuestionKindLifestyle:
		return "lifestyle"
	default:
		return fmt.Sprintf("QuestionKind(%d)", int(k))
	}
}

// MarshalText renders the kind as "bio" or "lifestyle".
func (k QuestionKind) MarshalText() ([]byte, error) {
	switch k {
	case QuestionKindBiomarker, QuestionKindLifestyle:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownQuestionKind, int(k))
	}
}

// Option is a displayable answer choice.
type Option struct {
	Text string `json:"text" yaml:"text"`
	Icon string `json:"icon" yaml:"icon"`
}

// IssueOption is a remediation option attached to a biomarker issue.
type IssueOption struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Issue is a server-identified abnormal lab value.
type Issue struct {
	Title       string        `json:"title"`
	Explanation string        `json:"explanation"`
	Value       FlexString    `json:"value"`
	Options     []IssueOption `json:"options"`
}

// LifestyleQuestion is a static catalog entry.
type LifestyleQuestion struct {
	ID      string   `json:"id" yaml:"id"`
	Title   string   `json:"title" yaml:"title"`
	Desc    string   `json:"desc" yaml:"desc"`
	Options []Option `json:"options" yaml:"options"`
}

// Question is one interview step. Build it with NewBiomarkerQuestion or
// NewLifestyleQuestion; ID is empty for biomarker questions and Value is empty
// for lifestyle questions.
type Question struct {
	Kind    QuestionKind `json:"type"`
	ID      string       `json:"id,omitempty"`
	Title   string       `json:"title"`
	Desc    string       `json:"desc"`
	Value   string       `json:"value,omitempty"`
	Options []Option     `json:"options"`
}

// NewBiomarkerQuestion converts a lab issue into a question. The option list is
// copied; an issue without options yields a question with none.
func NewBiomarkerQuestion(issue Issue) Question {
	opts := make([]Option, 0, len(issue.Options))
	for _, o := range issue.Options {
		opts = append(opts, Option{Text: o.Text, Icon: IssueIcon(o.Type)})
	}
	return Question{
		Kind:    QuestionKindBiomarker,
		Title:   issue.Title + " Detected",
		Desc:    issue.Explanation,
		Value:   issue.Value.String(),
		Options: opts,
	}
}

// NewLifestyleQuestion converts a catalog entry into a question.
func NewLifestyleQuestion(q LifestyleQuestion) Question {
	opts := make([]Option, len(q.Options))
	copy(opts, q.Options)
	return Question{
		Kind:    QuestionKindLifestyle,
		ID:      q.ID,
		Title:   q.Title,
		Desc:    q.Desc,
		Options: opts,
	}
}

// IssueIcon maps an issue option type to its icon.
func IssueIcon(optionType string) string {
	if optionType == IssueOptionTypeDiet {
		return IconDiet
	}
	return IconLifestyle
}

// Validate reports whether q was built by one of the constructors.
func (q Question) Validate() error {
	switch q.Kind {
	case QuestionKindBiomarker:
		return nil
	case QuestionKindLifestyle:
		if q.ID == "" {
			return errors.New("lifestyle question requires an id")
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownQuestionKind, int(q.Kind))
	}
}
