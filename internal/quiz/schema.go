package quiz

import (
	"fmt"
	"regexp"
)

const (
	CatalogKind            = "catalog"
	SupportedSchemaVersion = 1
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

type Catalog struct {
	Kind          string    `yaml:"kind"`
	SchemaVersion int       `yaml:"schema_version"`
	Banks         []BankRef `yaml:"banks"`

	Path     string        `yaml:"-"`
	Quizzes  []Quiz        `yaml:"-"`
	Failures []LoadFailure `yaml:"-"`
}

type BankRef struct {
	QuizID   string `yaml:"quiz_id"`
	Path     string `yaml:"path"`
	Category string `yaml:"category"`
	Enabled  *bool  `yaml:"enabled"`
}

type Quiz struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`

	QuizID   string `json:"-"`
	Category string `json:"-"`
	Path     string `json:"-"`
}

type Question struct {
	ID            int      `json:"id"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Image         string   `json:"image,omitempty"`
}

// LoadFailure records a bank that could not be loaded. Failed banks are
// skipped so the rest of the catalog stays usable.
type LoadFailure struct {
	QuizID string
	Path   string
	Err    error
}

func (c Catalog) Validate() error {
	if c.Kind != CatalogKind {
		return fmt.Errorf("kind must be %q", CatalogKind)
	}
	if c.SchemaVersion == 0 {
		return fmt.Errorf("schema_version is required")
	}
	if c.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported catalog schema_version %d (max supported %d)", c.SchemaVersion, SupportedSchemaVersion)
	}
	if len(c.Banks) == 0 {
		return fmt.Errorf("banks must contain at least one entry")
	}
	seen := map[string]struct{}{}
	for _, b := range c.Banks {
		if !idPattern.MatchString(b.QuizID) {
			return fmt.Errorf("invalid quiz_id %q", b.QuizID)
		}
		if _, ok := seen[b.QuizID]; ok {
			return fmt.Errorf("duplicate quiz_id %q in catalog.yaml", b.QuizID)
		}
		seen[b.QuizID] = struct{}{}
		if b.Path == "" {
			return fmt.Errorf("banks[].path is required for %q", b.QuizID)
		}
	}
	return nil
}

func (q Quiz) Validate() error {
	if q.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("questions must contain at least one entry")
	}
	seen := map[int]struct{}{}
	for i, qu := range q.Questions {
		if qu.Prompt == "" {
			return fmt.Errorf("questions[%d].question is required", i)
		}
		if len(qu.Options) < 2 {
			return fmt.Errorf("questions[%d] must have at least two options", i)
		}
		if qu.CorrectAnswer < 0 || qu.CorrectAnswer >= len(qu.Options) {
			return fmt.Errorf("questions[%d].correctAnswer %d out of range (have %d options)", i, qu.CorrectAnswer, len(qu.Options))
		}
		if _, ok := seen[qu.ID]; ok {
			return fmt.Errorf("duplicate question id %d", qu.ID)
		}
		seen[qu.ID] = struct{}{}
		switch qu.Difficulty {
		case "", "easy", "medium", "hard":
		default:
			return fmt.Errorf("questions[%d].difficulty must be easy, medium, or hard", i)
		}
	}
	return nil
}

// Get returns the quiz with the given id, searching loaded banks only.
func (c *Catalog) Get(quizID string) (Quiz, bool) {
	for _, q := range c.Quizzes {
		if q.QuizID == quizID {
			return q, true
		}
	}
	return Quiz{}, false
}
