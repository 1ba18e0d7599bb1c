package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type FSLoader struct{}

func NewLoader() *FSLoader { return &FSLoader{} }

// LoadCatalog reads catalog.yaml under root and every bank it references.
// A bank that fails to read, parse, or validate is recorded in
// Catalog.Failures instead of aborting the load; a broken catalog.yaml is
// still a hard error.
func (l *FSLoader) LoadCatalog(ctx context.Context, root string) (*Catalog, error) {
	catalogYAML := filepath.Join(root, "catalog.yaml")
	catalog, err := readCatalog(catalogYAML)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", catalogYAML, err)
	}
	catalog.Path = root

	for _, ref := range catalog.Banks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ref.Enabled != nil && !*ref.Enabled {
			continue
		}
		bankPath := filepath.Join(root, ref.Path)
		quiz, err := loadBankFile(bankPath)
		if err != nil {
			catalog.Failures = append(catalog.Failures, LoadFailure{QuizID: ref.QuizID, Path: bankPath, Err: err})
			continue
		}
		quiz.QuizID = ref.QuizID
		quiz.Category = ref.Category
		quiz.Path = bankPath
		catalog.Quizzes = append(catalog.Quizzes, quiz)
	}

	sort.Slice(catalog.Quizzes, func(i, j int) bool { return catalog.Quizzes[i].QuizID < catalog.Quizzes[j].QuizID })
	return &catalog, nil
}

func readCatalog(path string) (Catalog, error) {
	var catalog Catalog
	b, err := os.ReadFile(path)
	if err != nil {
		return catalog, err
	}
	if err := yaml.Unmarshal(b, &catalog); err != nil {
		return catalog, err
	}
	if err := catalog.Validate(); err != nil {
		return catalog, err
	}
	return catalog, nil
}

func loadBankFile(path string) (Quiz, error) {
	var quiz Quiz
	b, err := os.ReadFile(path)
	if err != nil {
		return quiz, err
	}
	if err := json.Unmarshal(b, &quiz); err != nil {
		return quiz, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := quiz.Validate(); err != nil {
		return quiz, fmt.Errorf("validate %s: %w", path, err)
	}
	return quiz, nil
}
