// Package medical classifies a disease from reported symptoms using a
// pretrained linear classifier and static lookup tables.
package medical

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrNoSymptomsRecognized reports that none of the supplied symptoms map to
// a known feature, leaving the classifier with an all-zero input.
var ErrNoSymptomsRecognized = errors.New("no recognized symptoms in input")

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// Engine answers symptom-to-diagnosis requests. The lookup tables load at
// construction; the classifier artifact loads lazily on the first prediction
// and is reused afterwards.
type Engine struct {
	modelPath string
	tables    *diseaseTables
	logger    *log.Logger

	loadOnce   sync.Once
	classifier *Classifier
	loadErr    error

	phrases    []string // multi-word synonyms, most specific first
	words      []string // single-word synonyms, sorted
	canonicals []string // canonical symptoms in feature-vector order
}

func NewEngine(modelPath, tablesDir string, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}

	tables, err := loadDiseaseTables(tablesDir)
	if err != nil {
		return nil, fmt.Errorf("load disease tables: %w", err)
	}

	engine := &Engine{
		modelPath: modelPath,
		tables:    tables,
		logger:    logger,
	}
	engine.buildMatchOrder()

	return engine, nil
}

// buildMatchOrder fixes the iteration order used by ExtractSymptoms so that
// identical input always yields identical output.
func (e *Engine) buildMatchOrder() {
	for key := range symptomSynonyms {
		if strings.Contains(key, " ") {
			e.phrases = append(e.phrases, key)
		} else {
			e.words = append(e.words, key)
		}
	}
	sort.Slice(e.phrases, func(i, j int) bool {
		if len(e.phrases[i]) != len(e.phrases[j]) {
			return len(e.phrases[i]) > len(e.phrases[j])
		}
		return e.phrases[i] < e.phrases[j]
	})
	sort.Strings(e.words)

	e.canonicals = make([]string, len(symptomIndex))
	for name, idx := range symptomIndex {
		e.canonicals[idx] = name
	}
}

func (e *Engine) model() (*Classifier, error) {
	e.loadOnce.Do(func() {
		e.classifier, e.loadErr = LoadClassifier(e.modelPath)
		if e.loadErr == nil {
			e.logger.Printf("symptom classifier loaded from %s", e.modelPath)
		}
	})
	return e.classifier, e.loadErr
}

// Predict maps the symptom set to a feature vector and classifies it.
// Unrecognized symptoms are ignored; if nothing is recognized the call fails
// with ErrNoSymptomsRecognized.
func (e *Engine) Predict(symptoms []string) (string, error) {
	classifier, err := e.model()
	if err != nil {
		return "", err
	}

	vector := make([]float64, len(symptomIndex))
	recognized := 0
	for _, symptom := range symptoms {
		idx, ok := symptomIndex[strings.TrimSpace(strings.ToLower(symptom))]
		if !ok {
			continue
		}
		if vector[idx] == 0 {
			recognized++
		}
		vector[idx] = 1
	}
	if recognized == 0 {
		return "", ErrNoSymptomsRecognized
	}

	label, err := classifier.Predict(vector)
	if err != nil {
		return "", err
	}

	disease, ok := diseaseLabels[label]
	if !ok {
		return "", fmt.Errorf("classifier returned unknown label index %d", label)
	}

	e.logger.Printf("predicted %q from %d recognized symptom(s)", disease, recognized)
	return disease, nil
}

// ExtractSymptoms pulls canonical symptom names out of free text. Multi-word
// synonym phrases match first, then single-word synonyms, then canonical
// names appearing verbatim. The result is a duplicate-free list in discovery
// order, deterministic for identical input.
func (e *Engine) ExtractSymptoms(text string) []string {
	text = strings.ToLower(text)
	found := make([]string, 0)
	seen := make(map[string]struct{})

	add := func(symptom string) {
		if _, ok := seen[symptom]; ok {
			return
		}
		if _, known := symptomIndex[symptom]; !known {
			return
		}
		seen[symptom] = struct{}{}
		found = append(found, symptom)
	}

	for _, phrase := range e.phrases {
		if strings.Contains(text, phrase) {
			add(symptomSynonyms[phrase])
		}
	}

	words := wordPattern.FindAllString(text, -1)
	wordSet := make(map[string]struct{}, len(words))
	for _, word := range words {
		wordSet[word] = struct{}{}
	}
	for _, word := range e.words {
		if _, ok := wordSet[word]; ok {
			add(symptomSynonyms[word])
		}
	}
	for _, word := range words {
		if _, known := symptomIndex[word]; known {
			add(word)
		}
	}

	for _, canonical := range e.canonicals {
		if strings.Contains(text, canonical) {
			add(canonical)
		}
	}

	return found
}

// Lookup joins a disease name against the static tables. Missing attributes
// come back as placeholders rather than errors.
func (e *Engine) Lookup(disease string) DiseaseRecord {
	return e.tables.record(disease)
}
