package medical

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel values returned when a lookup table has no row for a disease.
const (
	NoDescription = "No description available."
	NoPrecautions = "No precautions found."
)

// DiseaseRecord joins everything the static tables know about one disease.
type DiseaseRecord struct {
	Disease     string
	Description string
	Precautions []string
	Medications []string
	Diet        []string
	Workout     []string
}

// diseaseTables holds the lookup tables as typed maps keyed by disease name,
// built once at load time.
type diseaseTables struct {
	descriptions map[string]string
	precautions  map[string][]string
	medications  map[string][]string
	diets        map[string][]string
	workouts     map[string][]string
}

func loadDiseaseTables(dir string) (*diseaseTables, error) {
	tables := &diseaseTables{
		descriptions: make(map[string]string),
		precautions:  make(map[string][]string),
		medications:  make(map[string][]string),
		diets:        make(map[string][]string),
		workouts:     make(map[string][]string),
	}

	if err := forEachRow(filepath.Join(dir, "description.csv"), func(row rowReader) {
		tables.descriptions[row.get("Disease")] = row.get("Description")
	}); err != nil {
		return nil, err
	}

	if err := forEachRow(filepath.Join(dir, "precautions_df.csv"), func(row rowReader) {
		precautions := make([]string, 0, 4)
		for _, column := range []string{"Precaution_1", "Precaution_2", "Precaution_3", "Precaution_4"} {
			if value := row.get(column); value != "" {
				precautions = append(precautions, value)
			}
		}
		tables.precautions[row.get("Disease")] = precautions
	}); err != nil {
		return nil, err
	}

	if err := forEachRow(filepath.Join(dir, "medications.csv"), func(row rowReader) {
		disease := row.get("Disease")
		tables.medications[disease] = append(tables.medications[disease], row.get("Medication"))
	}); err != nil {
		return nil, err
	}

	if err := forEachRow(filepath.Join(dir, "diets.csv"), func(row rowReader) {
		disease := row.get("Disease")
		tables.diets[disease] = append(tables.diets[disease], row.get("Diet"))
	}); err != nil {
		return nil, err
	}

	if err := forEachRow(filepath.Join(dir, "workout_df.csv"), func(row rowReader) {
		disease := row.get("disease")
		tables.workouts[disease] = append(tables.workouts[disease], row.get("workout"))
	}); err != nil {
		return nil, err
	}

	return tables, nil
}

// record assembles a DiseaseRecord, substituting placeholder values for any
// table that has no row for the disease.
func (t *diseaseTables) record(disease string) DiseaseRecord {
	rec := DiseaseRecord{
		Disease:     disease,
		Description: t.descriptions[disease],
		Precautions: t.precautions[disease],
		Medications: t.medications[disease],
		Diet:        t.diets[disease],
		Workout:     t.workouts[disease],
	}

	if rec.Description == "" {
		rec.Description = NoDescription
	}
	if len(rec.Precautions) == 0 {
		rec.Precautions = []string{NoPrecautions}
	}
	if rec.Medications == nil {
		rec.Medications = []string{}
	}
	if rec.Diet == nil {
		rec.Diet = []string{}
	}
	if rec.Workout == nil {
		rec.Workout = []string{}
	}

	return rec
}

type rowReader struct {
	columns map[string]int
	values  []string
}

func (r rowReader) get(column string) string {
	idx, ok := r.columns[column]
	if !ok || idx >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[idx])
}

func forEachRow(path string, fn func(rowReader)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse table %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return fmt.Errorf("table %s is empty", filepath.Base(path))
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}

	for _, values := range records[1:] {
		fn(rowReader{columns: columns, values: values})
	}

	return nil
}
