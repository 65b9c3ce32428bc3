package records

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/go-playground/validator/v10"
)

// MalformedRecordError reports a raw row that could not be normalized into an EntityRecord
type MalformedRecordError struct {
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at index %d: %s", e.Index, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("entity_role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).IsKnown()
	})
	return v
}

type rawRecord struct {
	ID         json.RawMessage `json:"id"`
	FileNumber json.RawMessage `json:"file_number"`
	Type       json.RawMessage `json:"type"`
	NameID     json.RawMessage `json:"name_id"`
	AddressID  json.RawMessage `json:"address_id"`
}

type rawForeignKey struct {
	Label json.RawMessage `json:"label"`
	Value json.RawMessage `json:"value"`
}

// Normalize converts raw registry rows into entity records.
// Rows that fail are skipped and reported as *MalformedRecordError; the rest of the batch continues.
func Normalize(rows []json.RawMessage) ([]models.EntityRecord, []error) {
	out := make([]models.EntityRecord, 0, len(rows))
	var errs []error
	for i, row := range rows {
		record, err := NormalizeOne(row)
		if err != nil {
			errs = append(errs, &MalformedRecordError{Index: i, Reason: err.Error()})
			continue
		}
		out = append(out, record)
	}
	return out, errs
}

// NormalizeOne converts a single raw row
func NormalizeOne(row json.RawMessage) (models.EntityRecord, error) {
	var record models.EntityRecord

	trimmed := strings.TrimSpace(string(row))
	if !strings.HasPrefix(trimmed, "{") {
		return record, fmt.Errorf("row is not an object")
	}

	var raw rawRecord
	if err := json.Unmarshal(row, &raw); err != nil {
		return record, fmt.Errorf("row is not an object: %w", err)
	}

	if isNull(raw.ID) {
		return record, fmt.Errorf("missing id")
	}
	id, err := parseInt(raw.ID)
	if err != nil {
		return record, fmt.Errorf("id: %w", err)
	}
	record.ID = id

	if isNull(raw.FileNumber) {
		return record, fmt.Errorf("missing file_number")
	}
	fileNumber, err := parseString(raw.FileNumber)
	if err != nil {
		return record, fmt.Errorf("file_number: %w", err)
	}
	record.FileNumber = strings.TrimSpace(fileNumber)

	if isNull(raw.Type) {
		return record, fmt.Errorf("missing type")
	}
	role, err := parseString(raw.Type)
	if err != nil {
		return record, fmt.Errorf("type: %w", err)
	}
	record.Type = models.Role(strings.ToLower(strings.TrimSpace(role)))

	if record.Name, err = parseForeignKey(raw.NameID); err != nil {
		return record, fmt.Errorf("name_id: %w", err)
	}
	if record.Address, err = parseForeignKey(raw.AddressID); err != nil {
		return record, fmt.Errorf("address_id: %w", err)
	}

	if err := validate.Struct(record); err != nil {
		return record, describeValidation(err)
	}
	return record, nil
}

func describeValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "entity_role":
		return fmt.Errorf("unknown role %q", fe.Value())
	case "required":
		return fmt.Errorf("missing %s", strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("%s failed %s", fe.Field(), fe.Tag())
}

func parseForeignKey(data json.RawMessage) (*models.ForeignKey, error) {
	if isNull(data) {
		return nil, nil
	}
	var raw rawForeignKey
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("expected {label, value} object")
	}
	if isNull(raw.Value) {
		return nil, fmt.Errorf("missing value")
	}
	value, err := parseInt(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	label := ""
	if !isNull(raw.Label) {
		if label, err = parseString(raw.Label); err != nil {
			return nil, fmt.Errorf("label: %w", err)
		}
	}
	return &models.ForeignKey{Label: strings.TrimSpace(label), Value: value}, nil
}

func isNull(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}

// parseInt accepts a JSON integer or a string holding one
func parseInt(data json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return strconv.ParseInt(n.String(), 10, 64)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("expected integer")
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %q", s)
	}
	return v, nil
}

func parseString(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("expected string")
	}
	return s, nil
}

// Union concatenates record lists, collapsing duplicate record ids and keeping the first occurrence
func Union(lists ...[]models.EntityRecord) []models.EntityRecord {
	seen := make(map[int64]struct{})
	var out []models.EntityRecord
	for _, list := range lists {
		for _, r := range list {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// Simplify flattens a record into its export row
func Simplify(r models.EntityRecord) models.BusinessRow {
	row := models.BusinessRow{
		ID:         r.ID,
		FileNumber: r.FileNumber,
		Type:       string(r.Type),
		Name:       r.Label(),
	}
	if r.Address != nil {
		row.Address = r.Address.Label
	}
	return row
}

// FileNumbers returns the distinct file numbers of the records in first-seen order
func FileNumbers(list []models.EntityRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range list {
		if r.FileNumber == "" {
			continue
		}
		if _, ok := seen[r.FileNumber]; ok {
			continue
		}
		seen[r.FileNumber] = struct{}{}
		out = append(out, r.FileNumber)
	}
	return out
}
