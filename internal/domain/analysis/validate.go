package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

var validCategories = map[Category]bool{
	CategoryPPE:           true,
	CategoryFall:          true,
	CategoryElectrical:    true,
	CategoryFire:          true,
	CategoryChemical:      true,
	CategoryMachinery:     true,
	CategoryHousekeeping:  true,
	CategoryErgonomic:     true,
	CategoryEnvironmental: true,
	CategoryStructural:    true,
	CategoryOther:         true,
}

var validSeverities = map[Severity]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

var validGrades = map[string]bool{
	"A": true, "B": true, "C": true, "D": true, "E": true, "F": true,
}

// Parse decodes raw model output and validates it against the schema.
// The untyped payload never leaves this function; callers only ever
// see the validated Result.
func Parse(raw string) (*Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model response")
	}

	// Some models wrap JSON in markdown fences despite instructions
	trimmed = stripFences(trimmed)

	var res Result
	// Distinguish "missing overallAssessment" from "present but zero-valued"
	var probe struct {
		Hazards           []json.RawMessage `json:"hazards"`
		OverallAssessment *json.RawMessage  `json:"overallAssessment"`
	}
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if probe.OverallAssessment == nil {
		return nil, fmt.Errorf("missing required field: overallAssessment")
	}
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := validate(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func validate(res *Result) error {
	oa := res.OverallAssessment
	if oa.RiskScore < 0 || oa.RiskScore > 100 {
		return fmt.Errorf("riskScore out of range: %d", oa.RiskScore)
	}
	if !validGrades[oa.SafetyGrade] {
		return fmt.Errorf("invalid safetyGrade: %q", oa.SafetyGrade)
	}
	if len(oa.PriorityActions) > 3 {
		res.OverallAssessment.PriorityActions = oa.PriorityActions[:3]
	}
	if res.Metadata.Confidence < 0 || res.Metadata.Confidence > 1 {
		return fmt.Errorf("confidence out of range: %v", res.Metadata.Confidence)
	}

	for i, h := range res.Hazards {
		if strings.TrimSpace(h.Description) == "" {
			return fmt.Errorf("hazard[%d]: missing description", i)
		}
		if !validCategories[h.Category] {
			return fmt.Errorf("hazard[%d]: invalid category: %q", i, h.Category)
		}
		if !validSeverities[h.Severity] {
			return fmt.Errorf("hazard[%d]: invalid severity: %q", i, h.Severity)
		}
		if h.Priority < 1 || h.Priority > 10 {
			return fmt.Errorf("hazard[%d]: priority out of range: %d", i, h.Priority)
		}
		if h.ID == "" {
			res.Hazards[i].ID = fmt.Sprintf("hazard-%d", i+1)
		}
	}
	return nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
