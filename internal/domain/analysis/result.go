package analysis

// Category enum for hazard classification
type Category string

const (
	CategoryPPE           Category = "ppe"
	CategoryFall          Category = "fall"
	CategoryElectrical    Category = "electrical"
	CategoryFire          Category = "fire"
	CategoryChemical      Category = "chemical"
	CategoryMachinery     Category = "machinery"
	CategoryHousekeeping  Category = "housekeeping"
	CategoryErgonomic     Category = "ergonomic"
	CategoryEnvironmental Category = "environmental"
	CategoryStructural    Category = "structural"
	CategoryOther         Category = "other"
)

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Hazard is one identified safety issue in the inspected image
type Hazard struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	Location      string   `json:"location"`
	Category      Category `json:"category"`
	Severity      Severity `json:"severity"`
	Remediation   []string `json:"remediation"`
	EstimatedCost string   `json:"estimatedCost,omitempty"`
	TimeToResolve string   `json:"timeToResolve,omitempty"`
	Priority      int      `json:"priority"`
}

// OverallAssessment summarizes the whole image
type OverallAssessment struct {
	RiskScore           int      `json:"riskScore"`
	SafetyGrade         string   `json:"safetyGrade"`
	PriorityActions     []string `json:"priorityActions"`
	ComplianceStandards []string `json:"complianceStandards,omitempty"`
}

// Metadata reported alongside the assessment
type Metadata struct {
	AnalysisTimeMS int64   `json:"analysisTimeMs,omitempty"`
	TokensUsed     int     `json:"tokensUsed,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// Result is the canonical validated model output.
// HazardCount on an Inspection is always derived from len(Hazards),
// never from anything the model claims.
type Result struct {
	Hazards           []Hazard          `json:"hazards"`
	OverallAssessment OverallAssessment `json:"overallAssessment"`
	Metadata          Metadata          `json:"metadata"`
}
