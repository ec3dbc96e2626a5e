package repository

// Lifecycle history actions.
const (
	ActionLeadCreated            = "lead_created"
	ActionAutomaticAssignment    = "automatic_assignment"
	ActionAutomaticQualification = "automatic_qualification"
	ActionManualQualification    = "manual_qualification"
)

// ManualQualificationLabel is recorded as the matched rule when an operator
// changes a stage without giving a reason.
const ManualQualificationLabel = "Manual qualification"
