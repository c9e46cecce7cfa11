package logging

// Standardized field names for structured logging.
const (
	FieldFile        = "file_path"
	FieldFormat      = "format"
	FieldTemplate    = "template"
	FieldConfidence  = "confidence"
	FieldStage       = "stage"
	FieldPage        = "page"
	FieldLine        = "line"
	FieldReason      = "reason"
	FieldOperation   = "operation"
	FieldStatus      = "status"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldCount       = "count"
	FieldDefective   = "defective"
	FieldIssues      = "issues"
	FieldDelimiter   = "delimiter"
	FieldInputFile   = "input_file"
	FieldOutputFile  = "output_file"
	FieldLedgerID    = "ledger_id"
	FieldBytes       = "bytes"
	FieldWorkers     = "workers"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldAttempt     = "attempt"
	FieldComponent   = "component"
	FieldAccount     = "account"
	FieldDateRange   = "date_range"
	FieldTemplateDir = "template_dir"
	FieldDigest      = "digest"
)
