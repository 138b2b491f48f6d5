package logging

// Standardized attribute keys shared across the daemon and CLI.
const (
	FieldComponent = "component"
	FieldConnID    = "conn_id"
	FieldMethod    = "method"
	FieldRequestID = "request_id"
	FieldPort      = "port"
	FieldPID       = "pid"
	FieldModelPath = "model_path"
	FieldDuration  = "duration"
	FieldReason    = "reason"
)
