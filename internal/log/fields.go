package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldMealID   = "meal_id"
	FieldMealDate = "meal_date"
	FieldMealSlot = "meal_slot"
	FieldFood     = "food"
	FieldCalories = "calories"
	FieldUser     = "user"
	FieldSheetRef = "sheet_ref"
)

// Components defines standard component names
const (
	ComponentServer    = "http_server"
	ComponentStorage   = "storage"
	ComponentAuth      = "auth"
	ComponentService   = "meal_service"
	ComponentExporter  = "export_worker"
	ComponentOAuthInit = "oauth_init"
	ComponentAMQP      = "amqp"
	ComponentTemplate  = "template"
)
