package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientID  = "client_id"
	FieldAmount    = "amount"
	FieldTotalDebt = "total_debt"
	FieldError     = "error"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentFeed    = "feed"
	ComponentRemote  = "remote"
	ComponentMirror  = "mirror"
)
