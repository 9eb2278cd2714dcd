package v1

// Status describes the phase the initializer is currently in.
type Status string

const (
	// StatusChecking is set while the initializer is starting up and inspecting its targets
	StatusChecking Status = "checking"
	// StatusWaiting is set while a database endpoint has not accepted a connection yet
	StatusWaiting Status = "waiting"
	// StatusApplying is set while the initialization script is being executed
	StatusApplying Status = "applying"
	// StatusDone is set when initialization has finished and dependent services can start
	StatusDone Status = "done"
	// StatusFailed is set when the attempt cap was exhausted or the script failed
	StatusFailed Status = "failed"
)

// StatusResponse is served by the initializer's status endpoint.
type StatusResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}
