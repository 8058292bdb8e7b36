// Package api implements the daemon status API. Clients connect over
// WebSocket and exchange small JSON packets; packet id 1 requests the daemon
// status. Malformed packets or unknown ids close the connection.
package api

// PacketStatus is the only request id the API understands.
const PacketStatus = 1

// Request is a client packet.
type Request struct {
	ID *int `json:"id"`
}

// Job is one queued or running build job in a status response.
type Job struct {
	Project     string `json:"project"`
	Branch      string `json:"branch"`
	DCFile      string `json:"dc_file"`
	Status      int    `json:"status"`
	Commit      string `json:"commit"`
	TimeStarted int64  `json:"time_started"`
}

// StatusResponse answers a status request.
type StatusResponse struct {
	ID              int   `json:"id"`
	RunningBuilds   int   `json:"running_builds"`
	ScheduledBuilds int   `json:"scheduled_builds"`
	Jobs            []Job `json:"jobs"`
}

// Snapshot is the daemon state the server reports.
type Snapshot struct {
	RunningBuilds   int
	ScheduledBuilds int
	Jobs            []Job
}

// StatusProvider supplies the current daemon state.
type StatusProvider interface {
	StatusSnapshot() Snapshot
}
