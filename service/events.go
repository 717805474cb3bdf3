package service

// Outbound notification names.
const (
	EventObjectsInit   = "objects-init"
	EventMove          = "move"
	EventObjectGrabbed = "object-grabbed"
	EventBGImpact      = "bg-impact"
	EventMetricUpdate  = "metric-update"
	EventQueueUpdate   = "queue-update"
)

// metricPayload is published with EventMetricUpdate.
type metricPayload struct {
	Metric float64 `json:"metric"`
	Lamp   bool    `json:"lamp"`
}
