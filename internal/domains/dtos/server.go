package dtos

type ServerStatusResponse struct {
	ActiveSessions int32 `json:"activeSessions"`
	QueueSize      int32 `json:"queueSize"`
	CanAccept      bool  `json:"canAccept"`
	MaxQueueSize   int32 `json:"maxQueueSize"`
}
