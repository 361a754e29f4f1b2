package realtime

// Named realtime streams exposed by the engine.
const (
	StreamNotifications = "notifications"
	StreamVerification  = "verification"
)
