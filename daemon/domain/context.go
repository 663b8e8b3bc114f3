package domain

// Context holds the application runtime context including the event hub and configuration.
type Context struct {
	Hub *EventBus
	Config
}
