package shared

const (
	ProjectID = "pulseloop-project" // Can be overridden by env var in main if needed

	TopicUserEvents   = "topic-user-events"
	TopicSystemEvents = "topic-system-events"

	DumpPrefixNotification = "notification"
	DumpPrefixTasks        = "tasks"

	CollectionDumps = "dumps"

	UserEventRoutingKey = "UserCommunicationMessage"

	TaskProcessEvent = "process_event"
	TaskNotifyError  = "notify_error"
)
