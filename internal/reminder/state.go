package reminder

// SyncState describes the relationship between a reminder and its external
// side effects.
type SyncState string

const (
	// StateUnsynced: the entity exists but has no outstanding alert.
	StateUnsynced SyncState = "unsynced"
	// StateAlertOnly: an alert is scheduled, no calendar event is linked.
	StateAlertOnly SyncState = "alert_only"
	// StateAlertAndEvent: an alert is scheduled and a calendar event is linked.
	StateAlertAndEvent SyncState = "alert_and_event"
	// StateCompleted: no alert. A calendar event may remain as history.
	StateCompleted SyncState = "completed"
)

// StateOf derives the sync state of r given whether its alert is scheduled.
func StateOf(r *Reminder, alertScheduled bool) SyncState {
	switch {
	case r.Completed:
		return StateCompleted
	case !alertScheduled:
		return StateUnsynced
	case r.HasCalendarLink():
		return StateAlertAndEvent
	default:
		return StateAlertOnly
	}
}
