// Package reminder defines the reminder entity managed by the sync engine.
//
// A Reminder holds plain identifiers for the two external resources it refers
// to but does not own:
//   - NotificationID: generated once at creation, never changed. It is the only
//     key the notification scheduler uses, so replace and cancel are idempotent.
//   - CalendarLinkID: issued by the calendar store. Empty if and only if no
//     calendar event currently exists for the reminder.
//
// Reminders are mutated only through the engine. The engine never edits the
// value it is given; it returns an updated copy for the caller to persist.
package reminder
