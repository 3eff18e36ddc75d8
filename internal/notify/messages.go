package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/barberfinder/internal/model"
)

// AppointmentConfirmed builds the confirmation sent to a client.
func AppointmentConfirmed(subjectID, shop string, at time.Time, now time.Time) model.Notification {
	return newNotification(subjectID, model.KindAppointmentConfirmed, model.PriorityMedium,
		"Appointment confirmed",
		fmt.Sprintf("Your appointment at %s is confirmed for %s at %s.",
			shop, at.Format("02/01/2006"), at.Format("15:04")),
		now)
}

// AppointmentCancelled builds the cancellation notice.
func AppointmentCancelled(subjectID, shop string, now time.Time) model.Notification {
	return newNotification(subjectID, model.KindAppointmentCancelled, model.PriorityHigh,
		"Appointment cancelled",
		fmt.Sprintf("Your appointment at %s was cancelled.", shop),
		now)
}

// AppointmentReminder builds the one-hour reminder.
func AppointmentReminder(subjectID, shop string, at time.Time, now time.Time) model.Notification {
	return newNotification(subjectID, model.KindAppointmentReminder, model.PriorityHigh,
		"Appointment reminder",
		fmt.Sprintf("Your appointment at %s is in 1 hour (%s). Don't be late!", shop, at.Format("15:04")),
		now)
}

func newNotification(subjectID string, kind model.NotificationKind, pri model.Priority, title, msg string, now time.Time) model.Notification {
	return model.Notification{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Kind:      kind,
		Priority:  pri,
		Title:     title,
		Message:   msg,
		CreatedAt: now,
	}
}
