package vip

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/barberfinder/internal/model"
)

// RenewURL is the action link attached to VIP notifications.
func RenewURL(providerID string) string {
	return "/barber/vip?barbershop=" + providerID
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func expiringSoon(id string, p model.Provider, st Status, now time.Time) model.Notification {
	meta := map[string]any{"days_left": st.DaysLeft}
	if p.VIPExpiresAt != nil {
		meta["expires_at"] = p.VIPExpiresAt.UTC().Format(time.RFC3339)
	}
	return model.Notification{
		ID:        id,
		SubjectID: p.ID,
		Kind:      model.KindVIPExpiringSoon,
		Priority:  model.PriorityHigh,
		Title:     "Your VIP plan expires soon",
		Message: fmt.Sprintf("Your VIP highlight expires in %s. Renew now to keep appearing at the top!",
			pluralDays(st.DaysLeft)),
		CreatedAt: now,
		ActionURL: RenewURL(p.ID),
		Metadata:  meta,
	}
}

func expired(id string, p model.Provider, now time.Time) model.Notification {
	var meta map[string]any
	if p.VIPExpiresAt != nil {
		meta = map[string]any{"expires_at": p.VIPExpiresAt.UTC().Format(time.RFC3339)}
	}
	return model.Notification{
		ID:        id,
		SubjectID: p.ID,
		Kind:      model.KindVIPExpired,
		Priority:  model.PriorityUrgent,
		Title:     "Your VIP plan has expired",
		Message:   "Your highlight expired and your barbershop dropped to the end of the list. Activate VIP to keep reaching new clients.",
		CreatedAt: now,
		ActionURL: RenewURL(p.ID),
		Metadata:  meta,
	}
}

// Activated builds the vip_activated notification emitted by the external
// activation flow.
func Activated(p model.Provider, plan model.VIPPlan, now time.Time) model.Notification {
	n := model.Notification{
		ID:        uuid.NewString(),
		SubjectID: p.ID,
		Kind:      model.KindVIPActivated,
		Priority:  model.PriorityHigh,
		Title:     "VIP plan activated!",
		Message:   "Congratulations! Your barbershop now appears at the top of the list with a gold highlight.",
		CreatedAt: now,
		ActionURL: RenewURL(p.ID),
		Metadata: map[string]any{
			"plan":       string(plan),
			"expires_at": ExpiresAt(plan, now).UTC().Format(time.RFC3339),
		},
	}
	return n
}
