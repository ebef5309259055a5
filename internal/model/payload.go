package model

// PushPayload is the channel-agnostic wire payload delivered to push
// endpoints and live sessions. Data carries per-type extension fields; the
// click target always travels under data.url.
type PushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon,omitempty"`
	Badge string            `json:"badge,omitempty"`
	Tag   string            `json:"tag,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type payloadPreset struct {
	title string
	icon  string
	tag   string
}

// Per-type rendering presets. Unknown types fall back to a generic preset
// so new event types degrade gracefully instead of failing dispatch.
var payloadPresets = map[NotificationType]payloadPreset{
	NotificationTypeNewMessage:    {title: "New message", icon: "/icons/chat.png", tag: "chat"},
	NotificationTypeFriendRequest: {title: "Friend request", icon: "/icons/friends.png", tag: "friends"},
	NotificationTypeBudgetAlert:   {title: "Budget alert", icon: "/icons/budget.png", tag: "budget"},
	NotificationTypeReminder:      {title: "Reminder", icon: "/icons/planner.png", tag: "planner"},
	NotificationTypeThought:       {title: "A thought for you", icon: "/icons/thought.png", tag: "thoughts"},
}

// NewPushPayload builds the wire payload for a ledger record.
func NewPushPayload(n *Notification) *PushPayload {
	preset, ok := payloadPresets[n.Type]
	if !ok {
		preset = payloadPreset{title: "Notification", tag: "general"}
	}

	return &PushPayload{
		Title: preset.title,
		Body:  n.Content,
		Icon:  preset.icon,
		Badge: "/icons/badge.png",
		Tag:   preset.tag,
		Data: map[string]string{
			"url":             n.Link,
			"notification_id": n.ID.String(),
			"type":            string(n.Type),
		},
	}
}
