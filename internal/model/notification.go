package model

// NotificationRecord is the single persisted row describing the most recently
// received notification. Receiving a new notification overwrites it
// unconditionally; there is no history.
type NotificationRecord struct {
	NotificationID        string `json:"notificationId"`
	Title                 string `json:"title"`
	Body                  string `json:"body"`
	ExtendedProperty      string `json:"extendedProperty"`
	IsClickedNotification bool   `json:"isClickedNotification"`
	// ReceivedDate is epoch seconds at intake time.
	ReceivedDate   int64 `json:"receivedDate"`
	IsSentEventLog bool  `json:"isSentEventLog"`
}
