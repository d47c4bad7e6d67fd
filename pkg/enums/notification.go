package enums

import "slices"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeParcelCreated NotificationType = "parcel_created"
	NotificationTypeParcelStatus  NotificationType = "parcel_status"
	NotificationTypeLegAssigned   NotificationType = "leg_assigned"
	NotificationTypePayment       NotificationType = "payment"
	NotificationTypePayout        NotificationType = "payout"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeParcelCreated,
	NotificationTypeParcelStatus,
	NotificationTypeLegAssigned,
	NotificationTypePayment,
	NotificationTypePayout,
}

func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

func ParseNotificationType(value string) (NotificationType, error) {
	return parseOneOf("notification type", value, validNotificationTypes)
}
