package models

// All lists every persisted model, in dependency order. Used by the sqlite bootstrap and
// test helpers; Postgres schemas come from the goose migrations.
func All() []any {
	return []any{
		&Rider{},
		&Parcel{},
		&TrackingEvent{},
		&BillingLedger{},
		&Payout{},
		&Notification{},
	}
}
