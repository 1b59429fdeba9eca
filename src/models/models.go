package models

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Tenant{},
		&User{},
		&ApiCredential{},
		&Order{},
		&OrderItem{},
		&PosOrder{},
		&WebhookLog{},
		&SyncLog{},
		&JobTask{},
		&SubscriptionPlan{},
		&Subscription{},
		&SubscriptionUsage{},
	}
}
