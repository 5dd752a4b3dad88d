package handlers

// HandlerBundle groups the endpoint handlers the router mounts.
type HandlerBundle struct {
	Consultations *ConsultationHandler
	Webhooks      *WebhookHandler
}
