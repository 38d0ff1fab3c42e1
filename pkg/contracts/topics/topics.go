package topics

const (
	// Feed: registros de mudança emitidos pelo feed-ingest
	FeedChanges = "feed_changes"

	// Redis Pub/Sub: cotações correntes para o WebSocket do picks-service
	QuotesBroadcast = "quotes_broadcast"
)
