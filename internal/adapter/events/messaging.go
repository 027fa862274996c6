package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange       = "ecommerce.events"
	CartSyncedRoutingKey = "cart.synced.v1"
	EventTypeCartSynced  = "CartSynced"
)

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
