package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pickup-service/internal/model"

	"github.com/avast/retry-go"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxRetryAttempts = 3
	initialDelay     = 500 * time.Millisecond
	maxDelay         = 5 * time.Second
)

// EventConsumer drains published task events from RabbitMQ and pushes them
// onto the socket hub. Delivery to clients is fire-and-forget; a handler
// error nacks the message to the dead-letter path after retries.
type EventConsumer struct {
	rmq  *RabbitMQ
	hub  *Hub
	done chan struct{}
}

func NewEventConsumer(rmq *RabbitMQ, hub *Hub) *EventConsumer {
	return &EventConsumer{
		rmq:  rmq,
		hub:  hub,
		done: make(chan struct{}),
	}
}

func (c *EventConsumer) Start() {
	go c.consume()
}

func (c *EventConsumer) consume() {
	for {
		select {
		case <-c.done:
			return
		default:
			msgs, err := c.rmq.Consume()
			if err != nil {
				log.Printf("consumer: %v, retrying in 5s...", err)
				time.Sleep(5 * time.Second)
				continue
			}

			log.Println("consumer: listening for task events")
			c.processMessages(msgs)
		}
	}
}

func (c *EventConsumer) processMessages(msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("consumer: channel closed, reconnecting...")
				return
			}
			c.processMessage(msg)
		}
	}
}

func (c *EventConsumer) processMessage(msg amqp.Delivery) {
	err := retry.Do(
		func() error {
			return c.handle(msg)
		},
		retry.Attempts(maxRetryAttempts),
		retry.Delay(initialDelay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("consumer: retry %d for %s: %v", n+1, msg.RoutingKey, err)
		}),
	)

	if err != nil {
		log.Printf("consumer: giving up on %s: %v", msg.RoutingKey, err)
		msg.Nack(false, false)
		return
	}

	msg.Ack(false)
}

func (c *EventConsumer) handle(msg amqp.Delivery) error {
	switch msg.RoutingKey {
	case RoutingKeyAssignTask:
		var event AssignTaskEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			log.Printf("consumer: bad assign_task payload: %v", err)
			return nil
		}
		c.hub.Broadcast(EventAssignTask, event)
		c.hub.SendToUser(event.Collector.ID, EventAssignTask, event)
		return nil

	case RoutingKeyTaskUpdate:
		var event TaskUpdateEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			log.Printf("consumer: bad task_update payload: %v", err)
			return nil
		}
		c.hub.Broadcast(EventTaskUpdate, event)
		if event.Status == model.TaskCompleted {
			c.hub.SendToRole(model.RoleAdmin, EventTaskUpdate, event)
		}
		return nil
	}

	return fmt.Errorf("unknown routing key %q", msg.RoutingKey)
}

func (c *EventConsumer) Stop() {
	close(c.done)
}
