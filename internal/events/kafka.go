package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaWriter is the part of *kafka.Writer the sink uses, so tests can fake it.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards bus events to a Kafka topic. Publishing never blocks the bus: events
// are buffered and dropped with a warning when the buffer is full.
type KafkaSink struct {
	writer KafkaWriter
	log    logrus.FieldLogger
	queue  chan Event
	wg     sync.WaitGroup
	unsub  func()

	mu     sync.Mutex
	closed bool
}

const kafkaQueueSize = 256

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaSink(writer KafkaWriter, log logrus.FieldLogger) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		log:    log.WithField("component", "kafka_sink"),
		queue:  make(chan Event, kafkaQueueSize),
	}
}

// Attach subscribes the sink to the bus and starts the writer loop.
func (s *KafkaSink) Attach(bus *Bus) {
	s.unsub = bus.Subscribe(s.enqueue)
	s.wg.Add(1)
	go s.run()
}

func (s *KafkaSink) enqueue(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.log.WithField("event_id", e.ID).Warn("kafka queue full, dropping event")
	}
}

func (s *KafkaSink) run() {
	defer s.wg.Done()
	for e := range s.queue {
		payload, err := json.Marshal(e)
		if err != nil {
			s.log.WithError(err).Error("marshal event")
			continue
		}

		key := e.ID.String()
		if e.DestinationID != nil {
			key = e.DestinationID.String()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
		cancel()
		if err != nil {
			s.log.WithError(err).WithField("event_id", e.ID).Warn("failed to publish event")
		}
	}
}

// Close detaches from the bus, drains the queue and closes the writer.
func (s *KafkaSink) Close() error {
	if s.unsub != nil {
		s.unsub()
	}
	s.mu.Lock()
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return s.writer.Close()
}
