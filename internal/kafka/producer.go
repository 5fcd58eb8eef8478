package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer: buffered async writer. Publish tidak pernah memblokir request path
// lebih dari kapasitas inbox; error write dicatat, tidak menggagalkan order.
type Producer struct {
	w       *kafka.Writer
	log     *zap.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
}

// NewProducer mengembalikan nil kalau brokers kosong; method di bawah aman
// dipanggil pada nil receiver (event publishing jadi no-op).
func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start() {
	if p == nil {
		return
	}
	go func() {
		// drain sampai inbox ditutup lewat Close(), lalu flush & tutup writer
		for m := range p.inbox {
			p.write(m)
		}
		_ = p.w.Close()
		close(p.closeCh)
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Warn("kafka write failed", zap.String("topic", p.w.Topic), zap.Error(err))
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	if p == nil {
		return
	}
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close menutup inbox supaya goroutine flush sisa pesan lalu exit rapi.
func (p *Producer) Close() {
	if p == nil {
		return
	}
	close(p.inbox)
}

func (p *Producer) WaitClosed() {
	if p == nil {
		return
	}
	<-p.closeCh
}
