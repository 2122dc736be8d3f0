package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

const DefaultFulfillmentTopic = "wxpay_order_paid"

// OrderPaidEvent is published once per order when a verified payment
// notification is first applied.
type OrderPaidEvent struct {
	OutTradeNo    string    `json:"out_trade_no"`
	TransactionID string    `json:"transaction_id,omitempty"`
	TotalFee      int64     `json:"total_fee"`
	TradeType     string    `json:"trade_type"`
	Attach        string    `json:"attach,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
}

func NewOrderPaidEvent(order *entity.Order, now time.Time) OrderPaidEvent {
	evt := OrderPaidEvent{
		OutTradeNo: order.OutTradeNo,
		TotalFee:   order.TotalFee,
		TradeType:  order.TradeType,
		PaidAt:     now.UTC(),
	}
	if order.TransactionID != nil {
		evt.TransactionID = *order.TransactionID
	}
	if order.Attach != nil {
		evt.Attach = *order.Attach
	}
	return evt
}

type FulfillmentPublisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

func NewFulfillmentPublisher(producer sarama.SyncProducer, topic string) *FulfillmentPublisher {
	if topic == "" {
		topic = DefaultFulfillmentTopic
	}
	return &FulfillmentPublisher{producer: producer, topic: topic, now: time.Now}
}

// Fulfill publishes the paid order keyed by out_trade_no so every event for
// one order lands on the same partition.
func (p *FulfillmentPublisher) Fulfill(_ context.Context, order *entity.Order) error {
	data, err := json.Marshal(NewOrderPaidEvent(order, p.now()))
	if err != nil {
		return err
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(order.OutTradeNo),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("publish order paid %s: %w", order.OutTradeNo, err)
	}
	return nil
}

func (p *FulfillmentPublisher) Close() error {
	return p.producer.Close()
}

// LogFulfiller only logs; used when no broker is configured.
type LogFulfiller struct {
	logger logrus.FieldLogger
}

func NewLogFulfiller() *LogFulfiller {
	return &LogFulfiller{logger: logrus.WithField("module", "fulfillment")}
}

func (f *LogFulfiller) Fulfill(_ context.Context, order *entity.Order) error {
	f.logger.WithFields(logrus.Fields{
		"out_trade_no": order.OutTradeNo,
		"total_fee":    order.TotalFee,
	}).Info("Order paid")
	return nil
}

func NewKafkaClient(brokers []string, clientID string) (sarama.Client, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if clientID != "" {
		cfg.ClientID = clientID
	}
	return sarama.NewClient(brokers, cfg)
}
