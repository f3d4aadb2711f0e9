package main

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"exchange/config"
	"exchange/infra/kafka"
	"exchange/infra/natsbus"
	"exchange/jobs/broadcaster"
)

// newPublisher returns nil for the "none" driver.
func newPublisher(cfg *config.Config, nc *nats.Conn) (broadcaster.Publisher, error) {
	switch cfg.Broker.Driver {
	case config.DriverSarama:
		p, err := kafka.NewSaramaProducer(cfg.Broker.Brokers, cfg.Broker.Topic)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.DriverKafkaGo:
		return kafka.NewProducer(cfg.Broker.Brokers, cfg.Broker.Topic), nil
	case config.DriverNATS:
		if nc == nil {
			return nil, errors.New("nats driver needs a nats connection")
		}
		return natsbus.NewPublisher(nc, cfg.NATS.EventSubject), nil
	case config.DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Broker.Driver)
	}
}
