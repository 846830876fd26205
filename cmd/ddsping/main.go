// Command ddsping wires one DomainParticipant end to end: it creates a
// topic and then either a publisher/writer that writes a timestamped payload
// every -period, one second by default (-role=ping), or a subscriber/reader
// that logs every sample it receives (-role=pong), until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/go-rtps/domain"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/stumpy"
)

func main() {
	var (
		domainID = flag.Uint("domain", 0, "DDS domain id")
		role     = flag.String("role", "ping", "ping (writes samples) or pong (reads samples)")
		topic    = flag.String("topic", "ddsping", "topic name")
		period   = flag.Duration("period", time.Second, "ping write interval")
	)
	flag.Parse()

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithWriter(os.Stderr),
	).Logger()

	if err := run(*role, uint32(*domainID), *topic, *period, logger); err != nil {
		logger.Err().Err(err).Log("ddsping: exiting")
		os.Exit(1)
	}
}

func run(role string, domainID uint32, topicName string, period time.Duration, logger *domain.Logger) error {
	p, err := domain.NewDomainParticipant(domainID)
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	p.Logger = logger

	topic, err := p.CreateTopic(topicName, "ddsping.Sample", qos.EndpointQos{})
	if err != nil {
		return fmt.Errorf("create topic: %w", err)
	}

	if err := p.Enable(); err != nil {
		return fmt.Errorf("enable participant: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(closeCtx)
	}()

	switch role {
	case "ping":
		return runPing(ctx, p, topic, period, logger)
	case "pong":
		return runPong(ctx, p, topic, logger)
	default:
		return fmt.Errorf("unknown -role %q, want ping or pong", role)
	}
}

func runPing(ctx context.Context, p *domain.Participant, topic *domain.Topic, period time.Duration, logger *domain.Logger) error {
	pub, err := p.CreatePublisher()
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	dw, err := pub.CreateDataWriter(topic, qos.EndpointQos{})
	if err != nil {
		return fmt.Errorf("create data writer: %w", err)
	}

	var handle guid.InstanceHandle
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			seq++
			payload := fmt.Appendf(nil, "ping %d at %s", seq, time.Now().Format(time.RFC3339Nano))
			if err := dw.Write(handle, payload); err != nil {
				logger.Warning().Err(err).Log("ddsping: write failed")
				continue
			}
			logger.Info().Uint64(`seq`, seq).Log("ddsping: sent")
		}
	}
}

func runPong(ctx context.Context, p *domain.Participant, topic *domain.Topic, logger *domain.Logger) error {
	sub, err := p.CreateSubscriber()
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	dr, err := sub.CreateDataReader(topic, qos.EndpointQos{})
	if err != nil {
		return fmt.Errorf("create data reader: %w", err)
	}
	err = dr.SetListener(domain.DataReaderListener{
		OnDataAvailable: func() {
			changes, err := dr.Take()
			if err != nil {
				return
			}
			for _, c := range changes {
				logger.Info().Str(`payload`, string(c.Data)).Log("ddsping: received")
			}
		},
	})
	if err != nil {
		return fmt.Errorf("set listener: %w", err)
	}

	<-ctx.Done()
	return nil
}
