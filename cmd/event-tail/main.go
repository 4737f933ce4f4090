package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ms-reservation/internal/config"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/joho/godotenv"
)

// Follows the ticket event topics and prints every booking, cancellation
// and promotion as it is published.
func main() {
	group := flag.String("group", "reservation-event-tail", "kafka consumer group id")
	flag.Parse()

	_ = godotenv.Load() // Loads .env file if present
	cfg := config.Load()

	log, err := logger.NewLogger("", "reservation-event-tail")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	topics := []string{cfg.Kafka.Topics.TicketBooked, cfg.Kafka.Topics.TicketCancelled, cfg.Kafka.Topics.TicketPromoted}
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, *group, log)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("KAFKA", fmt.Sprintf("Tailing %s on %v", strings.Join(topics, ", "), cfg.Kafka.Brokers))
	err = consumer.Start(ctx, func(topic string, ev models.TicketEvent) {
		switch ev.Type {
		case models.TicketEventPromoted:
			log.LogCascade(string(ev.FromTier), string(ev.Tier), ev.PNR)
		default:
			log.LogBooking(strings.ToUpper(strings.TrimPrefix(ev.Type, "ticket.")), ev.PNR,
				fmt.Sprintf("tier %s, berths %v", ev.Tier, ev.BerthIDs))
		}
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal("KAFKA", err.Error())
	}
}
