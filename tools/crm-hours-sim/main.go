// crm-hours-sim publishes a test crm.consultant.hours.updated.v1 event so the
// scheduling service's consumer can be exercised without the CRM backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseantoniobg/financial-platform-scheduling/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		brokers      = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic        = flag.String("topic", getenv("CRM_HOURS_TOPIC", "crm.consultant.hours.updated.v1"), "topic to publish to")
		consultantID = flag.String("consultant-id", getenv("CONSULTANT_ID", ""), "consultant uuid")
		workdayStart = flag.Int("workday-start", 8*60, "workday start, minutes from midnight")
		workdayEnd   = flag.Int("workday-end", 18*60, "workday end, minutes from midnight")
		slotMinutes  = flag.Int("slot-minutes", 60, "slot duration in minutes")
	)
	flag.Parse()

	if strings.TrimSpace(*consultantID) == "" {
		fatal("CONSULTANT_ID is required")
	}
	if *workdayEnd <= *workdayStart {
		fatal("workday-end must be after workday-start")
	}

	payload, err := json.Marshal(map[string]any{
		"consultant_id":         *consultantID,
		"workday_start_minutes": *workdayStart,
		"workday_end_minutes":   *workdayEnd,
		"slot_minutes":          *slotMinutes,
	})
	if err != nil {
		fatal(err.Error())
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: kafkax.SplitBrokers(*brokers),
		Topic:   *topic,
	})
	defer writer.Close()

	eventID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(*consultantID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(*topic)},
		},
	})
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published %s event_id=%s consultant_id=%s\n", *topic, eventID, *consultantID)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
