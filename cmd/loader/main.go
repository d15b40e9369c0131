// Loader publishes observation records to the observations topic, one
// JSON record per input line. Used by scrape jobs and for backfills;
// replayed lines are absorbed downstream by the store's dedupe.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/broker"
	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

func main() {
	input := flag.String("input", "-", "path to a JSON-lines file of observation records, - for stdin")
	flag.Parse()

	cfg := config.Load()

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicObservations)
	defer producer.Close()
	publisher := broker.NewEventPublisher(producer)

	ctx := context.Background()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line, published, failed := 0, 0, 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec models.ObservationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Printf("line %d: skipping unparseable record: %v", line, err)
			failed++
			continue
		}
		if rec.SKU == "" || rec.SellerID == "" {
			log.Printf("line %d: skipping record without sku/seller_id", line)
			failed++
			continue
		}

		if err := publisher.PublishObservation(ctx, &rec); err != nil {
			log.Fatalf("line %d: publish failed: %v", line, err)
		}
		published++
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed reading input: %v", err)
	}

	fmt.Printf("published %d records, skipped %d\n", published, failed)
}
