// этот код не зависит от приложения,
// и нужен только для ручной проверки создания заказа через кафку
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

func main() {
	// значения по умолчанию совпадают с config.yaml
	brokerAddress := flag.String("broker", "localhost:9092", "kafka broker address")
	topic := flag.String("topic", "orders", "order intake topic")
	customerID := flag.Int64("customer", 1, "customer id")
	productID := flag.Int64("product", 1, "product id")
	quantity := flag.Int("quantity", 2, "item quantity")
	flag.Parse()

	message := fmt.Sprintf(`{"customerId": %d, "items": [{"productId": %d, "quantity": %d}]}`,
		*customerID, *productID, *quantity)

	// настройки писателя (producer-а)
	writer := &kafka.Writer{
		Addr:     kafka.TCP(*brokerAddress),
		Topic:    *topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Sending create-order message to Kafka...")
	err := writer.WriteMessages(ctx, kafka.Message{Value: []byte(message)})
	if err != nil {
		log.Fatalf("Failed to write message: %v", err)
	}
	fmt.Println("Message sent successfully!")
}
