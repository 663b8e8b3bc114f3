// Command eventproducer is a reference SystemEvent producer: it
// subscribes to an MQTT topic of JSON-encoded events and forwards each
// one to a running engine's HTTP ingest endpoint. It demonstrates the
// external transport contract the core engine package deliberately stays
// out of, and is not required to run the engine itself.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ruaan-deysel/eventwatch/daemon/dto"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	topic := flag.String("topic", "eventwatch/events", "MQTT topic carrying JSON SystemEvents")
	clientID := flag.String("client-id", "eventwatch-eventproducer", "MQTT client id")
	ingestURL := flag.String("ingest-url", "http://localhost:8043/api/v1/ingest", "engine HTTP ingest endpoint")
	flag.Parse()

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID(*clientID).
		SetAutoReconnect(true)

	httpClient := &http.Client{Timeout: 5 * time.Second}

	opts.SetDefaultPublishHandler(func(c mqtt.Client, msg mqtt.Message) {
		var event dto.SystemEvent
		if err := json.Unmarshal(msg.Payload(), &event); err != nil {
			logger.Error("eventproducer: failed to decode event: %v", err)
			return
		}
		if err := forward(httpClient, *ingestURL, event); err != nil {
			logger.Error("eventproducer: failed to forward event: %v", err)
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("eventproducer: connect failed: %v", token.Error())
	}
	defer client.Disconnect(250)

	if token := client.Subscribe(*topic, 1, nil); token.Wait() && token.Error() != nil {
		logger.Fatal("eventproducer: subscribe failed: %v", token.Error())
	}
	logger.Info("eventproducer: subscribed to %s on %s", *topic, *broker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

// forward posts event as JSON to the engine's ingest endpoint.
func forward(client *http.Client, url string, event dto.SystemEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}
