package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

// Round trip through the embedded broker: the publisher on one client, the
// JSON subscriber on another.
func TestMQTT_PublisherToSubscriberThroughEmbeddedBroker(t *testing.T) {
	log := quietLogger()
	const addr = "127.0.0.1:18831"

	srv, err := startEmbeddedBroker(addr, log)
	require.NoError(t, err)
	defer srv.Close()

	topics := config.DefaultConfig().MQTT

	sub, err := connectMQTT("tcp://"+addr, "test-sub", log)
	require.NoError(t, err)
	defer sub.Disconnect(100)

	readings := make(chan telemetry.Reading, 1)
	replies := make(chan telemetry.Reply, 1)
	require.NoError(t, subscribeJSON(sub, topics.TopicReading, log, func(r telemetry.Reading) { readings <- r }))
	require.NoError(t, subscribeJSON(sub, topics.TopicReply, log, func(r telemetry.Reply) { replies <- r }))

	pubClient, err := connectMQTT("tcp://"+addr, "test-pub", log)
	require.NoError(t, err)
	defer pubClient.Disconnect(100)
	pub := &mqttPublisher{client: pubClient, topics: topics, log: log}

	pub.PublishReading(telemetry.Reading{Session: "abc", RPM: 321.5, Stripes: 36})
	pub.PublishReply(telemetry.Reply{Session: "abc", Command: "status", OK: true, Output: "online"})

	select {
	case r := <-readings:
		assert.Equal(t, "abc", r.Session)
		assert.Equal(t, 321.5, r.RPM)
	case <-time.After(5 * time.Second):
		t.Fatal("reading not received")
	}
	select {
	case r := <-replies:
		assert.Equal(t, "online", r.Output)
	case <-time.After(5 * time.Second):
		t.Fatal("reply not received")
	}
}
