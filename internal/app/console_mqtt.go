package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/relabs-tech/optical_tachometer/internal/command"
	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

// RunConsoleMQTT prints readings, alignment advice and command replies
// published by the tachometer. Lines typed on stdin go to the command topic.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	log := slog.Default().With("component", "console")

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDConsole, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeJSON(client, cfg.MQTT.TopicReading, log, func(r telemetry.Reading) {
		fmt.Println(formatReading(r))
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicAlignment, log, func(a telemetry.Alignment) {
		fmt.Println(formatAlignment(a))
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicReply, log, func(r telemetry.Reply) {
		fmt.Println(formatReply(r))
	}); err != nil {
		return err
	}

	lines := make(chan Line, 4)
	go func() {
		if err := readLines(ctx, os.Stdin, "stdin", nil, lines); err != nil {
			log.Warn("stdin closed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case l := <-lines:
			if _, err := command.Parse(l.Text); err != nil {
				continue
			}
			token := client.Publish(cfg.MQTT.TopicCommand, 0, false, l.Text)
			if !token.WaitTimeout(publishTimeout) {
				log.Warn("command publish timed out", "line", l.Text)
			} else if err := token.Error(); err != nil {
				log.Warn("command publish failed", "line", l.Text, "err", err)
			}
		}
	}
}
