package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

// openSerial opens the command console port, 8N1.
func openSerial(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              cfg.Port,
		BaudRate:              uint(cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return port, nil
}

// readLines forwards every non-blank line from r to out until EOF or ctx is
// done. A partial last line is forwarded too.
func readLines(ctx context.Context, r io.Reader, source string, respond func(telemetry.Reply), out chan<- Line) error {
	reader := bufio.NewReader(r)
	for {
		raw, err := reader.ReadString('\n')
		if text := strings.TrimSpace(raw); text != "" {
			select {
			case out <- Line{Source: source, Text: text, Respond: respond}:
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s read: %w", source, err)
		}
	}
}

// lineWriter answers replies as text lines terminated with CRLF.
func lineWriter(w io.Writer, log *slog.Logger) func(telemetry.Reply) {
	return func(r telemetry.Reply) {
		if _, err := io.WriteString(w, r.Text()+"\r\n"); err != nil {
			log.Warn("reply write failed", "err", err)
		}
	}
}
