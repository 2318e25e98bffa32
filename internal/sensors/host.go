package sensors

import (
	"fmt"
	"sync"

	"periph.io/x/host/v3"
)

var (
	hostOnce    sync.Once
	hostInitErr error
)

// InitHost initializes the periph host drivers once per process.
func InitHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}
