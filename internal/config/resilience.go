package config

import (
	"time"

	"github.com/kilebles/ozon-parser/internal/retry"
)

// ResilienceConfig bundles retry settings per external concern. Browser
// navigation is deliberately absent: a challenge page is handled by a
// blocking wait inside the parser, not by retry with backoff.
type ResilienceConfig struct {
	SheetRead  retry.Config
	SheetWrite retry.Config
	Notify     retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	SheetWrite: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	Notify: retry.Config{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    10 * time.Second,
	},
}
