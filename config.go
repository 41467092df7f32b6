package tgfetch

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingBotToken = errors.New("BOT_TOKEN is not set")

// Config is everything the bot needs, loaded once at startup from the
// environment (optionally seeded from a .env file).
type Config struct {
	// BotToken authenticates against the chat platform. Required.
	BotToken string
	// DataDir holds the run-history database and per-run scratch directories.
	DataDir string
	// TargetBytes is the soft upper bound for any single file delivered inline.
	TargetBytes int64
	// SizeBudgetBytes bounds the cumulative member size of one archive container.
	SizeBudgetBytes int64
	// CountThreshold bounds the member count of one archive container.
	CountThreshold int
	// DefaultHeight caps video resolution when the command doesn't specify one.
	DefaultHeight int
	// DefaultLimit is how many items a bulk command takes when no limit is given.
	DefaultLimit int
	// UploadBase is the base URL of the remote container host.
	UploadBase string

	ListTimeout   time.Duration
	FetchTimeout  time.Duration
	ShrinkTimeout time.Duration
	UploadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DataDir:         "./data",
		TargetBytes:     49 * 1024 * 1024,
		SizeBudgetBytes: 47 * 1024 * 1024,
		CountThreshold:  10,
		DefaultHeight:   480,
		DefaultLimit:    10,
		UploadBase:      "https://filebin.net",
		ListTimeout:     2 * time.Minute,
		FetchTimeout:    15 * time.Minute,
		ShrinkTimeout:   15 * time.Minute,
		UploadTimeout:   10 * time.Minute,
	}
}

// LoadConfig reads configuration from the environment on top of the
// defaults. A missing BOT_TOKEN is fatal for the bot daemon; callers that
// don't talk to the chat platform can ignore that error.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	c := DefaultConfig()
	c.BotToken = os.Getenv("BOT_TOKEN")
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		c.UploadBase = v
	}
	var err error
	if c.TargetBytes, err = envMB("TARGET_MB", c.TargetBytes); err != nil {
		return c, err
	}
	if c.SizeBudgetBytes, err = envMB("SIZE_BUDGET_MB", c.SizeBudgetBytes); err != nil {
		return c, err
	}
	if c.CountThreshold, err = envInt("COUNT_THRESHOLD", c.CountThreshold); err != nil {
		return c, err
	}
	if c.DefaultHeight, err = envInt("DEFAULT_HEIGHT", c.DefaultHeight); err != nil {
		return c, err
	}
	if c.DefaultLimit, err = envInt("DEFAULT_LIMIT", c.DefaultLimit); err != nil {
		return c, err
	}
	if c.BotToken == "" {
		return c, ErrMissingBotToken
	}
	return c, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envMB(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("invalid %s: %q", key, v)
	}
	return int64(n) * 1024 * 1024, nil
}
