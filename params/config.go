package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the SDK needs to sign for and reach one sequencer
// environment. PrivateKey is hex (32 or 40 bytes decoded) and must never be
// logged.
type Config struct {
	ApiURL       string
	WsURL        string
	ChainID      uint32
	AccountIndex int64
	ApiKeyIndex  uint8
	PrivateKey   string

	// SubmitTimeout bounds one submission round trip.
	SubmitTimeout time.Duration
	// NonceStaleness is how long cached nonce state stays trusted before the
	// allocator consults the sequencer again.
	NonceStaleness time.Duration
}

func Default() Config {
	return Config{
		ApiURL:         "https://testnet.zklighter.elliot.ai",
		WsURL:          "wss://testnet.zklighter.elliot.ai/stream",
		ChainID:        304,
		SubmitTimeout:  10 * time.Second,
		NonceStaleness: 30 * time.Second,
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if url := os.Getenv("LIGHTER_API_URL"); url != "" {
		cfg.ApiURL = url
	}
	if url := os.Getenv("LIGHTER_WS_URL"); url != "" {
		cfg.WsURL = url
	}
	if key := os.Getenv("LIGHTER_API_KEY"); key != "" {
		cfg.PrivateKey = key
	}
	if acct := os.Getenv("LIGHTER_ACCOUNT_INDEX"); acct != "" {
		if v, err := strconv.ParseInt(acct, 10, 64); err == nil {
			cfg.AccountIndex = v
		}
	}
	if idx := os.Getenv("LIGHTER_API_KEY_INDEX"); idx != "" {
		if v, err := strconv.ParseUint(idx, 10, 8); err == nil {
			cfg.ApiKeyIndex = uint8(v)
		}
	}
	if chain := os.Getenv("LIGHTER_CHAIN_ID"); chain != "" {
		if v, err := strconv.ParseUint(chain, 10, 32); err == nil {
			cfg.ChainID = uint32(v)
		}
	}
	if ms := os.Getenv("LIGHTER_SUBMIT_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.SubmitTimeout = time.Duration(v) * time.Millisecond
		}
	}
	if ms := os.Getenv("LIGHTER_NONCE_STALENESS_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.NonceStaleness = time.Duration(v) * time.Millisecond
		}
	}

	return cfg
}
