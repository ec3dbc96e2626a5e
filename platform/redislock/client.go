package redislock

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialPingTimeout = 3 * time.Second

// ParseOptions reads a redis:// or rediss:// URL. tlsInsecure skips
// certificate verification and forces TLS on when the URL did not ask for it.
func ParseOptions(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if tlsInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return opt, nil
}

// Dial connects and verifies the server answers PING.
func Dial(ctx context.Context, redisURL string, tlsInsecure bool) (*redis.Client, error) {
	opt, err := ParseOptions(redisURL, tlsInsecure)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, dialPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
