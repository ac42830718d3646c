// Command token mints an access token for the API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bwise1/lookaround/config"
	api "github.com/bwise1/lookaround/internal/http/rest"
)

func main() {
	subject := flag.String("sub", "lookaround-client", "token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to AUTH_TOKEN_TTL)")
	flag.Parse()

	cfg := config.New()
	if cfg.AuthSecret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_SECRET is not set")
		os.Exit(1)
	}
	if *ttl == 0 {
		*ttl = cfg.AuthTokenTTL
	}

	token, expiresAt, err := api.CreateToken(cfg.AuthSecret, *subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintln(os.Stderr, "expires", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
}
