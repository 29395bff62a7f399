// Command token mints a bearer token for the warden API. The subject is the
// moderator name recorded as the actor of issued punishments.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"warden/internal/platform/config"
	"warden/internal/platform/middleware"
)

func main() {
	subject := flag.String("subject", "", "moderator name to embed as the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "token: -subject is required")
		os.Exit(2)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	token, err := middleware.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer).IssueToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
