// Command devtoken prints a signed access token for local testing.
//
//	go run ./cmd/devtoken -sub alice -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/seating-planner/internal/config"
	"github.com/iliyamo/seating-planner/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "principal id placed in the sub claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	config.LoadDotEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	tok, err := utils.NewAccessToken(secret, *sub, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
