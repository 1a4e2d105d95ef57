// Command issue-token prints a signed bearer token for the ledger API.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nullprotocol/creditledger/internal/config"
	"github.com/nullprotocol/creditledger/internal/pkg/jwt"
)

func main() {
	id := flag.Int64("id", 0, "account id the token acts as (0 for a pure service token)")
	role := flag.String("role", jwt.RoleService, "token role: service or admin")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_ACCESS_TTL)")
	flag.Parse()

	// Initialize config
	cfg := config.Load()

	lifetime := cfg.JWTAccessTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	if *role == jwt.RoleAdmin && *id <= 0 {
		log.Fatalf("admin tokens need -id of an admin account")
	}

	token, err := jwt.NewService(cfg.JWTSecret, lifetime).GenerateToken(*id, *role)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	log.Printf("role=%s id=%d expires=%s", *role, *id, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
