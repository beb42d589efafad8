// Command identity prints the record key for an email and, with -token, a
// signed access token for it. Handy for seeding and manual API calls.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/staffhub/staffhub/shared/config"
	"github.com/staffhub/staffhub/shared/crypto"
	"github.com/staffhub/staffhub/shared/jwt"
)

func main() {
	var (
		configFolder string
		email        string
		withToken    bool
	)
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.StringVar(&email, "email", "", "email to hash")
	flag.BoolVar(&withToken, "token", false, "also print an access token")
	flag.Parse()

	if email == "" {
		log.Fatal("-email is required")
	}

	cfg := config.MustLoad(configFolder)
	hasher, err := crypto.NewIdentityHasher(cfg.Private.IdentityPepper)
	if err != nil {
		log.Fatalf("Failed to create hasher: %v", err)
	}

	id := hasher.HashedEmail(email)
	fmt.Println(id)

	if withToken {
		token, err := jwt.New(cfg.JwtKey(), cfg.JwtTTL()).NewToken(id)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Println(token)
	}
}
