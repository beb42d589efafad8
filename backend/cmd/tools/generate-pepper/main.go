package main

import (
	"fmt"
	"log"

	"github.com/staffhub/staffhub/shared/crypto"
)

func main() {
	pepper, err := crypto.GeneratePepper()
	if err != nil {
		log.Fatalf("Failed to generate identity pepper: %v", err)
	}

	fmt.Println("=================================================")
	fmt.Println("  Identity Pepper (BLAKE2b key)")
	fmt.Println("=================================================")
	fmt.Println()
	fmt.Println("Generated pepper (base64):")
	fmt.Println(pepper)
	fmt.Println()
	fmt.Println("Add this to your config/private.yaml:")
	fmt.Printf("identity_pepper: \"%s\"\n", pepper)
	fmt.Println("or export STAFFHUB_IDENTITY_PEPPER")
	fmt.Println()
	fmt.Println("IMPORTANT:")
	fmt.Println("- Every record key is derived from this pepper")
	fmt.Println("- Changing it orphans all existing users")
	fmt.Println("- Never commit it to version control!")
	fmt.Println("=================================================")
}
