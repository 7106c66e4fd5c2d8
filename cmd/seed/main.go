// Command seed generates the bcrypt passcode hashes the server reads
// from STAFF_PASSCODE_HASH and MANAGER_PASSCODE_HASH.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	staff := flag.String("staff", "", "Staff passcode to hash")
	manager := flag.String("manager", "", "Manager passcode to hash")
	flag.Parse()

	if *staff == "" {
		*staff = os.Getenv("SEED_STAFF_PASSCODE")
	}
	if *manager == "" {
		*manager = os.Getenv("SEED_MANAGER_PASSCODE")
	}

	if *staff == "" && *manager == "" {
		log.Fatal("Provide -staff and/or -manager passcodes to hash")
	}

	if *staff != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*staff), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Unable to hash staff passcode: %v", err)
		}
		fmt.Printf("STAFF_PASSCODE_HASH=%s\n", hash)
	}

	if *manager != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*manager), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Unable to hash manager passcode: %v", err)
		}
		fmt.Printf("MANAGER_PASSCODE_HASH=%s\n", hash)
	}
}
