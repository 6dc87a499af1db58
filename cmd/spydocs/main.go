package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"

	"blindcash/config"
	"blindcash/issuance"
	"blindcash/randutil"
	"blindcash/rsablind"
)

func main() {
	cfgPath := flag.String("config", "", "TOML config (defaults when empty)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Println("[spydocs-cli] starting cut-and-choose demo")

	agency, err := rsablind.GenerateKey(rand.Reader, cfg.Bank.KeyBits)
	if err != nil {
		log.Fatalf("agency key: %v", err)
	}
	defer agency.Close()

	docs := make([][]byte, len(cfg.Issuance.CoverNames))
	for i, name := range cfg.Issuance.CoverNames {
		docs[i] = cfg.Document(name)
	}

	prng, err := randutil.New()
	if err != nil {
		log.Fatalf("prng: %v", err)
	}
	batch, err := issuance.NewBatch(agency.Public(), docs, prng)
	if err != nil {
		log.Fatalf("prepare batch: %v", err)
	}
	selected, sig, err := issuance.Run(batch, agency, prng,
		issuance.WithPolicy(issuance.MatchTemplate(cfg.Issuance.Prefix, cfg.Issuance.Suffix)))
	if err != nil {
		log.Fatalf("issuance: %v", err)
	}

	fmt.Printf("Selected document %d (%s)\n", selected, cfg.Issuance.CoverNames[selected])
	fmt.Printf("Signature: %s\n", sig.Text(16))
	fmt.Println("Valid:", rsablind.Verify(agency.Public(), docs[selected], sig))
}
