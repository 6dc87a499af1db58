package main

import (
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"blindcash/coin"
	"blindcash/config"
	"blindcash/keys"
	"blindcash/randutil"
	"blindcash/redemption"
	"blindcash/rsablind"
)

func main() {
	cfgPath := flag.String("config", "", "TOML config (defaults when empty)")
	owner := flag.String("owner", "alice", "coin owner identity")
	amount := flag.Uint64("amount", 20, "coin amount")
	out := flag.String("out", "", "optional path to save the minted coin envelope")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Println("[cash-cli] starting e-cash demo")

	bank, err := loadOrCreateBank(cfg)
	if err != nil {
		log.Fatalf("bank key: %v", err)
	}
	defer bank.Close()
	pub := bank.Public()

	prng, err := randutil.New()
	if err != nil {
		log.Fatalf("prng: %v", err)
	}
	c, err := coin.New(pub, []byte(*owner), *amount, cfg.Coin.Slots,
		coin.WithCodec(cfg.Codec()), coin.WithTag(cfg.Bank.Tag), coin.WithPRNG(prng))
	if err != nil {
		log.Fatalf("mint coin: %v", err)
	}
	fmt.Println("Blinded coin:", c.Blinded().Text(16))

	blindSig, err := bank.Sign(c.Blinded())
	if err != nil {
		log.Fatalf("bank sign: %v", err)
	}
	if err := c.AttachSignature(blindSig); err != nil {
		log.Fatalf("attach signature: %v", err)
	}
	if err := c.Unblind(); err != nil {
		log.Fatalf("unblind: %v", err)
	}
	fmt.Println("Coin:", c.String())
	fmt.Println("Signature valid:", c.VerifySignature())

	if *out != "" {
		if err := coin.Save(*out, c); err != nil {
			log.Fatalf("save coin: %v", err)
		}
		log.Printf("[cash-cli] coin envelope saved to %s", *out)
	}

	// The owner spends the same coin at two merchants.
	ris1, err := redemption.Redeem(pub, c, prng)
	if err != nil {
		log.Fatalf("first redemption: %v", err)
	}
	ris2, err := redemption.Redeem(pub, c, prng)
	if err != nil {
		log.Fatalf("second redemption: %v", err)
	}
	fmt.Printf("Redemptions revealed %s and %s fragments\n", ris1.Side, ris2.Side)

	rc, err := redemption.NewReconciler(cfg.Codec(), cfg.Reconcile.Capacity)
	if err != nil {
		log.Fatalf("reconciler: %v", err)
	}
	for _, rec := range []redemption.Record{ris1, ris2} {
		v, err := rc.Submit(rec)
		if err != nil {
			log.Fatalf("deposit: %v", err)
		}
		if v != nil {
			fmt.Println("Deposit verdict:", v)
		}
	}

	// A merchant depositing the same redemption twice.
	v, err := redemption.IdentifyCheater(cfg.Codec(), c.GUID(), ris1, ris1)
	if err != nil {
		log.Fatalf("identify cheater: %v", err)
	}
	fmt.Println("Replay verdict:", v)
}

func loadOrCreateBank(cfg config.Config) (*rsablind.Signer, error) {
	s, err := keys.LoadPrivate(cfg.Bank.KeyFile)
	if err == nil {
		log.Printf("[cash-cli] loaded bank key from %s", cfg.Bank.KeyFile)
		return s, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	s, err = rsablind.GenerateKey(rand.Reader, cfg.Bank.KeyBits)
	if err != nil {
		return nil, err
	}
	if err := keys.SavePrivate(cfg.Bank.KeyFile, s); err != nil {
		return nil, fmt.Errorf("save key: %w", err)
	}
	log.Printf("[cash-cli] new bank key saved to %s", cfg.Bank.KeyFile)
	return s, nil
}
