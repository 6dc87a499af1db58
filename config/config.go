// Package config loads the TOML settings shared by the commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blindcash/coin"
	"blindcash/commitment"
	"blindcash/issuance"
	"blindcash/rsablind"

	"github.com/BurntSushi/toml"
)

// Config mirrors blindcash.toml.
type Config struct {
	Bank      Bank      `toml:"bank"`
	Coin      Coin      `toml:"coin"`
	Reconcile Reconcile `toml:"reconcile"`
	Issuance  Issuance  `toml:"issuance"`
}

// Bank holds the signer settings.
type Bank struct {
	KeyBits int    `toml:"key_bits"`
	KeyFile string `toml:"key_file"`
	Tag     string `toml:"tag"`
}

// Coin holds the coin layout.
type Coin struct {
	Slots         int    `toml:"slots"`
	IdentityTag   string `toml:"identity_tag"`
	FragmentWidth int    `toml:"fragment_width"`
}

// Reconcile sizes the deposit table.
type Reconcile struct {
	Capacity int `toml:"capacity"`
}

// Issuance describes the document template for cut-and-choose.
type Issuance struct {
	Prefix     string   `toml:"prefix"`
	Suffix     string   `toml:"suffix"`
	CoverNames []string `toml:"cover_names"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Bank: Bank{
			KeyBits: 2048,
			KeyFile: "bank_keys/private.json",
			Tag:     coin.DefaultTag,
		},
		Coin: Coin{
			Slots:         8,
			IdentityTag:   string(commitment.DefaultTag),
			FragmentWidth: commitment.DefaultWidth,
		},
		Reconcile: Reconcile{Capacity: 1024},
		Issuance: Issuance{
			Prefix: "The bearer of this signed document, ",
			Suffix: ", has full diplomatic immunity.",
			CoverNames: []string{
				"Agent X", "Agent Y", "Agent Z", "John Doe", "Jane Doe",
				"Mr. Smith", "Ms. Johnson", "Dr. Brown", "Captain Rogers", "Black Widow",
			},
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// Relative paths are also looked up in the parent directories.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := readWithFallback(path)
	if err != nil {
		return cfg, err
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readWithFallback(path string) ([]byte, error) {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		candidates = append(candidates, filepath.Join("..", path), filepath.Join("..", "..", path))
	}
	for _, p := range candidates {
		if data, err := os.ReadFile(p); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("read %s: not found", path)
}

// Validate rejects settings the protocols cannot run with.
func (c Config) Validate() error {
	if c.Bank.KeyBits < rsablind.MinKeyBits {
		return fmt.Errorf("config: bank.key_bits %d below %d", c.Bank.KeyBits, rsablind.MinKeyBits)
	}
	if c.Bank.Tag == "" || strings.ContainsAny(c.Bank.Tag, "-,") {
		return fmt.Errorf("config: bank.tag %q must be non-empty without '-' or ','", c.Bank.Tag)
	}
	if c.Coin.Slots < 1 {
		return fmt.Errorf("config: coin.slots must be >= 1")
	}
	if err := c.Codec().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Reconcile.Capacity < 1 {
		return fmt.Errorf("config: reconcile.capacity must be >= 1")
	}
	if len(c.Issuance.CoverNames) < issuance.MinBatch {
		return fmt.Errorf("config: issuance.cover_names needs at least %d entries", issuance.MinBatch)
	}
	return nil
}

// Codec builds the identity codec described by the coin section.
func (c Config) Codec() commitment.Codec {
	return commitment.Codec{Tag: []byte(c.Coin.IdentityTag), Width: c.Coin.FragmentWidth}
}

// Document renders the issuance template for one cover name.
func (c Config) Document(name string) []byte {
	return []byte(c.Issuance.Prefix + name + c.Issuance.Suffix)
}
