package coin

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"blindcash/commitment"
	"blindcash/rsablind"
)

const envelopeVersion = "blindcash-coin-v1"

// Envelope is the owner-side JSON form of a coin. Unlike the wire form it
// carries the owner identity and the blinding factor, so it must stay with
// the owner.
type Envelope struct {
	Version   string   `json:"version"`
	Tag       string   `json:"tag"`
	Owner     string   `json:"owner"`
	Amount    uint64   `json:"amount"`
	GUID      string   `json:"guid"`
	BankN     string   `json:"bank_n"`
	BankE     string   `json:"bank_e"`
	Left      []string `json:"left"`
	Right     []string `json:"right"`
	Blinded   string   `json:"blinded,omitempty"`
	Factor    string   `json:"factor,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Signed    bool     `json:"signed"`
	Unblinded bool     `json:"unblinded"`
}

// MarshalJSON implements json.Marshaler.
func (c *Coin) MarshalJSON() ([]byte, error) {
	env := Envelope{
		Version:   envelopeVersion,
		Tag:       c.tag,
		Owner:     hex.EncodeToString(c.owner),
		Amount:    c.amount,
		GUID:      GUIDString(c.guid),
		BankN:     intToHex(c.bank.N),
		BankE:     intToHex(c.bank.E),
		Left:      make([]string, len(c.pairs)),
		Right:     make([]string, len(c.pairs)),
		Blinded:   intToHex(c.blinded),
		Factor:    intToHex(c.factor),
		Signature: intToHex(c.signature),
		Signed:    c.signed,
		Unblinded: c.unblinded,
	}
	for i, p := range c.pairs {
		env.Left[i] = hex.EncodeToString(p.Left)
		env.Right[i] = hex.EncodeToString(p.Right)
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler. Lifecycle flags are restored
// as stored, so a decoded coin keeps refusing out-of-order steps.
func (c *Coin) UnmarshalJSON(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("coin: decode envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return fmt.Errorf("coin: unsupported envelope version %q", env.Version)
	}
	if err := checkTag(env.Tag); err != nil {
		return err
	}
	owner, err := hex.DecodeString(env.Owner)
	if err != nil {
		return fmt.Errorf("coin: owner: %w", err)
	}
	guid, err := ParseGUID(env.GUID)
	if err != nil {
		return err
	}
	var n, e, blinded, factor, sig *big.Int
	for _, f := range []struct {
		name string
		src  string
		dst  **big.Int
	}{
		{"bank_n", env.BankN, &n},
		{"bank_e", env.BankE, &e},
		{"blinded", env.Blinded, &blinded},
		{"factor", env.Factor, &factor},
		{"signature", env.Signature, &sig},
	} {
		v, err := hexToInt(f.src)
		if err != nil {
			return fmt.Errorf("coin: %s: %w", f.name, err)
		}
		*f.dst = v
	}
	if len(env.Left) == 0 || len(env.Left) != len(env.Right) {
		return fmt.Errorf("coin: %d left vs %d right fragments", len(env.Left), len(env.Right))
	}
	pairs := make([]commitment.Pair, len(env.Left))
	for i := range env.Left {
		l, err := hex.DecodeString(env.Left[i])
		if err != nil {
			return fmt.Errorf("coin: left fragment %d: %w", i, err)
		}
		r, err := hex.DecodeString(env.Right[i])
		if err != nil {
			return fmt.Errorf("coin: right fragment %d: %w", i, err)
		}
		pairs[i] = commitment.Pair{Left: l, Right: r}
	}
	if env.Signed != (sig != nil) {
		return fmt.Errorf("coin: signed=%v disagrees with signature presence", env.Signed)
	}
	if env.Unblinded && !env.Signed {
		return fmt.Errorf("coin: unblinded without signature")
	}
	*c = Coin{
		tag:       env.Tag,
		owner:     owner,
		amount:    env.Amount,
		guid:      guid,
		bank:      rsablind.PublicKey{N: n, E: e},
		pairs:     pairs,
		blinded:   blinded,
		factor:    factor,
		signature: sig,
		signed:    env.Signed,
		unblinded: env.Unblinded,
	}
	return nil
}

// Save writes the coin envelope to path.
func Save(path string, c *Coin) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal coin: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write coin: %w", err)
	}
	return nil
}

// Load reads a coin envelope from path.
func Load(path string) (*Coin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coin: %w", err)
	}
	c := new(Coin)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

func intToHex(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.Text(16)
}

func hexToInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex integer")
	}
	return v, nil
}
