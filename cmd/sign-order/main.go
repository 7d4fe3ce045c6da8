package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/api"
	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
)

// sign-order builds a signed order intent from the command line and prints
// the JSON payload ready for POST /api/v1/orders/match.
func main() {
	var (
		keyHex    = flag.String("key", "", "private key hex (generates a fresh key when empty)")
		poolHex   = flag.String("pool", "", "pool address the order targets")
		side      = flag.String("side", "open_long", "open_long | open_short | close_long | close_short")
		bondsWei  = flag.String("bonds", "10000000000000000000", "bond amount, raw 18-decimal")
		fundsWei  = flag.String("funds", "10000000000000000000", "fund amount, raw 18-decimal")
		minMat    = flag.Uint64("min-maturity", 0, "minimum acceptable maturity (unix seconds)")
		maxMat    = flag.Uint64("max-maturity", 1<<62, "maximum acceptable maturity (unix seconds)")
		expiry    = flag.Uint64("expiry", 0, "order expiry (unix seconds, 0 = never)")
		asBase    = flag.Bool("as-base", false, "settle in base instead of vault shares")
		chainID   = flag.Int64("chain-id", 1337, "signing domain chain id")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Checksummed address recovered from the raw public key. Must agree with
	// the signer's own derivation.
	checksummed := crypto.AddressFromUncompressedPub(signer.PublicKeyBytes())
	if checksummed == "" {
		fmt.Println("Error: malformed public key")
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", checksummed)
	if *keyHex == "" {
		fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	}
	fmt.Println()

	orderType, err := parseSide(*side)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	bonds, err := fixedpoint.FromDecimal(*bondsWei)
	if err != nil {
		fmt.Printf("Error parsing bonds: %v\n", err)
		os.Exit(1)
	}
	funds, err := fixedpoint.FromDecimal(*fundsWei)
	if err != nil {
		fmt.Printf("Error parsing funds: %v\n", err)
		os.Exit(1)
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		fmt.Printf("Error generating salt: %v\n", err)
		os.Exit(1)
	}

	order := &matching.OrderIntent{
		Trader:             signer.Address(),
		Pool:               common.HexToAddress(*poolHex),
		FundAmount:         funds,
		BondAmount:         bonds,
		MinVaultSharePrice: fixedpoint.Zero(),
		Destination:        signer.Address(),
		AsBase:             *asBase,
		OrderType:          orderType,
		MinMaturityTime:    *minMat,
		MaxMaturityTime:    *maxMat,
		Expiry:             *expiry,
		Salt:               salt,
	}

	domain := crypto.NewEIP712Signer(crypto.EIP712Domain{
		Name:              "Hyperdrive",
		Version:           "1",
		ChainID:           big.NewInt(*chainID),
		VerifyingContract: common.Address{},
	})
	if err := order.Sign(domain, signer); err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	hash, err := order.Hash(domain)
	if err != nil {
		fmt.Printf("Error hashing: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Type: %s\n", order.OrderType)
	fmt.Printf("  Bonds: %s\n", order.BondAmount)
	fmt.Printf("  Funds: %s\n", order.FundAmount)
	fmt.Printf("  Pool: %s\n", order.Pool.Hex())
	fmt.Printf("  Hash: %s\n", hash.Hex())
	fmt.Printf("  Signature: 0x%x\n\n", order.Signature)

	payload, err := json.MarshalIndent(api.ToOrderJSON(order), "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Order (JSON):")
	fmt.Println(string(payload))
	fmt.Println()
	fmt.Println("Pair it with a counterparty order and submit:")
	fmt.Println("  POST http://localhost:8080/api/v1/orders/match")
	fmt.Println(`  Body: {"long": <open_long or close_long>, "short": <open_short or close_short>}`)
}

func parseSide(s string) (matching.OrderType, error) {
	switch s {
	case "open_long":
		return matching.OpenLong, nil
	case "open_short":
		return matching.OpenShort, nil
	case "close_long":
		return matching.CloseLong, nil
	case "close_short":
		return matching.CloseShort, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}
