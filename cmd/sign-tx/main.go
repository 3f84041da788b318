package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/0xvasanth/lighter-go/params"
	"github.com/0xvasanth/lighter-go/pkg/client"
	"github.com/0xvasanth/lighter-go/pkg/crypto"
	"github.com/0xvasanth/lighter-go/pkg/transaction"
)

// Offline signing walkthrough: builds a limit order, signs it at an explicit
// sequence nonce, self-verifies, and prints the wire envelope. Needs
// LIGHTER_API_KEY (and friends) in the environment or a .env file.
func main() {
	cfg := params.LoadFromEnv("")
	if cfg.PrivateKey == "" {
		fmt.Println("LIGHTER_API_KEY is not set (hex private key, 32 or 40 bytes)")
		os.Exit(1)
	}

	c, err := client.NewTxClient(cfg.ApiURL, cfg.PrivateKey, cfg.AccountIndex, cfg.ApiKeyIndex, cfg.ChainID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Account: %d (api key %d, chain %d)\n", cfg.AccountIndex, cfg.ApiKeyIndex, cfg.ChainID)
	fmt.Printf("Public Key: %s\n\n", c.PubKeyHex())

	req := &transaction.CreateOrderTxReq{
		MarketIndex:      0,
		ClientOrderIndex: time.Now().UnixMilli(),
		BaseAmount:       1_000_000,
		Price:            3_000_000_000,
		IsAsk:            0,
		Type:             transaction.OrderTypeLimit,
		TimeInForce:      transaction.TifGoodTillTime,
		OrderExpiry:      time.Now().Add(28 * 24 * time.Hour).UnixMilli(),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Market Index: %d\n", req.MarketIndex)
	fmt.Printf("  Client Order Index: %d\n", req.ClientOrderIndex)
	fmt.Printf("  Base Amount: %d\n", req.BaseAmount)
	fmt.Printf("  Price: %d\n", req.Price)
	fmt.Printf("  Side: %s\n\n", map[uint8]string{0: "BID", 1: "ASK"}[req.IsAsk])

	// Explicit nonce: offline signing never consults the sequencer.
	nonce := uint64(0)
	ptx, err := c.CreateOrder(context.Background(), req, &client.TxOpts{Nonce: &nonce})
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sequence Nonce: %d\n", ptx.Nonce)
	fmt.Printf("Tx Hash: %s\n", ptx.TxHash)
	fmt.Printf("Signature: 0x%x\n\n", ptx.Sig)

	digest, err := hex.DecodeString(ptx.TxHash)
	if err != nil || !crypto.Verify(ptx.PubKey, digest, ptx.Sig) {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")

	envelope, err := json.MarshalIndent(ptx.SignedTx, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling envelope: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nSigned Transaction (JSON):")
	fmt.Println(string(envelope))
	fmt.Println()
	fmt.Println("To submit:")
	fmt.Printf("  POST %s/api/v1/sendTx\n", cfg.ApiURL)
	fmt.Println("  Content-Type: application/x-www-form-urlencoded")
	fmt.Println("  Fields: tx_type, tx_info, nonce, sig, pub_key")
}
