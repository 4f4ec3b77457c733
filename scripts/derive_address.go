// derive_address.go prints the pubkey and transparent address of a BIP-44
// key derived from a mnemonic file.
// Usage: go run scripts/derive_address.go <mnemonicfile> [account] [change] [index] [testnet]
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/Klingon-tech/zwallet/internal/keyring"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_address <mnemonicfile> [account] [change] [index] [testnet]")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mnemonic := keyring.NormalizeMnemonic(string(data))
	if !keyring.ValidateMnemonic(mnemonic) {
		fmt.Fprintln(os.Stderr, "invalid mnemonic")
		os.Exit(1)
	}

	path := [3]uint32{}
	for i := range path {
		if len(os.Args) > i+2 {
			n, err := strconv.ParseUint(os.Args[i+2], 10, 31)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			path[i] = uint32(n)
		}
	}
	net := types.Mainnet
	if len(os.Args) > 5 && os.Args[5] == "testnet" {
		net = types.Testnet
	}

	seed, err := keyring.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	master, err := keyring.NewMasterKey(seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	key, err := master.DeriveAddress(net, path[0], path[1], path[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	addr, err := key.Address(net)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("path=m/44'/%d'/%d'/%d/%d\n", keyring.CoinType(net), path[0], path[1], path[2])
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(key.PublicKeyBytes()))
	fmt.Printf("address=%s\n", addr)
}
