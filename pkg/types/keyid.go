package types

import "fmt"

// KeyID identifies a BIP-44 leaf key by account, branch and child index.
type KeyID struct {
	Account uint32 `json:"account"`
	Change  bool   `json:"change"`
	Index   uint32 `json:"index"`
}

// Branch returns the BIP-44 change level: 0 for receive, 1 for change.
func (k KeyID) Branch() uint32 {
	if k.Change {
		return 1
	}
	return 0
}

// String returns "account/branch/index".
func (k KeyID) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Account, k.Branch(), k.Index)
}
