package ledger

import "fmt"

const (
	ClusterMainnet = "mainnet-beta"
	ClusterDevnet  = "devnet"
	ClusterTestnet = "testnet"
)

// Explorer builds block explorer links for one cluster.
type Explorer struct {
	BaseURL string // default https://explorer.solana.com
	Cluster string // default devnet
}

// TxURL returns the explorer link for a transaction signature.
func (e Explorer) TxURL(signature string) string {
	return e.url("tx", signature)
}

// AddressURL returns the explorer link for an account address.
func (e Explorer) AddressURL(address string) string {
	return e.url("address", address)
}

func (e Explorer) url(kind, id string) string {
	base := e.BaseURL
	if base == "" {
		base = "https://explorer.solana.com"
	}
	cluster := e.Cluster
	if cluster == "" {
		cluster = ClusterDevnet
	}
	if cluster == ClusterMainnet {
		return fmt.Sprintf("%s/%s/%s", base, kind, id)
	}
	return fmt.Sprintf("%s/%s/%s?cluster=%s", base, kind, id, cluster)
}
