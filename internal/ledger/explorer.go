// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package ledger

import (
	"net/url"

	"github.com/aplane-algo/apcold/internal/solana"
)

const explorerBase = "https://explorer.solana.com"

// ExplorerTxURL links to a transaction on the block explorer. Clusters other
// than mainnet-beta, devnet and testnet are shown through a custom RPC URL.
func ExplorerTxURL(cluster string, rpcURL string, id solana.Signature) string {
	return explorerURL("tx/"+id.String(), cluster, rpcURL)
}

// ExplorerAddressURL links to an account on the block explorer.
func ExplorerAddressURL(cluster string, rpcURL string, address solana.PublicKey) string {
	return explorerURL("address/"+address.String(), cluster, rpcURL)
}

func explorerURL(path, cluster, rpcURL string) string {
	u := explorerBase + "/" + path
	switch cluster {
	case "mainnet-beta", "":
		return u
	case "devnet", "testnet":
		return u + "?cluster=" + cluster
	default:
		return u + "?cluster=custom&customUrl=" + url.QueryEscape(rpcURL)
	}
}
