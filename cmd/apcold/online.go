// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/engine"
	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

// online bundles the ledger connection for one command.
type online struct {
	rt      *cliutil.Runtime
	cluster string
	rpcURL  string
	client  *ledger.RPCClient
	engine  *engine.Engine
}

// connect dials the configured endpoint and builds the engine.
func connect(c *cli.Context) (*online, error) {
	rt := cliutil.FromContext(c)
	cfg := rt.Config

	cluster := c.String("cluster")
	if cluster == "" {
		cluster = cfg.Cluster
	}
	rpcURL := c.String("rpc-url")
	if rpcURL == "" {
		var err error
		if rpcURL, err = cfg.RPCURL(cluster); err != nil {
			return nil, err
		}
	}

	commitment, err := ledger.ParseCommitment(cfg.Commitment)
	if err != nil {
		return nil, err
	}
	version, err := message.ParseVersion(cfg.MessageVersion)
	if err != nil {
		return nil, err
	}

	client, err := ledger.NewRPCClient(c.Context, rpcURL,
		ledger.WithCommitment(commitment),
		ledger.WithConfirmTimeout(cfg.ConfirmTimeout),
		ledger.WithPollInterval(cfg.PollInterval),
		ledger.WithLogger(rt.Logger),
	)
	if err != nil {
		return nil, err
	}

	eng, err := engine.NewEngine(client,
		engine.WithMessageVersion(version),
		engine.WithLogger(rt.Logger),
	)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &online{rt: rt, cluster: cluster, rpcURL: rpcURL, client: client, engine: eng}, nil
}

func (o *online) Close() {
	o.client.Close()
}

// publicKeyFlag parses an address flag. Empty values return def.
func publicKeyFlag(c *cli.Context, name string, def solana.PublicKey) (solana.PublicKey, error) {
	s := c.String(name)
	if s == "" {
		return def, nil
	}
	pk, err := solana.ParsePublicKey(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return pk, nil
}

// requiredPublicKey parses an address flag that must be present.
func requiredPublicKey(c *cli.Context, name string) (solana.PublicKey, error) {
	if c.String(name) == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	return publicKeyFlag(c, name, solana.PublicKey{})
}
