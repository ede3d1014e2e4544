// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package engine provides the online side of the air-gapped flow for apcold,
// independent of any UI. It reads nonce accounts, constructs unsigned
// messages, creates nonce accounts, reattaches detached signatures and
// broadcasts the result through a ledger.Client.
package engine

import (
	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/message"
)

// Engine holds the ledger collaborator and construction settings.
// It keeps no per-transaction state; every operation works on values passed
// in and returned.
type Engine struct {
	Client  ledger.Client
	Rent    ledger.RentOracle
	Version message.Version
	Logger  *zap.Logger

	// SkipPreflight disables the nonce re-read before submission, leaving
	// stale-nonce detection entirely to the ledger.
	SkipPreflight bool
}

// EngineOption is a functional option for configuring the Engine
type EngineOption func(*Engine) error

// NewEngine creates an Engine that talks to the ledger through client.
// If client also quotes rent it is used as the rent oracle.
func NewEngine(client ledger.Client, opts ...EngineOption) (*Engine, error) {
	if client == nil {
		return nil, ErrNoLedgerClient
	}

	e := &Engine{
		Client:  client,
		Version: message.VersionLegacy,
		Logger:  zap.NewNop(),
	}
	if rent, ok := client.(ledger.RentOracle); ok {
		e.Rent = rent
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// WithRentOracle sets where rent-exempt balances are quoted from
func WithRentOracle(r ledger.RentOracle) EngineOption {
	return func(e *Engine) error {
		e.Rent = r
		return nil
	}
}

// WithMessageVersion selects the message format for constructed messages
func WithMessageVersion(v message.Version) EngineOption {
	return func(e *Engine) error {
		if v != message.VersionLegacy && v != message.Version0 {
			return ErrUnsupportedVersion
		}
		e.Version = v
		return nil
	}
}

// WithLogger sets the structured logger
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) error {
		if l != nil {
			e.Logger = l
		}
		return nil
	}
}

// WithoutPreflight disables the nonce re-read before submission
func WithoutPreflight() EngineOption {
	return func(e *Engine) error {
		e.SkipPreflight = true
		return nil
	}
}
