// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/solana"
)

// JSON-RPC error codes returned by validator nodes.
const (
	codeSimulationFailed      = -32002
	codeSignatureVerification = -32003
)

const (
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// RPCClient implements Client and RentOracle over JSON-RPC.
type RPCClient struct {
	rpc            *rpc.Client
	endpoint       string
	commitment     Commitment
	confirmTimeout time.Duration
	pollInterval   time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient) error

// WithCommitment sets the commitment for reads and confirmation.
func WithCommitment(c Commitment) RPCOption {
	return func(r *RPCClient) error {
		if c.rank() == 0 {
			return fmt.Errorf("unknown commitment %q", c)
		}
		r.commitment = c
		return nil
	}
}

// WithConfirmTimeout bounds how long Confirm polls.
func WithConfirmTimeout(d time.Duration) RPCOption {
	return func(r *RPCClient) error {
		if d <= 0 {
			return errors.New("confirm timeout must be positive")
		}
		r.confirmTimeout = d
		return nil
	}
}

// WithPollInterval sets the minimum spacing between status polls.
func WithPollInterval(d time.Duration) RPCOption {
	return func(r *RPCClient) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		r.pollInterval = d
		return nil
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) RPCOption {
	return func(r *RPCClient) error {
		r.httpClient = c
		return nil
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *zap.Logger) RPCOption {
	return func(r *RPCClient) error {
		r.logger = l
		return nil
	}
}

// NewRPCClient connects to endpoint. Nothing is sent until the first call.
func NewRPCClient(ctx context.Context, endpoint string, opts ...RPCOption) (*RPCClient, error) {
	if endpoint == "" {
		return nil, errors.New("rpc endpoint is required")
	}

	r := &RPCClient{
		endpoint:       endpoint,
		commitment:     CommitmentConfirmed,
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
		httpClient:     &http.Client{Timeout: defaultRequestTimeout},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	c, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(r.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	r.rpc = c
	return r, nil
}

// Close releases the underlying connection.
func (r *RPCClient) Close() {
	r.rpc.Close()
}

// Endpoint returns the RPC URL.
func (r *RPCClient) Endpoint() string {
	return r.endpoint
}

// Submit sends a signed transaction. Transactions with empty signature slots
// are refused locally with ErrIncompleteSignatures.
func (r *RPCClient) Submit(ctx context.Context, wire []byte) (solana.Signature, error) {
	tx, err := assembler.Parse(wire)
	if err != nil {
		return solana.Signature{}, err
	}
	if missing := tx.Missing(); len(missing) > 0 {
		return solana.Signature{}, fmt.Errorf("%w: %d of %d slots empty (first: %s)",
			ErrIncompleteSignatures, len(missing), len(tx.Signers()), missing[0])
	}

	var result string
	err = r.rpc.CallContext(ctx, &result, "sendTransaction",
		base64.StdEncoding.EncodeToString(wire),
		map[string]any{
			"encoding":            "base64",
			"preflightCommitment": string(r.commitment),
		},
	)
	if err != nil {
		r.logger.Debug("sendTransaction failed", zap.Error(err))
		return solana.Signature{}, classify(err)
	}

	id, err := solana.ParseSignature(result)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("unexpected transaction id %q: %w", result, err)
	}
	r.logger.Debug("transaction submitted", zap.String("txid", id.String()))
	return id, nil
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus Commitment      `json:"confirmationStatus"`
}

type signatureStatusesResult struct {
	Value []*signatureStatus `json:"value"`
}

// Confirm polls the transaction status at most once per poll interval until
// it reaches the configured commitment, fails on-chain, or the confirm
// timeout passes.
func (r *RPCClient) Confirm(ctx context.Context, id solana.Signature) (*Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.confirmTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(r.pollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, r.confirmWaitError(ctx, id, err)
		}

		var result signatureStatusesResult
		err := r.rpc.CallContext(ctx, &result, "getSignatureStatuses",
			[]string{id.String()},
			map[string]any{"searchTransactionHistory": true},
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil, r.confirmWaitError(ctx, id, ctx.Err())
			}
			r.logger.Debug("status poll failed", zap.String("txid", id.String()), zap.Error(err))
			continue
		}
		if len(result.Value) == 0 || result.Value[0] == nil {
			continue
		}

		status := result.Value[0]
		if len(status.Err) > 0 && string(status.Err) != "null" {
			r.logger.Debug("transaction failed on-chain",
				zap.String("txid", id.String()),
				zap.Uint64("slot", status.Slot),
				zap.ByteString("err", status.Err))
			return &Confirmation{
				Success:     false,
				ErrorDetail: string(status.Err),
				Slot:        status.Slot,
				Status:      status.ConfirmationStatus,
			}, nil
		}
		if r.commitment.Reached(status.ConfirmationStatus) {
			return &Confirmation{Success: true, Slot: status.Slot, Status: status.ConfirmationStatus}, nil
		}
	}
}

// confirmWaitError reports a deadline as ErrConfirmTimeout. The limiter
// refuses to wait past the deadline before the context itself expires.
func (r *RPCClient) confirmWaitError(ctx context.Context, id solana.Signature, err error) error {
	if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, id, r.confirmTimeout)
	}
	return err
}

type accountInfoResult struct {
	Value *struct {
		Data       []string `json:"data"`
		Owner      string   `json:"owner"`
		Lamports   uint64   `json:"lamports"`
		Executable bool     `json:"executable"`
	} `json:"value"`
}

// GetAccount reads an account. A missing account yields nil, nil.
func (r *RPCClient) GetAccount(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	var result accountInfoResult
	err := r.rpc.CallContext(ctx, &result, "getAccountInfo",
		address.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": string(r.commitment),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", address, classify(err))
	}
	if result.Value == nil {
		return nil, nil
	}

	v := result.Value
	if len(v.Data) != 2 || v.Data[1] != "base64" {
		return nil, fmt.Errorf("getAccountInfo %s: unexpected data encoding", address)
	}
	data, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", address, err)
	}
	owner, err := solana.ParsePublicKey(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: owner: %w", address, err)
	}
	return &AccountInfo{
		Address:    address,
		Owner:      owner,
		Lamports:   v.Lamports,
		Data:       data,
		Executable: v.Executable,
	}, nil
}

type latestBlockhashResult struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// GetRecentCheckpoint fetches the latest blockhash.
func (r *RPCClient) GetRecentCheckpoint(ctx context.Context) (solana.Hash, error) {
	var result latestBlockhashResult
	err := r.rpc.CallContext(ctx, &result, "getLatestBlockhash",
		map[string]any{"commitment": string(r.commitment)},
	)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: %w", classify(err))
	}
	return solana.ParseHash(result.Value.Blockhash)
}

// MinimumBalanceForRentExemption quotes the rent-exempt balance for size bytes.
func (r *RPCClient) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	if err := r.rpc.CallContext(ctx, &lamports, "getMinimumBalanceForRentExemption", size); err != nil {
		return 0, fmt.Errorf("getMinimumBalanceForRentExemption: %w", classify(err))
	}
	return lamports, nil
}

// classify maps node errors onto the package sentinels, keeping the node's
// message for display.
func classify(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}

	msg := rpcErr.Error()
	var detail string
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		if b, mErr := json.Marshal(dataErr.ErrorData()); mErr == nil {
			detail = string(b)
		}
	}

	switch {
	case strings.Contains(msg, "Blockhash not found") || strings.Contains(detail, "BlockhashNotFound"):
		return fmt.Errorf("%w: %s", ErrStaleNonce, msg)
	case rpcErr.ErrorCode() == codeSignatureVerification || strings.Contains(msg, "signature verification failure"):
		return fmt.Errorf("%w: %s", ErrSignatureVerification, msg)
	case strings.Contains(detail, "AccountNotFound"):
		return fmt.Errorf("%w: %s", ErrAccountNotFound, msg)
	case rpcErr.ErrorCode() == codeSimulationFailed:
		return fmt.Errorf("%w: %s", ErrTransactionFailed, msg)
	default:
		return err
	}
}

var (
	_ Client     = (*RPCClient)(nil)
	_ RentOracle = (*RPCClient)(nil)
)
