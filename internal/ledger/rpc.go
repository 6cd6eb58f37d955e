// Package ledger implements the Solana JSON-RPC client used to submit
// transactions, poll signature status, and query account balances.
package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// lamportsPerSol converts getBalance results to whole SOL.
const lamportsPerSol = 1_000_000_000

// RPCConfig configures the JSON-RPC client.
type RPCConfig struct {
	// URL is the RPC endpoint, e.g. "https://api.mainnet-beta.solana.com".
	URL string

	// Commitment is the confirmation level for status and balance queries.
	// Empty means "confirmed".
	Commitment string

	// Timeout bounds each RPC call. Zero means 30s.
	Timeout time.Duration
}

// RPCClient is a minimal Solana JSON-RPC client covering the calls the
// execution pipeline needs.
type RPCClient struct {
	url        string
	commitment string
	httpClient *http.Client
}

// NewRPCClient creates a client for the given RPC endpoint.
func NewRPCClient(cfg RPCConfig) (*RPCClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ledger: rpc client requires a URL")
	}
	commitment := cfg.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RPCClient{
		url:        cfg.URL,
		commitment: commitment,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Submit sends a signed transaction with sendTransaction and returns the
// network signature. RPC-level rejections (preflight failures, malformed
// transactions) are wrapped in domain.ErrLedgerRejected so callers do not
// retry them.
func (c *RPCClient) Submit(ctx context.Context, signedPayload []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(signedPayload)
	params := []any{
		encoded,
		map[string]any{
			"encoding":            "base64",
			"preflightCommitment": c.commitment,
		},
	}

	result, err := c.call(ctx, "sendTransaction", params)
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			return "", fmt.Errorf("ledger: submit: %w: %s", domain.ErrLedgerRejected, rpcErr.Message)
		}
		return "", fmt.Errorf("ledger: submit: %w", err)
	}

	var signature string
	if err := json.Unmarshal(result, &signature); err != nil {
		return "", fmt.Errorf("ledger: decode signature: %w", err)
	}
	if signature == "" {
		return "", fmt.Errorf("ledger: submit: %w: empty signature", domain.ErrLedgerRejected)
	}
	return signature, nil
}

// signatureStatus is one entry of a getSignatureStatuses result.
type signatureStatus struct {
	Confirmations      *int            `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// Status queries getSignatureStatuses for one transaction reference. An
// unknown signature maps to TxPending: the network may simply not have seen
// it yet, and the verifier owns the timeout decision.
func (c *RPCClient) Status(ctx context.Context, txRef string) (domain.TxStatus, error) {
	params := []any{
		[]string{txRef},
		map[string]any{"searchTransactionHistory": true},
	}

	result, err := c.call(ctx, "getSignatureStatuses", params)
	if err != nil {
		return domain.TxStatus{}, fmt.Errorf("ledger: status %s: %w", txRef, err)
	}

	var resp struct {
		Value []*signatureStatus `json:"value"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return domain.TxStatus{}, fmt.Errorf("ledger: decode statuses: %w", err)
	}
	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return domain.TxStatus{State: domain.TxPending}, nil
	}

	st := resp.Value[0]
	status := domain.TxStatus{State: domain.TxPending}

	if st.Confirmations != nil {
		status.Confirmations = *st.Confirmations
	}
	switch st.ConfirmationStatus {
	case "confirmed", "finalized":
		status.State = domain.TxConfirmed
		if st.ConfirmationStatus == "finalized" && status.Confirmations == 0 {
			// Finalized signatures report null confirmations; treat as deep.
			status.Confirmations = 32
		}
	}
	if len(st.Err) > 0 && string(st.Err) != "null" {
		status.State = domain.TxFailed
		status.ErrorDetail = string(st.Err)
	}
	return status, nil
}

// Balance queries getBalance for an identity and returns whole SOL. The asset
// argument is accepted for interface compatibility; only the native asset is
// supported.
func (c *RPCClient) Balance(ctx context.Context, identity, asset string) (float64, error) {
	params := []any{
		identity,
		map[string]any{"commitment": c.commitment},
	}

	result, err := c.call(ctx, "getBalance", params)
	if err != nil {
		return 0, fmt.Errorf("ledger: balance %s: %w", identity, err)
	}

	var resp struct {
		Value uint64 `json:"value"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return 0, fmt.Errorf("ledger: decode balance: %w", err)
	}
	return float64(resp.Value) / lamportsPerSol, nil
}

// call performs one JSON-RPC request and returns the raw result.
func (c *RPCClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// Error implements the error interface so rpcError can flow through %w.
func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// truncate caps an error body for log-friendly messages.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface checks.
var (
	_ domain.LedgerClient    = (*RPCClient)(nil)
	_ domain.BalanceProvider = (*RPCClient)(nil)
)
