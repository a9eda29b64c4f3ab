package types

// Types subpackage.
// Use it to build and sign transactions for the bounty application and to
// decode its query responses.

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// transaction types
const (
	TxCreateBounty      = "create_bounty"
	TxSubmitSolution    = "submit_solution"
	TxSelectWinner      = "select_winner"
	TxCancelBounty      = "cancel_bounty"
	TxSetPlatformFee    = "set_platform_fee"
	TxSetFeeRecipient   = "set_fee_recipient"
	TxTransferOwnership = "transfer_ownership"
	TxTokenTransfer     = "token_transfer"
	TxTokenApprove      = "token_approve"
	TxTokenMint         = "token_mint"

	TxTokenTransferOwnership = "token_transfer_ownership"
)

// Envelope is what goes on the wire. Signature is the base64 ed25519
// signature over the exact bytes of Body.
type Envelope struct {
	Body      json.RawMessage `json:"body"`
	Signature string          `json:"signature"`
}

// Body is the signed part of a transaction. Signer is the base64 ed25519
// public key of the caller; Nonce must equal the caller's next nonce.
type Body struct {
	Type    string          `json:"type"`
	Signer  string          `json:"signer"`
	Nonce   uint64          `json:"nonce"`
	Payload json.RawMessage `json:"payload"`
}

// Amounts are decimal strings of token base units; addresses are 40 hex
// digits. Token fields also accept a native token symbol.

type CreateBounty struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	RewardToken  string `json:"reward_token"`
	RewardAmount string `json:"reward_amount"`
	Deadline     int64  `json:"deadline"`
}

type SubmitSolution struct {
	BountyID    uint64 `json:"bounty_id"`
	SolutionURL string `json:"solution_url"`
	Description string `json:"description"`
}

type SelectWinner struct {
	BountyID     uint64 `json:"bounty_id"`
	SubmissionID uint64 `json:"submission_id"`
}

type CancelBounty struct {
	BountyID uint64 `json:"bounty_id"`
}

type SetPlatformFee struct {
	FeeBps uint64 `json:"fee_bps"`
}

type SetFeeRecipient struct {
	Recipient string `json:"recipient"`
}

type TransferOwnership struct {
	NewOwner string `json:"new_owner"`
}

type TokenTransfer struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TokenApprove struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TokenMint struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TokenTransferOwnership struct {
	Token    string `json:"token"`
	NewOwner string `json:"new_owner"`
}

// Result is the Data of a successful DeliverTx that allocated an id.
type Result struct {
	BountyID     uint64 `json:"bounty_id,omitempty"`
	SubmissionID uint64 `json:"submission_id,omitempty"`
}

// Sign encodes payload as a txType transaction from key's account and
// signs it.
func Sign(key ed25519.PrivateKey, txType string, nonce uint64, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	body, err := json.Marshal(Body{
		Type:    txType,
		Signer:  base64.StdEncoding.EncodeToString(key.Public().(ed25519.PublicKey)),
		Nonce:   nonce,
		Payload: p,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Body:      body,
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(key, body)),
	})
}

// AppState is the app_state section of genesis.json.
type AppState struct {
	Owner          string         `json:"owner"`
	FeeRecipient   string         `json:"fee_recipient"`
	PlatformFeeBps *uint64        `json:"platform_fee_bps,omitempty"`
	Tokens         []GenesisToken `json:"tokens"`
}

type GenesisToken struct {
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name"`
	Decimals uint8            `json:"decimals"`
	Owner    string           `json:"owner"`
	Balances []GenesisBalance `json:"balances"`
}

type GenesisBalance struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}
