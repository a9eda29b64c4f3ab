package blockchain

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/token"
)

// txError carries the ABCI code of a failure that happens before the
// ledger is reached.
type txError struct {
	code uint32
	err  error
}

func (e *txError) Error() string { return e.err.Error() }
func (e *txError) Unwrap() error { return e.err }

func encodingError(format string, a ...any) error {
	return &txError{code: fault.CodeEncoding, err: fmt.Errorf(format, a...)}
}

func signatureError(format string, a ...any) error {
	return &txError{code: fault.CodeBadSignature, err: fmt.Errorf(format, a...)}
}

func nonceError(got, want uint64) error {
	return &txError{code: fault.CodeBadNonce, err: fmt.Errorf("invalid nonce: got %d, want %d", got, want)}
}

// resultCode maps any error produced while handling a tx to its code.
func resultCode(err error) uint32 {
	var te *txError
	if errors.As(err, &te) {
		return te.code
	}
	return fault.Code(err)
}

// signedTx is a transaction whose signature has been checked.
type signedTx struct {
	Type    string
	Caller  account.Address
	Nonce   uint64
	Payload any
}

// decodeTx verifies the envelope signature over the raw body bytes, as
// the client signed them, and only then decodes the body.
func decodeTx(raw []byte) (*signedTx, error) {
	var env types.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, encodingError("invalid tx JSON")
	}
	if len(env.Body) == 0 {
		return nil, encodingError("missing body")
	}

	var body types.Body
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, encodingError("invalid body JSON")
	}

	pubkeyB64 := strings.TrimSpace(body.Signer)
	if pubkeyB64 == "" {
		return nil, signatureError("missing signer pubkey")
	}
	pubkey, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, signatureError("invalid pubkey base64")
	}
	if len(pubkey) != ed25519.PublicKeySize {
		return nil, signatureError("invalid pubkey length: got %d, want %d", len(pubkey), ed25519.PublicKeySize)
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return nil, signatureError("invalid signature base64")
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, signatureError("invalid signature length: got %d, want %d", len(sig), ed25519.SignatureSize)
	}
	if !ed25519.Verify(pubkey, env.Body, sig) {
		return nil, signatureError("signature verification failed")
	}

	payload, err := decodePayload(body.Type, body.Payload)
	if err != nil {
		return nil, err
	}
	return &signedTx{
		Type:    body.Type,
		Caller:  account.FromPubKey(pubkey),
		Nonce:   body.Nonce,
		Payload: payload,
	}, nil
}

func decodePayload(txType string, raw json.RawMessage) (any, error) {
	var p any
	switch txType {
	case types.TxCreateBounty:
		p = &types.CreateBounty{}
	case types.TxSubmitSolution:
		p = &types.SubmitSolution{}
	case types.TxSelectWinner:
		p = &types.SelectWinner{}
	case types.TxCancelBounty:
		p = &types.CancelBounty{}
	case types.TxSetPlatformFee:
		p = &types.SetPlatformFee{}
	case types.TxSetFeeRecipient:
		p = &types.SetFeeRecipient{}
	case types.TxTransferOwnership:
		p = &types.TransferOwnership{}
	case types.TxTokenTransfer:
		p = &types.TokenTransfer{}
	case types.TxTokenApprove:
		p = &types.TokenApprove{}
	case types.TxTokenMint:
		p = &types.TokenMint{}
	case types.TxTokenTransferOwnership:
		p = &types.TokenTransferOwnership{}
	default:
		return nil, encodingError("unknown tx type %q", txType)
	}
	if len(raw) == 0 {
		return nil, encodingError("missing payload")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, encodingError("invalid %s payload: %v", txType, err)
	}
	return p, nil
}

// parseAmount reads a decimal amount of token base units.
func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || n.Sign() < 0 || n.Cmp(token.MaxAmount) > 0 {
		return nil, fault.ErrInvalidAmount
	}
	return n, nil
}

// parseToken accepts a token address or the symbol of a native token.
func parseToken(s string) (account.Address, error) {
	if addr, err := account.Parse(s); err == nil {
		return addr, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fault.ErrZeroAddress
	}
	return token.AddressFor(s), nil
}
