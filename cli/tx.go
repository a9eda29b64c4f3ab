package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	rpchttp "github.com/tendermint/tendermint/rpc/client/http"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/blockchain/types"
	cfg "github.com/gregorybednov/bountychain/configfunctions"
)

var nodeAddr string

var (
	bountyDescription  string
	bountyRequirements string
	bountyToken        string
	bountyDeadline     string
	solutionDesc       string
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and broadcast a transaction",
}

func newClient() (*rpchttp.HTTP, error) {
	return rpchttp.New(nodeAddr, "/websocket")
}

// parseDeadline accepts a duration from now, an RFC 3339 time or unix
// seconds.
func parseDeadline(s string, now time.Time) (int64, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d).Unix(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("invalid deadline %q", s)
}

func parseUint(name, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}

func fetchNonce(ctx context.Context, c *rpchttp.HTTP, addr account.Address) (uint64, error) {
	var nonce uint64
	if err := abciQuery(ctx, c, "/account/"+addr.String()+"/nonce", &nonce); err != nil {
		return 0, fmt.Errorf("fetch nonce: %w", err)
	}
	return nonce, nil
}

func broadcast(cmd *cobra.Command, txType string, payload any) error {
	key, err := cfg.LoadOperatorKey(keyPath)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	nonce, err := fetchNonce(ctx, c, account.FromPubKey(key.Public().(ed25519.PublicKey)))
	if err != nil {
		return err
	}
	raw, err := types.Sign(key, txType, nonce, payload)
	if err != nil {
		return err
	}
	res, err := c.BroadcastTxCommit(ctx, raw)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	if res.CheckTx.IsErr() {
		return fmt.Errorf("rejected (code %d): %s", res.CheckTx.Code, res.CheckTx.Log)
	}
	if res.DeliverTx.IsErr() {
		return fmt.Errorf("failed at height %d (code %d): %s", res.Height, res.DeliverTx.Code, res.DeliverTx.Log)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "committed %s at height %d\n", res.Hash, res.Height)
	if len(res.DeliverTx.Data) > 0 {
		var r types.Result
		if err := json.Unmarshal(res.DeliverTx.Data, &r); err == nil {
			if r.BountyID != 0 {
				fmt.Fprintf(out, "bounty id: %d\n", r.BountyID)
			}
			if r.SubmissionID != 0 {
				fmt.Fprintf(out, "submission id: %d\n", r.SubmissionID)
			}
		}
	}
	return nil
}

var createBountyCmd = &cobra.Command{
	Use:   "create-bounty <title> <reward-amount>",
	Short: "Escrow a reward and open a bounty",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deadline, err := parseDeadline(bountyDeadline, time.Now())
		if err != nil {
			return err
		}
		return broadcast(cmd, types.TxCreateBounty, types.CreateBounty{
			Title:        args[0],
			Description:  bountyDescription,
			Requirements: bountyRequirements,
			RewardToken:  bountyToken,
			RewardAmount: args[1],
			Deadline:     deadline,
		})
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <bounty-id> <solution-url>",
	Short: "Submit a solution to an active bounty",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUint("bounty id", args[0])
		if err != nil {
			return err
		}
		return broadcast(cmd, types.TxSubmitSolution, types.SubmitSolution{
			BountyID:    id,
			SolutionURL: args[1],
			Description: solutionDesc,
		})
	},
}

var selectWinnerCmd = &cobra.Command{
	Use:   "select-winner <bounty-id> <submission-id>",
	Short: "Pay the reward to a submission",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUint("bounty id", args[0])
		if err != nil {
			return err
		}
		sub, err := parseUint("submission id", args[1])
		if err != nil {
			return err
		}
		return broadcast(cmd, types.TxSelectWinner, types.SelectWinner{BountyID: id, SubmissionID: sub})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <bounty-id>",
	Short: "Cancel a bounty and refund the reward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUint("bounty id", args[0])
		if err != nil {
			return err
		}
		return broadcast(cmd, types.TxCancelBounty, types.CancelBounty{BountyID: id})
	},
}

var setFeeCmd = &cobra.Command{
	Use:   "set-fee <basis-points>",
	Short: "Set the platform fee (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bps, err := parseUint("fee", args[0])
		if err != nil {
			return err
		}
		return broadcast(cmd, types.TxSetPlatformFee, types.SetPlatformFee{FeeBps: bps})
	},
}

var setFeeRecipientCmd = &cobra.Command{
	Use:   "set-fee-recipient <address>",
	Short: "Set the fee recipient (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return broadcast(cmd, types.TxSetFeeRecipient, types.SetFeeRecipient{Recipient: args[0]})
	},
}

var transferOwnershipCmd = &cobra.Command{
	Use:   "transfer-ownership <address>",
	Short: "Hand platform administration to another account (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return broadcast(cmd, types.TxTransferOwnership, types.TransferOwnership{NewOwner: args[0]})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Native token transactions",
}

var tokenTransferCmd = &cobra.Command{
	Use:   "transfer <token> <to> <amount>",
	Short: "Transfer tokens",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return broadcast(cmd, types.TxTokenTransfer, types.TokenTransfer{Token: args[0], To: args[1], Amount: args[2]})
	},
}

var tokenApproveCmd = &cobra.Command{
	Use:   "approve <token> <spender> <amount>",
	Short: "Set the allowance of spender",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return broadcast(cmd, types.TxTokenApprove, types.TokenApprove{Token: args[0], Spender: args[1], Amount: args[2]})
	},
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint <token> <to> <amount>",
	Short: "Mint tokens (token owner only)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return broadcast(cmd, types.TxTokenMint, types.TokenMint{Token: args[0], To: args[1], Amount: args[2]})
	},
}

var tokenTransferOwnershipCmd = &cobra.Command{
	Use:   "transfer-ownership <token> <address>",
	Short: "Hand the right to mint to another account (token owner only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return broadcast(cmd, types.TxTokenTransferOwnership, types.TokenTransferOwnership{Token: args[0], NewOwner: args[1]})
	},
}

func init() {
	txCmd.PersistentFlags().StringVar(&keyPath, "key", "./config/operator.key", "Path to the signing key")
	txCmd.PersistentFlags().StringVar(&nodeAddr, "node", "tcp://127.0.0.1:26657", "RPC address of the node")

	createBountyCmd.Flags().StringVar(&bountyDescription, "description", "", "Bounty description")
	createBountyCmd.Flags().StringVar(&bountyRequirements, "requirements", "", "Acceptance requirements")
	createBountyCmd.Flags().StringVar(&bountyToken, "token", cfg.NativeSymbol, "Reward token address or native symbol")
	createBountyCmd.Flags().StringVar(&bountyDeadline, "deadline", "168h", "Deadline: duration from now, RFC 3339 time or unix seconds")
	submitCmd.Flags().StringVar(&solutionDesc, "description", "", "Solution description")

	tokenCmd.AddCommand(tokenTransferCmd, tokenApproveCmd, tokenMintCmd, tokenTransferOwnershipCmd)
	txCmd.AddCommand(createBountyCmd, submitCmd, selectWinnerCmd, cancelCmd,
		setFeeCmd, setFeeRecipientCmd, transferOwnershipCmd, tokenCmd)
	rootCmd.AddCommand(txCmd)
}
