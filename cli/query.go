package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	rpchttp "github.com/tendermint/tendermint/rpc/client/http"
)

const queryHelp = `Paths:
  /bounty/{id}                         /bounty/{id}/submissions
  /submission/{bounty-id}/{sub-id}     /bounties/total
  /bounties/list/{all|active|completed|cancelled|expired}
  /bounties/creator/{addr}             /submissions/developer/{addr}
  /fees                                /token/{token}
  /token/{token}/balance/{addr}        /token/{token}/allowance/{owner}/{spender}
  /account/{addr}/nonce`

func abciQuery(ctx context.Context, c *rpchttp.HTTP, path string, out any) error {
	res, err := c.ABCIQuery(ctx, path, nil)
	if err != nil {
		return err
	}
	if res.Response.IsErr() {
		return fmt.Errorf("query %s (code %d): %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

var queryCmd = &cobra.Command{
	Use:   "query <path>",
	Short: "Read ledger state",
	Long:  "Read ledger state.\n\n" + queryHelp,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		var raw json.RawMessage
		if err := abciQuery(ctx, c, args[0], &raw); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), buf.String())
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&nodeAddr, "node", "tcp://127.0.0.1:26657", "RPC address of the node")
	rootCmd.AddCommand(queryCmd)
}
