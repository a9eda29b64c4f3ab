package blockchain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger"
	abci "github.com/tendermint/tendermint/abci/types"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
	"github.com/gregorybednov/bountychain/ledger"
	"github.com/gregorybednov/bountychain/token"
)

// queryHandler answers one query path. now is the time of the last
// committed block and args holds the path segments that matched a ":param"
// in the route.
type queryHandler func(st kv.Store, now int64, args []string) (any, error)

type route struct {
	pattern []string
	handler queryHandler
}

var routes = []route{
	{split("bounty/:id"), queryBounty},
	{split("bounty/:id/submissions"), querySubmissions},
	{split("submission/:bounty/:sub"), querySubmission},
	{split("bounties/total"), queryTotal},
	{split("bounties/list/:filter"), queryList},
	{split("bounties/creator/:addr"), queryCreatorBounties},
	{split("submissions/developer/:addr"), queryDeveloperBounties},
	{split("fees"), queryFees},
	{split("token/:token"), queryToken},
	{split("token/:token/balance/:addr"), queryBalance},
	{split("token/:token/allowance/:owner/:spender"), queryAllowance},
	{split("account/:addr/nonce"), queryNonce},
}

func split(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func match(pattern, parts []string) ([]string, bool) {
	if len(pattern) != len(parts) {
		return nil, false
	}
	var args []string
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			args = append(args, parts[i])
			continue
		}
		if p != parts[i] {
			return nil, false
		}
	}
	return args, true
}

func (app *BountyApp) Query(req abci.RequestQuery) abci.ResponseQuery {
	parts := split(req.Path)
	for _, r := range routes {
		args, ok := match(r.pattern, parts)
		if !ok {
			continue
		}
		var value []byte
		err := app.db.View(func(txn *badger.Txn) error {
			res, err := r.handler(kv.NewTxn(txn), app.lastBlockTime, args)
			if err != nil {
				return err
			}
			value, err = json.Marshal(res)
			return err
		})
		if err != nil {
			return abci.ResponseQuery{Code: resultCode(err), Codespace: Codespace, Log: err.Error(), Height: app.lastHeight}
		}
		return abci.ResponseQuery{Code: fault.CodeOK, Key: []byte(req.Path), Value: value, Height: app.lastHeight}
	}
	return abci.ResponseQuery{Code: fault.CodeEncoding, Codespace: Codespace, Log: "unsupported query", Height: app.lastHeight}
}

func readLedger(st kv.Store) *ledger.Ledger {
	return ledger.New(st, nativeTokens{})
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fault.InvalidInputError("invalid id: " + s)
	}
	return id, nil
}

func queryBounty(st kv.Store, _ int64, args []string) (any, error) {
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	return readLedger(st).GetBountyDetails(id)
}

func querySubmissions(st kv.Store, _ int64, args []string) (any, error) {
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	return readLedger(st).ListSubmissions(id)
}

func querySubmission(st kv.Store, _ int64, args []string) (any, error) {
	bountyID, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	subID, err := parseID(args[1])
	if err != nil {
		return nil, err
	}
	return readLedger(st).GetSubmission(bountyID, subID)
}

func queryTotal(st kv.Store, _ int64, _ []string) (any, error) {
	return readLedger(st).GetTotalBounties()
}

func queryList(st kv.Store, now int64, args []string) (any, error) {
	f, err := ledger.ParseFilter(args[0])
	if err != nil {
		return nil, err
	}
	return readLedger(st).ListBounties(f, now)
}

func queryCreatorBounties(st kv.Store, _ int64, args []string) (any, error) {
	addr, err := account.Parse(args[0])
	if err != nil {
		return nil, err
	}
	return readLedger(st).GetUserBounties(addr)
}

func queryDeveloperBounties(st kv.Store, _ int64, args []string) (any, error) {
	addr, err := account.Parse(args[0])
	if err != nil {
		return nil, err
	}
	return readLedger(st).GetUserSubmissions(addr)
}

func queryFees(st kv.Store, _ int64, _ []string) (any, error) {
	return readLedger(st).FeeConfig()
}

func loadToken(st kv.Store, s string) (*token.Token, error) {
	addr, err := parseToken(s)
	if err != nil {
		return nil, err
	}
	return token.Load(st, addr)
}

func queryToken(st kv.Store, _ int64, args []string) (any, error) {
	t, err := loadToken(st, args[0])
	if err != nil {
		return nil, err
	}
	return t.Info(), nil
}

func queryBalance(st kv.Store, _ int64, args []string) (any, error) {
	t, err := loadToken(st, args[0])
	if err != nil {
		return nil, err
	}
	holder, err := account.Parse(args[1])
	if err != nil {
		return nil, err
	}
	return t.BalanceOf(holder)
}

func queryAllowance(st kv.Store, _ int64, args []string) (any, error) {
	t, err := loadToken(st, args[0])
	if err != nil {
		return nil, err
	}
	owner, err := account.Parse(args[1])
	if err != nil {
		return nil, err
	}
	spender, err := account.Parse(args[2])
	if err != nil {
		return nil, err
	}
	return t.Allowance(owner, spender)
}

func queryNonce(st kv.Store, _ int64, args []string) (any, error) {
	addr, err := account.Parse(args[0])
	if err != nil {
		return nil, err
	}
	return getNonce(st, addr)
}
