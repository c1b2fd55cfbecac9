package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/calehh/hac-gov/app"
	"github.com/calehh/hac-gov/crypto"
	"github.com/calehh/hac-gov/tx"
	"github.com/cometbft/cometbft/rpc/client/http"
)

func queryApp(ctx context.Context, cli *http.HTTP, path string, params app.QueryParams, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return err
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("query %s failed code:%d log:%s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

// sendTx signs body with the key at f.Skey and broadcasts it, or prints it
// when f.NoSend is set.
func sendTx(f *txFlags, tp tx.GovTxType, body any) error {
	cli, err := http.New(f.Url, "/websocket")
	if err != nil {
		return fmt.Errorf("new client err:%w", err)
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis err:%w", err)
	}
	chainId := gres.Genesis.ChainID

	pv, err := crypto.LoadFilePV(f.Skey)
	if err != nil {
		return err
	}
	var nonce uint64
	if f.Nonce < 0 {
		err = queryApp(ctx, cli, app.QueryNonce, app.QueryParams{Voter: pv.Address()}, &nonce)
		if err != nil {
			return fmt.Errorf("query nonce err:%w", err)
		}
	} else {
		nonce = uint64(f.Nonce)
	}

	btx := tx.NewGovTx(tp, nonce, body)
	if err = btx.Sign(pv, chainId); err != nil {
		return fmt.Errorf("sign tx err:%w", err)
	}
	fmt.Println("address:", pv.Address())
	dat, err := tx.MarshalGovTx(btx)
	if err != nil {
		return fmt.Errorf("encode tx err:%w", err)
	}
	if f.NoSend {
		fmt.Println("tx:", hex.EncodeToString(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx err:%w", err)
	}
	out, _ := json.Marshal(res)
	fmt.Printf("%v\n", string(out))
	if res.Code != 0 {
		return fmt.Errorf("tx rejected code:%d log:%s", res.Code, res.Log)
	}
	return nil
}
