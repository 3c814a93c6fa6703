package main

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/aegis-sign/connect/internal/provider"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Request the connected account address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRPC(cmd, "eth_accounts", nil)
	},
}

var (
	txTo    string
	txValue string
	txData  string
	txGas   uint64
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Ask the signing agent to sign and send a transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tx := []byte(`{}`)
		var err error
		if tx, err = sjson.SetBytes(tx, "to", txTo); err != nil {
			return err
		}
		if txValue != "" {
			value, ok := new(big.Int).SetString(txValue, 10)
			if !ok {
				return fmt.Errorf("invalid --value %q, expected a decimal wei amount", txValue)
			}
			if tx, err = sjson.SetBytes(tx, "value", hexutil.EncodeBig(value)); err != nil {
				return err
			}
		}
		if txData != "" {
			if tx, err = sjson.SetBytes(tx, "data", txData); err != nil {
				return err
			}
		}
		if txGas > 0 {
			if tx, err = sjson.SetBytes(tx, "gas", hexutil.EncodeUint64(txGas)); err != nil {
				return err
			}
		}
		return runRPC(cmd, "eth_sendTransaction", []json.RawMessage{tx})
	},
}

var signAddress string

var signTypedCmd = &cobra.Command{
	Use:   "sign-typed <typed-data-json>",
	Short: "Request an EIP-712 typed data signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(args[0])) {
			return fmt.Errorf("typed data must be valid JSON")
		}
		addr, _ := json.Marshal(signAddress)
		return runRPC(cmd, "eth_signTypedData_v3", []json.RawMessage{addr, json.RawMessage(args[0])})
	},
}

var personalSignCmd = &cobra.Command{
	Use:   "personal-sign <message>",
	Short: "Request a personal_sign signature; plain text is hex encoded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := args[0]
		if _, err := hexutil.Decode(message); err != nil {
			message = hexutil.Encode([]byte(message))
		}
		msg, _ := json.Marshal(message)
		addr, _ := json.Marshal(signAddress)
		return runRPC(cmd, "personal_sign", []json.RawMessage{msg, addr})
	},
}

func init() {
	txCmd.Flags().StringVar(&txTo, "to", "", "recipient or contract address (required)")
	txCmd.Flags().StringVar(&txValue, "value", "", "value in wei (decimal)")
	txCmd.Flags().StringVar(&txData, "data", "", "0x-prefixed calldata")
	txCmd.Flags().Uint64Var(&txGas, "gas", 0, "gas limit")
	_ = txCmd.MarkFlagRequired("to")

	for _, cmd := range []*cobra.Command{signTypedCmd, personalSignCmd} {
		cmd.Flags().StringVar(&signAddress, "address", "", "signing account address (required)")
		_ = cmd.MarkFlagRequired("address")
	}
}

// runRPC 通过 Subprovider 执行一次 JSON-RPC 调用并打印结果。
func runRPC(cmd *cobra.Command, method string, params []json.RawMessage) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()
	client, err := newClient(ctx, cmd, "")
	if err != nil {
		return err
	}
	defer client.Close()
	stopFragment, err := serveFragment(client, newLogger())
	if err != nil {
		return err
	}
	defer stopFragment()

	rawParams, err := json.Marshal(params)
	if err != nil {
		return err
	}
	if params == nil {
		rawParams = json.RawMessage(`[]`)
	}
	resp := client.Provider().Handle(ctx, provider.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  rawParams,
	})
	if resp.Error != nil {
		return fmt.Errorf("%s failed (%d): %s", method, resp.Error.Code, resp.Error.Message)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(resp.Result))
	return err
}
