package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"

	"github.com/spf13/cobra"

	relayapi "github.com/aegis-sign/connect/internal/api"
	"github.com/aegis-sign/connect/internal/infra/relayclient"
	"github.com/aegis-sign/connect/internal/infra/relaygrpc"
	"github.com/aegis-sign/connect/internal/uri"
)

var deliverGRPC string

var deliverCmd = &cobra.Command{
	Use:   "deliver <callback-url|request-uri> <message-json>",
	Short: "Act as the signing agent and write an answer into a relay mailbox",
	Example: `  connectctl deliver http://localhost:8081/topic/3f2a... '{"access_token":"0x..."}'
  connectctl deliver 'aegis:me?callback_url=...' '{"error":"user rejected"}'
  connectctl deliver --grpc vsock://3:9090 http://relay/topic/3f2a... '{"tx":"0x..."}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		callbackURL, err := resolveCallback(args[0])
		if err != nil {
			return err
		}
		var message map[string]any
		if err := json.Unmarshal([]byte(args[1]), &message); err != nil {
			return fmt.Errorf("message must be a JSON object: %w", err)
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		if deliverGRPC == "" {
			client := relayclient.New(relayclient.LoadConfigFromEnv(), relayclient.WithLogger(newLogger()))
			return client.Post(ctx, callbackURL, message)
		}
		u, err := url.Parse(callbackURL)
		if err != nil {
			return fmt.Errorf("parse callback url: %w", err)
		}
		cfg := relaygrpc.LoadConfigFromEnv()
		cfg.Endpoint = deliverGRPC
		conn, err := relaygrpc.Dial(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		return relayapi.NewGRPCClient(conn).Deliver(ctx, path.Base(u.Path), json.RawMessage(args[1]))
	},
}

var uriCmd = &cobra.Command{
	Use:   "uri <request-uri>",
	Short: "Decode a request URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme, req, err := uri.Parse(args[0])
		if err != nil {
			return err
		}
		out := map[string]any{
			"scheme":      scheme,
			"target":      req.Target,
			"callbackUrl": req.CallbackURL,
		}
		if req.Value != nil {
			out["value"] = req.Value.String()
		}
		for key, value := range map[string]string{
			"function": req.Function,
			"bytecode": req.Bytecode,
			"label":    req.Label,
			"clientId": req.ClientID,
		} {
			if value != "" {
				out[key] = value
			}
		}
		if len(req.Extra) > 0 {
			out["extra"] = req.Extra
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	deliverCmd.Flags().StringVar(&deliverGRPC, "grpc", "", "deliver through the relay gRPC endpoint (host:port, unix://path, vsock://cid:port)")
}

// resolveCallback 接受 callback URL 或完整请求 URI。
func resolveCallback(raw string) (string, error) {
	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return raw, nil
	}
	_, req, err := uri.Parse(raw)
	if err != nil {
		return "", err
	}
	if req.CallbackURL == "" {
		return "", fmt.Errorf("request uri has no callback_url")
	}
	return req.CallbackURL, nil
}
