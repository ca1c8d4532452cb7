// Command ledgerctl is the operator CLI for a running trustledger server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"trustledger/internal/report"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ledgerctl",
		Usage: "operate the identity, credential and report ledgers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "endpoint",
				Value:   "http://localhost:8080",
				Usage:   "trustledger base URL",
				EnvVars: []string{"TRUSTLEDGER_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "caller",
				Usage:   "caller address sent as X-Caller-ID",
				EnvVars: []string{"TRUSTLEDGER_CALLER"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
				Usage: "per-request timeout",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "bind the caller to an external identifier",
				ArgsUsage: "<external-id>",
				Action: func(c *cli.Context) error {
					externalID, err := arg(c, 0, "external-id")
					if err != nil {
						return err
					}
					return call(c, http.MethodPost, "/identity/register", map[string]string{"externalId": externalID})
				},
			},
			{
				Name:      "verify-user",
				Usage:     "mark a registered user verified (administrator)",
				ArgsUsage: "<owner>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "owner", http.MethodPost, "/identity/users/%s/verify")
				},
			},
			{
				Name:      "user",
				Usage:     "show a user record",
				ArgsUsage: "<owner>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "owner", http.MethodGet, "/identity/users/%s")
				},
			},
			{
				Name:  "restricted",
				Usage: "perform the verified-only action as the caller",
				Action: func(c *cli.Context) error {
					return call(c, http.MethodPost, "/identity/restricted", nil)
				},
			},
			{
				Name:      "add-issuer",
				Usage:     "grant the issuer role (administrator)",
				ArgsUsage: "<issuer>",
				Action: func(c *cli.Context) error {
					issuer, err := arg(c, 0, "issuer")
					if err != nil {
						return err
					}
					return call(c, http.MethodPost, "/credentials/issuers", map[string]string{"issuer": issuer})
				},
			},
			{
				Name:   "issue",
				Usage:  "issue a credential in one step (issuer)",
				Flags:  credentialFlags(),
				Action: func(c *cli.Context) error { return call(c, http.MethodPost, "/credentials", credentialBody(c)) },
			},
			{
				Name:  "initiate",
				Usage: "open a multi-issuer approval (issuer)",
				Flags: append(credentialFlags(), &cli.IntFlag{
					Name:     "approvals",
					Usage:    "number of distinct issuer approvals required",
					Required: true,
				}),
				Action: func(c *cli.Context) error {
					body := credentialBody(c)
					body["neededApprovals"] = c.Int("approvals")
					return call(c, http.MethodPost, "/credentials/pending", body)
				},
			},
			{
				Name:      "approve",
				Usage:     "approve a pending credential (issuer)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "id", http.MethodPost, "/credentials/pending/%s/approve")
				},
			},
			{
				Name:      "pending",
				Usage:     "show a pending credential",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "id", http.MethodGet, "/credentials/pending/%s")
				},
			},
			{
				Name:      "revoke",
				Usage:     "revoke a credential (administrator)",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Usage: "revocation reason"},
				},
				Action: func(c *cli.Context) error {
					credID, err := arg(c, 0, "id")
					if err != nil {
						return err
					}
					return call(c, http.MethodPost, "/credentials/"+url.PathEscape(credID)+"/revoke",
						map[string]string{"reason": c.String("reason")})
				},
			},
			{
				Name:      "credential",
				Usage:     "show a credential",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "id", http.MethodGet, "/credentials/%s")
				},
			},
			{
				Name:      "verify",
				Usage:     "check whether a credential is currently valid",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "id", http.MethodGet, "/credentials/%s/verify")
				},
			},
			{
				Name:    "submit",
				Aliases: []string{"submit-report"},
				Usage:   "submit a report; free text is hashed with keccak256",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "fingerprint", Usage: "precomputed content fingerprint"},
					&cli.StringFlag{Name: "content", Usage: "content to fingerprint with keccak256"},
					&cli.StringFlag{Name: "category", Usage: "precomputed category tag"},
					&cli.StringFlag{Name: "category-name", Usage: "category name to hash with keccak256"},
				},
				Action: func(c *cli.Context) error {
					fingerprint, err := oneOf(c, "fingerprint", "content")
					if err != nil {
						return err
					}
					category, err := oneOf(c, "category", "category-name")
					if err != nil {
						return err
					}
					return call(c, http.MethodPost, "/reports", map[string]string{
						"fingerprint": fingerprint,
						"category":    category,
					})
				},
			},
			{
				Name:  "reports",
				Usage: "list report ids submitted by the caller",
				Action: func(c *cli.Context) error {
					return call(c, http.MethodGet, "/reports/mine", nil)
				},
			},
			{
				Name:      "report",
				Usage:     "show a report",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "id", http.MethodGet, "/reports/%s")
				},
			},
			{
				Name:      "resolve",
				Aliases:   []string{"resolve-report"},
				Usage:     "mark a report resolved (administrator)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return callWithArg(c, "id", http.MethodPost, "/reports/%s/resolve")
				},
			},
			{
				Name:  "events",
				Usage: "page through the emitted-record log",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "after", Usage: "return records after this sequence number"},
					&cli.IntFlag{Name: "limit", Value: 100, Usage: "page size"},
				},
				Action: func(c *cli.Context) error {
					q := url.Values{}
					q.Set("after", fmt.Sprint(c.Uint64("after")))
					q.Set("limit", fmt.Sprint(c.Int("limit")))
					return call(c, http.MethodGet, "/events?"+q.Encode(), nil)
				},
			},
			{
				Name:  "verify-chain",
				Usage: "ask the server to verify the record hash chain",
				Action: func(c *cli.Context) error {
					return call(c, http.MethodGet, "/events/verify", nil)
				},
			},
		},
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "holder", Usage: "holder address", Required: true},
		&cli.StringFlag{Name: "content-ref", Usage: "reference to the attested content"},
		&cli.StringFlag{Name: "schema", Usage: "credential schema identifier"},
		&cli.Int64Flag{Name: "expiry", Usage: "unix seconds after which the credential is invalid; 0 never expires"},
	}
}

func credentialBody(c *cli.Context) map[string]any {
	return map[string]any{
		"holder":     c.String("holder"),
		"contentRef": c.String("content-ref"),
		"schema":     c.String("schema"),
		"expiry":     c.Int64("expiry"),
	}
}

// oneOf returns the raw flag value, or the keccak256 of the text flag. Exactly
// one of the two must be set.
func oneOf(c *cli.Context, raw, text string) (string, error) {
	switch {
	case c.IsSet(raw) && c.IsSet(text):
		return "", fmt.Errorf("--%s and --%s are mutually exclusive", raw, text)
	case c.IsSet(raw):
		return c.String(raw), nil
	case c.IsSet(text):
		return report.Keccak256Hex(c.String(text)), nil
	default:
		return "", fmt.Errorf("one of --%s or --%s is required", raw, text)
	}
}

func arg(c *cli.Context, i int, name string) (string, error) {
	v := c.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("missing <%s> argument", name)
	}
	return v, nil
}

func callWithArg(c *cli.Context, name, method, pathFormat string) error {
	v, err := arg(c, 0, name)
	if err != nil {
		return err
	}
	return call(c, method, fmt.Sprintf(pathFormat, url.PathEscape(v)), nil)
}

// call performs the request and pretty-prints the response body.
func call(c *cli.Context, method, path string, body any) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	cl := &client{
		endpoint: c.String("endpoint"),
		caller:   c.String("caller"),
		http:     http.DefaultClient,
	}
	raw, err := cl.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, raw)
}

func printJSON(w io.Writer, raw []byte) error {
	if len(raw) == 0 {
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
