package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/consentgate/internal/security/apikey"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("X-Admin-API-Key", c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("CONSENTGATE_URL", "http://localhost:8080")
		apiKey  = envOr("CONSENTGATE_ADMIN_KEY", "")
		out     = envOr("CONSENTGATE_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "consentgate",
		Short: "CLI admin para ConsentGate",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env CONSENTGATE_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key admin (env CONSENTGATE_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: timeout}}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cl.BaseURL, cl.APIKey, cl.OutFormat = baseURL, apiKey, out
	}

	// grupo grants
	grantsCmd := &cobra.Command{
		Use:   "grants",
		Short: "Gestión de grants de consent",
	}

	var listLimit, listOffset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar todos los grants (paginado)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/admin/grants?limit=%d&offset=%d", listLimit, listOffset)
			status, body, err := cl.do("GET", path, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("list falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "máximo de grants a retornar")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "offset de paginación")

	userCmd := &cobra.Command{
		Use:   "user <user-id>",
		Short: "Listar los grants de un usuario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/grants/"+args[0], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("user falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <user-id> <client-id>",
		Short: "Ver el grant de un par user/client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/grants/"+args[0]+"/"+args[1], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("get falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <user-id> <client-id>",
		Short: "Revocar (borrar) el grant completo de un par user/client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/grants/"+args[0]+"/"+args[1], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revoke falló: status=%d body=%s", status, string(body))
			}
			fmt.Println("revoked")
			return nil
		},
	}

	grantsCmd.AddCommand(listCmd, userCmd, getCmd, revokeCmd)

	// interacciones
	interactionCmd := &cobra.Command{
		Use:   "interaction <id>",
		Short: "Inspeccionar una sesión de interacción",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/interactions/"+args[0], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("interaction falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	// keygen: hash argon2id para ADMIN_API_KEY_HASH
	keygenCmd := &cobra.Command{
		Use:   "hash-key <plain-key>",
		Short: "Generar el hash argon2id PHC de una API key admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phc, err := apikey.Hash(apikey.Default, args[0])
			if err != nil {
				return err
			}
			fmt.Println(phc)
			return nil
		},
	}

	root.AddCommand(grantsCmd, interactionCmd, keygenCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
