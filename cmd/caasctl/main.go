// Command caasctl is the operator CLI for a running caasd process: it
// compiles and inspects policies, reads ledger entries and verifies the chain, and
// builds/verifies compliance proof bundles over caasd's HTTP surface.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var addr string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "caasctl",
	Short: "Operate a running caasd instance",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:9010", "caasd base URL")

	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyCompileCmd)
	policyCmd.AddCommand(policyGetCmd)
	policyCmd.AddCommand(policyVersionsCmd)

	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerGetCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)

	rootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleBuildCmd)
	bundleCmd.AddCommand(bundleVerifyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Compile and inspect policies via PAC",
}

var policyCompileCmd = &cobra.Command{
	Use:   "compile <file.json>",
	Short: "Compile a policy document and print its commitment hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return postJSON(cmd, "/policies/", body)
	},
}

var policyGetCmd = &cobra.Command{
	Use:   "get <policy-id>",
	Short: "Fetch the latest (or a specific --version) compile of a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		path := "/policies/" + args[0]
		if version != "" {
			path += "?version=" + version
		}
		return getJSON(cmd, path)
	},
}

var policyVersionsCmd = &cobra.Command{
	Use:   "versions <policy-id>",
	Short: "List the compiled versions of a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(cmd, "/policies/"+args[0]+"/versions")
	},
}

func init() {
	policyGetCmd.Flags().String("version", "", "specific version to fetch")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Read and verify the audit ledger via CAL",
}

var ledgerGetCmd = &cobra.Command{
	Use:   "get <record-id>",
	Short: "Fetch a single audit record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(cmd, "/ledger/records/"+args[0])
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the full hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(cmd, "/ledger/verify")
	},
}

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Build and verify compliance proof bundles via ZCVI",
}

var bundleBuildCmd = &cobra.Command{
	Use:   "build <request.json>",
	Short: "Build a proof bundle from a build-request document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return postJSON(cmd, "/bundles/", body)
	},
}

var bundleVerifyCmd = &cobra.Command{
	Use:   "verify <bundle.json>",
	Short: "Verify a proof bundle offline against the live ledger's rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return postJSON(cmd, "/bundles/verify", body)
	},
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func getJSON(cmd *cobra.Command, path string) error {
	resp, err := httpClient().Get(addr + path)
	if err != nil {
		return err
	}
	return printResponse(cmd, resp)
}

func postJSON(cmd *cobra.Command, path string, body []byte) error {
	resp, err := httpClient().Post(addr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return printResponse(cmd, resp)
}

func printResponse(cmd *cobra.Command, resp *http.Response) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		cmd.Println(string(raw))
		return nil
	}
	cmd.Println(pretty.String())
	if resp.StatusCode >= 400 {
		return fmt.Errorf("caasd returned %s", resp.Status)
	}
	return nil
}
