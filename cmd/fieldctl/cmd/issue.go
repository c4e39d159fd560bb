package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	issueTenantID  string
	issueRound     int
	issueHolder    string
	issueExpiresOn string
)

func init() {
	issueTerritoryCmd.Flags().StringVar(&issueTenantID, "tenant", "", "tenant ID (required)")
	issueTerritoryCmd.Flags().IntVar(&issueRound, "round", 0, "round number (required)")
	issueTerritoryCmd.Flags().StringVar(&issueHolder, "holder", "", "overseer display name (required)")
	issueTerritoryCmd.Flags().StringVar(&issueExpiresOn, "expires", "", "last valid day, YYYY-MM-DD (required)")
	_ = issueTerritoryCmd.MarkFlagRequired("tenant")
	_ = issueTerritoryCmd.MarkFlagRequired("round")
	_ = issueTerritoryCmd.MarkFlagRequired("holder")
	_ = issueTerritoryCmd.MarkFlagRequired("expires")

	issueBlockCmd.Flags().StringVar(&issueTenantID, "tenant", "", "tenant ID (required)")
	issueBlockCmd.Flags().IntVar(&issueRound, "round", 0, "round number (required)")
	_ = issueBlockCmd.MarkFlagRequired("tenant")
	_ = issueBlockCmd.MarkFlagRequired("round")

	issueCmd.AddCommand(issueTerritoryCmd)
	issueCmd.AddCommand(issueBlockCmd)
	rootCmd.AddCommand(issueCmd)
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue capability tokens",
}

var issueTerritoryCmd = &cobra.Command{
	Use:   "territory <territory-id>",
	Short: "Issue a territory-wide overseer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Key string `json:"key"`
		}
		err := newAPIClient().do(cmd.Context(), http.MethodPost, "/tokens/territory", map[string]any{
			"tenant_id":       issueTenantID,
			"territory_id":    args[0],
			"round":           issueRound,
			"holder":          issueHolder,
			"expiration_date": issueExpiresOn,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Println(okFmt("territory token issued"))
		fmt.Println("key:", resp.Key)
		return nil
	},
}

var issueBlockCmd = &cobra.Command{
	Use:   "block <territory-id> <block-id>",
	Short: "Issue a single-block publisher token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Key string `json:"key"`
		}
		err := newAPIClient().do(cmd.Context(), http.MethodPost, "/tokens/block", map[string]any{
			"tenant_id":    issueTenantID,
			"territory_id": args[0],
			"block_id":     args[1],
			"round":        issueRound,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Println(okFmt("block token issued"))
		fmt.Println("key:", resp.Key)
		return nil
	},
}
