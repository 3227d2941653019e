package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"cogbot/backend/internal/cogs/availability"
)

func newCheckCmd() *cobra.Command {
	var (
		url      string
		search   string
		selector string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one availability check",
		Long:  `Fetch a page once and report whether the search string is on it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}

			found, err := availability.Search(cmd.Context(), client, url, search, selector)
			if err != nil {
				return err
			}

			if found {
				fmt.Fprintln(cmd.OutOrStdout(), "found")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not found")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "page to fetch")
	cmd.Flags().StringVar(&search, "search", "", "text to look for")
	cmd.Flags().StringVar(&selector, "selector", "", "only search inside elements matching this CSS selector")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("search")
	return cmd
}
