package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	tt "github.com/panyam/tracktime"
	"github.com/panyam/tracktime/client"
)

type statusReport struct {
	Store           string `json:"store"`
	OAuthConfigured bool   `json:"oauthConfigured"`
	HasClientID     bool   `json:"hasClientId"`
	HasClientSecret bool   `json:"hasClientSecret"`
	AuthType        string `json:"authType"`
	Authenticated   bool   `json:"authenticated"`
	HasRefreshToken bool   `json:"hasRefreshToken"`
	SiteName        string `json:"siteName,omitempty"`
	SiteURL         string `json:"siteUrl,omitempty"`
	Domain          string `json:"domain,omitempty"`
	AccessToken     string `json:"accessToken,omitempty"`
}

func statusCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show OAuth configuration and connection state from the settings store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
			store, closeStore, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			status, err := tt.LoadOAuthConfigStatus(cmd.Context(), store)
			if err != nil {
				return err
			}
			sess := tt.NewSession()
			if err := sess.Hydrate(cmd.Context(), store); err != nil {
				return err
			}
			st := sess.Snapshot()

			r := statusReport{
				Store:           cfg.Store,
				OAuthConfigured: status.Configured,
				HasClientID:     status.HasClientID,
				HasClientSecret: status.HasClientSecret,
				AuthType:        string(st.Mode),
				Authenticated:   st.Authenticated(),
				HasRefreshToken: st.RefreshToken != "",
				SiteName:        st.SiteName,
				SiteURL:         st.SiteURL,
				Domain:          st.Domain,
			}
			if st.AccessToken != "" {
				r.AccessToken = client.Redact(st.AccessToken)
			}
			return writeStatus(cmd.OutOrStdout(), r, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func writeStatus(w io.Writer, r statusReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "Store:             %s\n", r.Store)
	fmt.Fprintf(w, "OAuth configured:  %t (client id: %t, client secret: %t)\n", r.OAuthConfigured, r.HasClientID, r.HasClientSecret)
	fmt.Fprintf(w, "Auth type:         %s\n", r.AuthType)
	fmt.Fprintf(w, "Authenticated:     %t\n", r.Authenticated)
	if r.AuthType == string(tt.AuthModeOAuth) {
		fmt.Fprintf(w, "Refresh token:     %t\n", r.HasRefreshToken)
		if r.AccessToken != "" {
			fmt.Fprintf(w, "Access token:      %s\n", r.AccessToken)
		}
		if r.SiteName != "" {
			fmt.Fprintf(w, "Site:              %s (%s)\n", r.SiteName, r.SiteURL)
		}
	} else if r.Domain != "" {
		fmt.Fprintf(w, "Domain:            %s\n", r.Domain)
	}
	return nil
}
