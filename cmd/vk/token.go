package main

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/vk-client/pkg/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(a *app) *cobra.Command {
	var (
		clientID     string
		clientSecret string
		username     string
		password     string
		scope        string
		captchaSID   string
		captchaKey   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain an access token from the OAuth server",
		Long: `Obtain an access token from the OAuth server.

Without --username a service token is requested with the client_credentials
grant. With --username and --password the password grant is used, which VK
allows for trusted applications only.

If VK answers with a captcha challenge the command fails and prints the
captcha image; run it again with --captcha-sid and --captcha-key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Auth
			flags := cmd.Flags()
			if flags.Changed("client-id") {
				cfg.ClientID = clientID
			}
			if flags.Changed("client-secret") {
				cfg.ClientSecret = clientSecret
			}
			if flags.Changed("username") {
				cfg.Username = username
			}
			if flags.Changed("password") {
				cfg.Password = password
			}
			if flags.Changed("scope") {
				cfg.Scope = scope
			}
			if (captchaSID == "") != (captchaKey == "") {
				return errors.New("--captcha-sid and --captcha-key must be used together")
			}

			authenticator, err := auth.NewAuthenticator(auth.Config{
				BaseURL:      cfg.OAuthURL,
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Username:     cfg.Username,
				Password:     cfg.Password,
				Scope:        cfg.Scope,
				APIVersion:   a.cfg.API.Version,
				UserAgent:    a.cfg.API.UserAgent,
			})
			if err != nil {
				return err
			}

			var token *auth.Token
			if captchaSID != "" {
				token, err = authenticator.GetTokenWithCaptcha(cmd.Context(), &auth.CaptchaError{SID: captchaSID}, captchaKey)
			} else {
				token, err = authenticator.GetToken(cmd.Context())
			}

			var captcha *auth.CaptchaError
			if errors.As(err, &captcha) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Captcha required: %s\nRetry with --captcha-sid %s --captcha-key <text>\n", captcha.Image, captcha.SID)
			}
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Application id (overrides VK_CLIENT_ID)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "Application secret (overrides VK_CLIENT_SECRET)")
	cmd.Flags().StringVar(&username, "username", "", "Login for the password grant")
	cmd.Flags().StringVar(&password, "password", "", "Password for the password grant")
	cmd.Flags().StringVar(&scope, "scope", "", "Comma-separated permissions for the password grant")
	cmd.Flags().StringVar(&captchaSID, "captcha-sid", "", "Captcha sid from a previous attempt")
	cmd.Flags().StringVar(&captchaKey, "captcha-key", "", "Captcha answer")

	return cmd
}
