package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/client"
	"github.com/spec-kit/dinewithus/internal/identity"
	"github.com/spec-kit/dinewithus/internal/session"
)

type options struct {
	apiURL      string
	identityURL string
	apiKey      string
	configDir   string
	verbose     bool
}

// app holds the collaborators every command works with.
type app struct {
	api      *client.APIClient
	files    *client.FileSessionStore
	ids      *client.IdentitySession
	sessions *session.Store
}

func (o *options) build() (*app, error) {
	logger := zap.NewNop()
	if o.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = l
	}

	identityURL := o.identityURL
	if identityURL == "" {
		identityURL = o.apiURL
	}
	api := client.NewAPIClient(o.apiURL, nil)
	files := client.NewFileSessionStore(o.configDir)
	ids := client.NewIdentitySession(identity.NewGoTrueClient(identityURL, o.apiKey, nil), files, api.SignOut)
	return &app{
		api:      api,
		files:    files,
		ids:      ids,
		sessions: session.NewStore(ids, api, logger),
	}, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "dinectl",
		Short: "Sign in to DineWithUs and manage your role",
		Long: `dinectl is a command line front end for DineWithUs.

It signs in with a one-time code, keeps the session between runs, walks a new
account through role selection and shows what the access guards decide.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("DINEWITHUS_API_URL", "http://localhost:8080"), "DineWithUs API base URL")
	root.PersistentFlags().StringVar(&opts.identityURL, "identity", os.Getenv("DINEWITHUS_IDENTITY_URL"), "identity provider base URL (defaults to the API URL)")
	root.PersistentFlags().StringVar(&opts.apiKey, "identity-key", os.Getenv("DINEWITHUS_IDENTITY_API_KEY"), "identity provider API key")
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", defaultConfigDir(), "directory holding the saved session")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log session store activity")

	root.AddCommand(
		newSignInCmd(opts),
		newVerifyCmd(opts),
		newWhoAmICmd(opts),
		newRoleCmd(opts),
		newAccessCmd(opts),
		newSignOutCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".dinewithus"
	}
	return filepath.Join(dir, "dinewithus")
}
