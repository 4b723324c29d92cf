package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/medq/medq/pkg/apiclient"
)

// app is built once per invocation by the root command.
type app struct {
	client  *apiclient.Client
	session *apiclient.FileSession
	logger  zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MEDQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:          "medq",
		Short:        "MedQ patient intake and records from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(v, cmd)
		},
	}
	rootCmd.PersistentFlags().String("api-url", "http://localhost:8000", "MedQ server URL (MEDQ_API_URL)")
	rootCmd.PersistentFlags().String("token-file", "", "Where the login token is kept (MEDQ_TOKEN_FILE)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every request")
	_ = v.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = v.BindPFlag("token-file", rootCmd.PersistentFlags().Lookup("token-file"))
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(loginCmd(a), logoutCmd(a), whoamiCmd(a))
	rootCmd.AddCommand(intakeCmd(a), chatCmd(a))
	rootCmd.AddCommand(patientsCmd(a), exportCmd(a), analyticsCmd(a))
	return rootCmd
}

func (a *app) init(v *viper.Viper, cmd *cobra.Command) error {
	a.logger = zerolog.Nop()
	if v.GetBool("verbose") {
		a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}

	session, err := apiclient.NewFileSession(v.GetString("token-file"))
	if err != nil {
		return err
	}
	a.session = session

	stderr := cmd.ErrOrStderr()
	a.client = apiclient.New(v.GetString("api-url"), session,
		apiclient.WithLogger(a.logger),
		apiclient.WithUnauthorizedHook(func() {
			fmt.Fprintln(stderr, "Your session has expired or is invalid. Run `medq login` to sign in again.")
		}),
	)
	return nil
}
