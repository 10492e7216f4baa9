package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/streamcast/config"
	"github.com/onnwee/streamcast/credentials"
	"github.com/onnwee/streamcast/crypto"
	"github.com/onnwee/streamcast/db"
	"github.com/onnwee/streamcast/securestore"
)

// newKeyDeriver is replaced in tests with a fixed host identity.
var newKeyDeriver = crypto.NewKeyDeriver

// openStore uses key (base64) when the operator pinned one, otherwise the
// host-bound key.
func openStore(key string) (*securestore.Store, error) {
	var (
		enc *crypto.AESEncryptor
		err error
	)
	if key != "" {
		enc, err = crypto.NewAESEncryptorFromBase64(key)
	} else {
		enc, err = newKeyDeriver().NewHostBoundEncryptor()
	}
	if err != nil {
		return nil, fmt.Errorf("init credentials encryption: %w", err)
	}
	return securestore.New(enc), nil
}

func newSetupCmd() *cobra.Command {
	var opts setupOptions
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store the bot token and OBS WebSocket password",
		Long: "Store the bot token and OBS WebSocket password in the encrypted credentials file.\n" +
			"Values not given as flags are prompted for. Existing moderators are kept.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.tokenSet = cmd.Flags().Changed("token")
			opts.passwordSet = cmd.Flags().Changed("obs-password")
			return runSetup(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.token, "token", "", "Chat bot token")
	cmd.Flags().StringVar(&opts.password, "obs-password", "", "OBS WebSocket password (empty when authentication is off)")
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the credentials file (token, password and moderators)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newModsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mods",
		Short: "List stored moderators",
		RunE:  runMods,
	}
}

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent commands from the audit log (requires DB_DSN)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

type setupOptions struct {
	token       string
	password    string
	tokenSet    bool
	passwordSet bool
}

func runSetup(cmd *cobra.Command, opts setupOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg.CredentialsKey)
	if err != nil {
		return err
	}
	rec := credentials.Parse(store.LoadFile(cfg.CredentialsFile))

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	token := opts.token
	if !opts.tokenSet {
		if token, err = prompt(in, out, "Bot token", rec.BotToken); err != nil {
			return err
		}
	}
	password := opts.password
	if !opts.passwordSet {
		if password, err = prompt(in, out, "OBS WebSocket password (blank for none)", ""); err != nil {
			return err
		}
	}

	rec.BotToken = strings.TrimSpace(token)
	rec.ControlPassword = strings.TrimSpace(password)
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := store.SaveFile(cfg.CredentialsFile, rec.Encode()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved credentials to %s (token %s, %d moderators kept).\n",
		cfg.CredentialsFile, maskSecret(rec.BotToken), len(rec.Moderators))
	return nil
}

// prompt reads one line; an empty answer keeps current when it is set.
func prompt(in *bufio.Reader, out io.Writer, label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, maskSecret(current))
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

func runReset(cmd *cobra.Command, yes bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !yes {
		answer, err := prompt(bufio.NewReader(cmd.InOrStdin()), out,
			"This deletes the bot token, OBS password and all moderators. Type 'yes' to continue", "")
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "yes") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}
	store, err := openStore(cfg.CredentialsKey)
	if err != nil {
		return err
	}
	if err := store.Reset(cfg.CredentialsFile); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %s. Run `streamcast setup` to configure again.\n", cfg.CredentialsFile)
	return nil
}

func runMods(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg.CredentialsKey)
	if err != nil {
		return err
	}
	rec := credentials.Parse(store.LoadFile(cfg.CredentialsFile))
	out := cmd.OutOrStdout()
	if len(rec.Moderators) == 0 {
		fmt.Fprintln(out, "No moderators have been added yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, m := range rec.Moderators {
		fmt.Fprintf(tw, "%d\t%s\n", m.ID, m.Name)
	}
	return tw.Flush()
}

func runAudit(cmd *cobra.Command, limit int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DBDsn == "" {
		return db.ErrNoDSN
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	database, err := db.Connect(ctx, cfg.DBDsn)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := db.NewAuditLog(database).Recent(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPLATFORM\tCOMMAND\tCALLER\tOUTCOME\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Platform, e.Command, e.CallerID, e.Outcome, e.Detail)
	}
	return tw.Flush()
}
