package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"forum-service/internal/config"
	"forum-service/internal/db"
	"forum-service/internal/observability"
	"forum-service/internal/repositories"
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errEmptyPassword    = errors.New("password must not be empty")
)

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "forumctl",
		Short:         "Administer the forum-service database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(newInitDBCmd(), newCreateUserCmd())
	return root
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := connect(cmd.Context())
			if err != nil {
				return report(cmd, err)
			}
			defer database.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Database initialized.")
			return nil
		},
	}
}

func newCreateUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user <username>",
		Short: "Register an account, prompting for its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			if username == "" {
				return report(cmd, errors.New("username must not be empty"))
			}

			prompt := newPasswordPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
			password, err := prompt.read("Password: ")
			if err != nil {
				return report(cmd, err)
			}
			confirm, err := prompt.read("Confirm: ")
			if err != nil {
				return report(cmd, err)
			}
			if password != confirm {
				fmt.Fprintln(cmd.ErrOrStderr(), "Passwords do not match.")
				return errPasswordMismatch
			}
			if password == "" {
				return report(cmd, errEmptyPassword)
			}

			database, err := connect(cmd.Context())
			if err != nil {
				return report(cmd, err)
			}
			defer database.Close()

			users := repositories.NewUserRepo(repositories.NewDB(database))
			if _, err := users.CreateUser(cmd.Context(), username, password); err != nil {
				return report(cmd, fmt.Errorf("create user %q: %w", username, err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "User created.")
			return nil
		},
	}
}

func connect(ctx context.Context) (*sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	observability.SetLogLevel(cfg.LogLevel)
	return db.Connect(ctx, cfg)
}

func report(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return err
}

// passwordPrompt reads secrets without echo from a terminal and falls back to
// plain lines for pipes and tests.
type passwordPrompt struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPasswordPrompt(in io.Reader, out io.Writer) *passwordPrompt {
	return &passwordPrompt{in: in, out: out, reader: bufio.NewReader(in)}
}

func (p *passwordPrompt) read(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(secret), nil
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
