// Command docissuer is the issuer and owner client for the document ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
	"google.golang.org/grpc/status"

	"github.com/and161185/doc-issuer/internal/ledger/grpcledger"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app carries global flags and the streams commands talk to.
type app struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
	password  string
	verbose   bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	log    *zap.Logger
}

func (a *app) options(token string) grpcledger.Options {
	return grpcledger.Options{CACert: a.caPath, SkipVerify: a.insecure, Plaintext: a.plaintext, Token: token}
}

// readPassword returns --password, $DOCISSUER_PASSWORD, or asks on the terminal.
func (a *app) readPassword(prompt string) (string, error) {
	if a.password != "" {
		return a.password, nil
	}
	if v := os.Getenv("DOCISSUER_PASSWORD"); v != "" {
		return v, nil
	}
	f, ok := a.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errors.New("password required (--password or DOCISSUER_PASSWORD)")
	}
	fmt.Fprint(a.errOut, prompt)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.errOut)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.New("empty password")
	}
	return string(b), nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "docissuer",
		Short:         "Issue confidential documents to ledger accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				a.log = l
			}
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.addr, "addr", "localhost:8443", "ledger node address")
	pf.StringVar(&a.caPath, "cacert", "", "CA cert (PEM)")
	pf.BoolVar(&a.insecure, "insecure", false, "skip cert verify (dev)")
	pf.BoolVar(&a.plaintext, "plaintext", false, "connect without TLS (local node)")
	pf.StringVar(&a.password, "password", "", "password (prompted when omitted)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		versionCmd(a),
		keygenCmd(a),
		registerCmd(a),
		loginCmd(a),
		issueCmd(a),
		watchCmd(a),
		inboxCmd(a),
	)
	return root
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.out, "docissuer %s (%s)\n", version, buildDate)
		},
	}
}

// main runs the command tree until it returns or the process is interrupted.
func main() {
	a := &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr, log: zap.NewNop()}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(a).ExecuteContext(ctx)
	_ = a.log.Sync()
	if err != nil {
		fail(a.errOut, err)
		stop()
		os.Exit(1)
	}
}

// shownError is an error the user already saw as a notification.
// It still fails the command but prints nothing more.
type shownError struct{ err error }

func (e shownError) Error() string { return e.err.Error() }
func (e shownError) Unwrap() error { return e.err }

// fail prints err; gRPC statuses show their code.
func fail(w io.Writer, err error) {
	var shown shownError
	if errors.As(err, &shown) {
		return
	}
	var st interface{ GRPCStatus() *status.Status }
	if errors.As(err, &st) {
		s := st.GRPCStatus()
		fmt.Fprintf(w, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		return
	}
	fmt.Fprintln(w, strings.TrimSpace(err.Error()))
}
