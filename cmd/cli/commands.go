package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/and161185/doc-issuer/internal/confirm"
	"github.com/and161185/doc-issuer/internal/crypto/envelope"
	"github.com/and161185/doc-issuer/internal/crypto/keystore"
	"github.com/and161185/doc-issuer/internal/issuance"
	"github.com/and161185/doc-issuer/internal/ledger/grpcledger"
	"github.com/and161185/doc-issuer/internal/model"
	"github.com/and161185/doc-issuer/internal/notify"
	"github.com/and161185/doc-issuer/internal/schema"
	"github.com/and161185/doc-issuer/internal/session"
)

const rpcTimeout = 30 * time.Second

func (a *app) client(token string) (*grpcledger.Client, func() error, error) {
	cc, err := grpcledger.Dial(a.addr, a.options(token))
	if err != nil {
		return nil, nil, err
	}
	return grpcledger.New(cc), cc.Close, nil
}

// session binds the saved token of user to a lazily dialed ledger connection.
func (a *app) session(user model.Address) *session.Session {
	return session.New(user, grpcledger.Connector(a.addr, a.options(""), loadToken))
}

func loadAccount() (*keystore.File, error) {
	f, err := keystore.Load(keyPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("no key file (run keygen first)")
		}
		return nil, err
	}
	return f, nil
}

func keygenCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create the account encryption keypair",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if _, err := os.Stat(keyPath()); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", keyPath())
			}
			pwd, err := a.readPassword("Key password: ")
			if err != nil {
				return err
			}
			kp, err := envelope.GenerateKey()
			if err != nil {
				return err
			}
			f, err := keystore.Seal(kp, []byte(pwd))
			if err != nil {
				return err
			}
			if err := keystore.Save(keyPath(), f); err != nil {
				return err
			}
			fmt.Fprintln(a.out, f.Address)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}

func registerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish the encryption key and create the ledger account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadAccount()
			if err != nil {
				return err
			}
			pwd, err := a.readPassword("Password: ")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			cl, closeFn, err := a.client("")
			if err != nil {
				return err
			}
			defer closeFn()

			addr, err := cl.Register(ctx, f.PublicKey, pwd)
			if err != nil {
				return err
			}
			if !addr.Equal(f.Address) {
				return fmt.Errorf("node registered %s, key file says %s", addr, f.Address)
			}
			fmt.Fprintln(a.out, addr)
			return nil
		},
	}
}

func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Obtain an access token for the local account (saves token)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadAccount()
			if err != nil {
				return err
			}
			pwd, err := a.readPassword("Password: ")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			cl, closeFn, err := a.client("")
			if err != nil {
				return err
			}
			defer closeFn()

			tok, err := cl.Login(ctx, f.Address, pwd)
			if err != nil {
				return err
			}
			exp := tok.ExpiresAt
			if exp.IsZero() {
				exp = tokenExpiry(tok.AccessToken, time.Now().Add(15*time.Minute))
			}
			if err := saveToken(f.Address, tok.AccessToken, exp); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func issueCmd(a *app) *cobra.Command {
	var (
		owner  string
		name   string
		fields []string
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Encrypt a document for its owner and anchor it on the ledger",
		Long: "Fields come from repeated --field label=value flags; without them the labels and\n" +
			"values are prompted for, an empty label finishing the document.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadAccount()
			if err != nil {
				return err
			}
			doc := schema.New()
			if len(fields) > 0 {
				if err := addFieldFlags(doc, fields); err != nil {
					return err
				}
			} else if err := promptFields(doc, a.in, a.errOut); err != nil {
				return err
			}

			ctx := cmd.Context()
			sess := a.session(f.Address)
			defer sess.Close()

			confirmed := make(chan struct{}, 1)
			sink := notify.Multi{
				notify.NewConsole(a.out),
				notify.Func(func(_, _ string, sev notify.Severity) {
					if sev == notify.Success {
						select {
						case confirmed <- struct{}{}:
						default:
						}
					}
				}),
			}

			var lst *confirm.Listener
			if wait > 0 {
				lst = confirm.New(sess, sink, a.log)
				if err := lst.Start(ctx); err != nil {
					fmt.Fprintln(a.errOut, "confirmations unavailable:", err)
					lst = nil
				}
			}

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.errOut))
			sub := issuance.New(sess, doc, sink,
				issuance.WithLogger(a.log),
				issuance.WithObserver(func(st issuance.State) {
					switch st {
					case issuance.Succeeded, issuance.Failed:
						sp.Stop()
					default:
						sp.Lock()
						sp.Suffix = " " + st.String()
						sp.Unlock()
						sp.Start()
					}
				}),
			)
			sub.SetOwnerAddress(owner)
			sub.SetDocumentName(name)

			rc, err := sub.Submit(ctx)
			if err != nil {
				return submitError(err)
			}
			printJSON(a.out, map[string]any{
				"tx_hash":      rc.TxHash,
				"block_number": rc.BlockNumber,
				"document_id":  rc.DocumentID.String(),
			})

			if lst == nil {
				return nil
			}
			select {
			case <-confirmed:
			case <-lst.Done():
				if err := lst.Err(); err != nil {
					fmt.Fprintln(a.errOut, "confirmation lost:", err)
				}
			case <-time.After(wait):
				fmt.Fprintln(a.errOut, "no confirmation within", wait)
			case <-ctx.Done():
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&owner, "owner", "", "owner account address")
	fl.StringVar(&name, "name", "", "document name")
	fl.StringArrayVar(&fields, "field", nil, "document field as label=value (repeatable)")
	fl.DurationVar(&wait, "wait", 30*time.Second, "how long to wait for the ledger confirmation (0 disables)")
	return cmd
}

// submitError keeps the exit status of a failed attempt without repeating
// the notification the submitter already raised.
func submitError(err error) error {
	var ie *issuance.Error
	if errors.As(err, &ie) {
		return shownError{err: err}
	}
	return err
}

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print a notification for every document the local account issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadAccount()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess := a.session(f.Address)
			defer sess.Close()

			lst := confirm.New(sess, notify.NewConsole(a.out), a.log)
			if err := lst.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "watching issuances by %s\n", f.Address)
			select {
			case <-ctx.Done():
				<-lst.Done()
				return nil
			case <-lst.Done():
				return lst.Err()
			}
		},
	}
}

type inboxRow struct {
	Name     string        `json:"name"`
	Issuer   model.Address `json:"issuer"`
	IssuedAt string        `json:"issued_at"`
	Block    int64         `json:"block_number"`
	TxHash   string        `json:"tx_hash"`
	Verified bool          `json:"verified"`
	Fields   []model.Field `json:"fields,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// openDocuments decrypts every document with priv; failures are reported per row.
func openDocuments(docs []model.Document, priv *[32]byte) []inboxRow {
	rows := make([]inboxRow, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		row := inboxRow{
			Name:     d.Name,
			Issuer:   d.Issuer,
			IssuedAt: time.Unix(d.IssuedAt, 0).UTC().Format(time.RFC3339),
			Block:    d.BlockNumber,
			TxHash:   d.TxHash(),
			Verified: d.Verify(),
		}
		plain, err := envelope.Decrypt(d.EncryptedDocument, priv)
		if err == nil {
			err = json.Unmarshal(plain, &row.Fields)
		}
		if err != nil {
			row.Error = err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

func inboxCmd(a *app) *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List and decrypt documents issued to the local account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var id uuid.UUID
			if docID != "" {
				var err error
				if id, err = uuid.FromString(docID); err != nil {
					return fmt.Errorf("--id: %w", err)
				}
			}
			f, err := loadAccount()
			if err != nil {
				return err
			}
			pwd, err := a.readPassword("Key password: ")
			if err != nil {
				return err
			}
			kp, err := f.Open([]byte(pwd))
			if err != nil {
				return err
			}
			tok, err := loadToken(f.Address)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			cl, closeFn, err := a.client(tok)
			if err != nil {
				return err
			}
			defer closeFn()

			var docs []model.Document
			if id != uuid.Nil {
				d, err := cl.GetDocument(ctx, id)
				if err != nil {
					return err
				}
				docs = append(docs, d)
			} else if docs, err = cl.ListOwnedDocuments(ctx); err != nil {
				return err
			}
			printJSON(a.out, openDocuments(docs, &kp.Private))
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "id", "", "show a single document by id")
	return cmd
}
