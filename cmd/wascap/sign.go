package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/capiscio/wascap/internal/config"
	"github.com/capiscio/wascap/pkg/claims"
	"github.com/capiscio/wascap/pkg/did"
	"github.com/capiscio/wascap/pkg/keys"
	"github.com/capiscio/wascap/pkg/keystore"
	"github.com/capiscio/wascap/pkg/wasm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errSubjectRole rejects a derived subject name that belongs to a
// non-module key.
var errSubjectRole = errors.New("derived subject is not a module key")

type signOptions struct {
	issuer    string
	subject   string
	caps      []string
	tags      []string
	expires   string
	notBefore string
	name      string
	version   string
	revision  int
}

var signOpts signOptions

var signCmd = &cobra.Command{
	Use:   "sign IN OUT",
	Short: "Embed signed capability claims in a module",
	Long: `Sign a WebAssembly module with capability claims.

The issuer must be a stored key that can sign. The subject is a stored key
name or a did:key identifier; when omitted a module key named after the
input file is generated and stored. Existing claims in IN are replaced.`,
	Example: `  wascap key gen --role account --name acme
  wascap sign echo.wasm echo_signed.wasm --issuer acme \
      --cap wascc:messaging --cap wascc:keyvalue --expires 30d`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]

		module, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("failed to read module: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		issuer, err := resolveSigner(store, signOpts.issuer)
		if err != nil {
			return err
		}
		subjectRef := signOpts.subject
		if subjectRef == "" {
			subjectRef = moduleKeyName(in)
			if err := ensureModuleKey(store, subjectRef); err != nil {
				return err
			}
		}
		subject, err := resolveSubject(store, subjectRef)
		if err != nil {
			return err
		}

		now := time.Now()
		claimsCfg, err := signOpts.claimsConfig(issuer.PublicKey(), subject, now, cfg.Sign)
		if err != nil {
			return err
		}

		embedder := wasm.NewEmbedder(wasm.Options{Logger: logger, Now: func() time.Time { return now }})
		signed, err := embedder.Embed(module, claimsCfg, issuer)
		if err != nil {
			return err
		}

		if err := os.WriteFile(out, signed, 0644); err != nil {
			return fmt.Errorf("failed to write module: %w", err)
		}
		logger.Info("signed module", zap.String("in", in), zap.String("out", out), zap.String("subject", subject))

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "✅ Signed module saved to %s\n", out)
		fmt.Fprintf(w, "🔑 Module: %s\n", subject)
		return nil
	},
}

// claimsConfig turns flags, falling back to the configured defaults for
// the validity window, into claims settings.
func (o signOptions) claimsConfig(issuer, subject string, now time.Time, defaults config.SignConfig) (claims.Config, error) {
	c := claims.Config{
		Issuer:       issuer,
		Subject:      subject,
		Capabilities: o.caps,
		Tags:         o.tags,
		Name:         o.name,
		Version:      o.version,
		Revision:     o.revision,
	}

	expires, err := offset(o.expires, defaults.ExpiresIn)
	if err != nil {
		return claims.Config{}, fmt.Errorf("invalid --expires: %w", err)
	}
	if expires > 0 {
		c.Expires = now.Add(expires)
	}

	notBefore, err := offset(o.notBefore, defaults.NotBeforeIn)
	if err != nil {
		return claims.Config{}, fmt.Errorf("invalid --not-before: %w", err)
	}
	if notBefore > 0 {
		c.NotBefore = now.Add(notBefore)
	}
	return c, nil
}

func offset(flag string, fallback func() (time.Duration, error)) (time.Duration, error) {
	if flag == "" {
		return fallback()
	}
	return config.ParseFlexibleDuration(flag)
}

// resolveSigner loads a stored key that can sign.
func resolveSigner(store keystore.Store, name string) (*keys.KeyPair, error) {
	if name == "" {
		return nil, errors.New("an issuer key is required (--issuer)")
	}
	kp, err := store.Get(name)
	if err != nil {
		return nil, err
	}
	if !kp.CanSign() {
		return nil, fmt.Errorf("key %s is verification-only and cannot sign", name)
	}
	return kp, nil
}

// resolveSubject accepts a did:key identifier or a stored key name.
func resolveSubject(store keystore.Store, ref string) (string, error) {
	if did.IsKeyDID(ref) {
		return ref, nil
	}
	kp, err := store.Get(ref)
	if err != nil {
		return "", err
	}
	return kp.PublicKey(), nil
}

// moduleKeyName derives a key name from a module path.
func moduleKeyName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// ensureModuleKey generates a module key under name unless one exists.
// An existing key under name must be a module key, otherwise a module
// file named after an account would be signed with that account as its
// subject.
func ensureModuleKey(store keystore.Store, name string) error {
	kp, err := store.Get(name)
	if err == nil {
		if kp.Role() != keys.RoleModule {
			return fmt.Errorf("%w: stored key %q is a %s key, not a module key; pass --subject", errSubjectRole, name, kp.Role())
		}
		return nil
	}
	if !errors.Is(err, keystore.ErrKeyNotFound) {
		return err
	}
	kp, err = keys.NewModule()
	if err != nil {
		return err
	}
	logger.Info("generated module key", zap.String("name", name), zap.String("did", kp.PublicKey()))
	return store.Add(name, kp)
}

func init() {
	rootCmd.AddCommand(signCmd)

	f := signCmd.Flags()
	f.StringVarP(&signOpts.issuer, "issuer", "i", "", "Stored account key that signs the claims")
	f.StringVarP(&signOpts.subject, "subject", "s", "", "Stored module key name or did:key of the module")
	f.StringSliceVarP(&signOpts.caps, "cap", "c", nil, "Capability URI to grant (repeatable)")
	f.StringSliceVarP(&signOpts.tags, "tag", "t", nil, "Tag to attach (repeatable)")
	f.StringVar(&signOpts.expires, "expires", "", "Token lifetime, e.g. 24h or 30d (default: sign.expires, else never)")
	f.StringVar(&signOpts.notBefore, "not-before", "", "Delay before the token is usable (default: sign.not_before, else immediately)")
	f.StringVar(&signOpts.name, "name", "", "Human-readable module name")
	f.StringVar(&signOpts.version, "ver", "", "Module version")
	f.IntVar(&signOpts.revision, "rev", 0, "Module revision")
}
