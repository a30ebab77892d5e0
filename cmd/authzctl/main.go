package main

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/FuhengZhao/foundationdb/config"
	"github.com/FuhengZhao/foundationdb/health"
	"github.com/FuhengZhao/foundationdb/keyset"
	"github.com/FuhengZhao/foundationdb/observe"
	"github.com/FuhengZhao/foundationdb/store"
)

func main() {
	var (
		configPath string
		envFile    string
	)

	root := &cobra.Command{
		Use:   "authzctl",
		Short: "Operator tooling for the tenant authorization gate",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (env-only when empty)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file loaded before the config")

	root.AddCommand(
		keygenCmd(),
		signCmd(),
		checkCmd(&configPath),
		tenantCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		c := config.Default()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.InMemory {
		return store.OpenInMemory()
	}
	return store.Open(cfg.Store.Dir)
}

func keySource(cfg *config.Config) keyset.Source {
	if cfg.Keys.URL != "" {
		return keyset.NewHTTPSource(cfg.Keys.URL, nil)
	}
	return keyset.NewFileSource(cfg.Keys.File)
}

// keygen generates a signing key pair: the private half as PKCS#8 PEM for
// the token issuer, the public half as a single-key JWKS document for the
// gate's trusted set.
func keygenCmd() *cobra.Command {
	var (
		alg    string
		kid    string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key pair and its JWKS document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kid == "" {
				kid = "kid-" + time.Now().UTC().Format("20060102T150405Z")
			}

			var (
				priv crypto.PrivateKey
				jwk  map[string]any
				err  error
			)
			switch alg {
			case "rsa":
				priv, jwk, err = generateRSA(kid)
			case "ec":
				priv, jwk, err = generateEC(kid)
			case "ed25519":
				priv, jwk, err = generateEd25519(kid)
			default:
				return fmt.Errorf("unknown algorithm %q (rsa, ec, ed25519)", alg)
			}
			if err != nil {
				return err
			}

			der, err := x509.MarshalPKCS8PrivateKey(priv)
			if err != nil {
				return fmt.Errorf("marshal private key: %w", err)
			}
			pemPath := filepath.Join(outDir, kid+".pem")
			pemFile, err := os.OpenFile(pemPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return err
			}
			defer pemFile.Close()
			if err := pem.Encode(pemFile, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
				return fmt.Errorf("write %s: %w", pemPath, err)
			}

			doc, err := json.MarshalIndent(map[string]any{"keys": []map[string]any{jwk}}, "", "  ")
			if err != nil {
				return err
			}
			jwksPath := filepath.Join(outDir, kid+".jwks.json")
			if err := os.WriteFile(jwksPath, append(doc, '\n'), 0o644); err != nil {
				return err
			}

			fmt.Printf("kid=%s\nprivate key: %s\njwks: %s\n", kid, pemPath, jwksPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "ed25519", "key algorithm: rsa|ec|ed25519")
	cmd.Flags().StringVar(&kid, "kid", "", "key identifier (generated when empty)")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "output directory")
	return cmd
}

func generateRSA(kid string) (crypto.PrivateKey, map[string]any, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	pub := &priv.PublicKey
	return priv, map[string]any{
		"kty": "RSA",
		"kid": kid,
		"use": "sig",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}, nil
}

func generateEC(kid string) (crypto.PrivateKey, map[string]any, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	byteLen := (priv.Curve.Params().BitSize + 7) / 8
	return priv, map[string]any{
		"kty": "EC",
		"kid": kid,
		"use": "sig",
		"crv": "P-256",
		"x":   base64.RawURLEncoding.EncodeToString(priv.X.FillBytes(make([]byte, byteLen))),
		"y":   base64.RawURLEncoding.EncodeToString(priv.Y.FillBytes(make([]byte, byteLen))),
	}, nil
}

func generateEd25519(kid string) (crypto.PrivateKey, map[string]any, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return priv, map[string]any{
		"kty": "OKP",
		"kid": kid,
		"use": "sig",
		"crv": "Ed25519",
		"x":   base64.RawURLEncoding.EncodeToString(pub),
	}, nil
}

// sign mints a tenant token with the given private key.
func signCmd() *cobra.Command {
	var (
		keyPath string
		kid     string
		tenants []string
		ttl     time.Duration
		issuer  string
		subject string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Mint a tenant token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(tenants) == 0 {
				return fmt.Errorf("at least one --tenant is required")
			}
			raw, err := os.ReadFile(keyPath)
			if err != nil {
				return err
			}
			block, _ := pem.Decode(raw)
			if block == nil {
				return fmt.Errorf("%s: no PEM block", keyPath)
			}
			priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return fmt.Errorf("parse private key: %w", err)
			}
			method, err := methodFor(priv)
			if err != nil {
				return err
			}

			now := time.Now()
			list := make([]any, 0, len(tenants))
			for _, t := range tenants {
				list = append(list, t)
			}
			claims := jwt.MapClaims{
				"jti":     uuid.NewString(),
				"iat":     now.Unix(),
				"nbf":     now.Unix(),
				"exp":     now.Add(ttl).Unix(),
				"tenants": list,
			}
			if issuer != "" {
				claims["iss"] = issuer
			}
			if subject != "" {
				claims["sub"] = subject
			}

			tok := jwt.NewWithClaims(method, claims)
			tok.Header["kid"] = kid
			signed, err := tok.SignedString(priv)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Println(signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "path to the private key PEM")
	cmd.Flags().StringVar(&kid, "kid", "", "key identifier for the token header")
	cmd.Flags().StringArrayVar(&tenants, "tenant", nil, "tenant the token authorizes (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&issuer, "issuer", "", "iss claim")
	cmd.Flags().StringVar(&subject, "subject", "", "sub claim")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("kid")
	return cmd
}

func methodFor(priv crypto.PrivateKey) (jwt.SigningMethod, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return jwt.SigningMethodRS256, nil
	case *ecdsa.PrivateKey:
		switch k.Curve.Params().BitSize {
		case 256:
			return jwt.SigningMethodES256, nil
		case 384:
			return jwt.SigningMethodES384, nil
		case 521:
			return jwt.SigningMethodES512, nil
		}
		return nil, fmt.Errorf("unsupported curve %s", k.Curve.Params().Name)
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", priv)
	}
}

// check runs the health probes against the configured deployment.
func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the key source and storage engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			obs, err := observe.NewObserver(cmd.Context(), cfg.ObserveConfig())
			if err != nil {
				return err
			}
			defer obs.Shutdown(cmd.Context())
			log := obs.Logger().WithComponent("check")

			agg := health.NewAggregator(cfg.Health.CheckTimeout)
			agg.Register("key-source", health.NewKeySourceChecker(keySource(cfg)))

			st, err := openStore(cfg)
			if err != nil {
				agg.Register("store", health.NewCheckerFunc("store", func(context.Context) health.Result {
					return health.Unhealthy("storage engine failed to open", err)
				}))
			} else {
				defer st.Close()
				agg.Register("store", health.NewStoreChecker(st))
			}

			results := agg.CheckAll(cmd.Context())
			for _, name := range agg.CheckerNames() {
				r := results[name]
				fmt.Printf("%-12s %-10s %s", name, r.Status, r.Message)
				if r.Error != nil {
					fmt.Printf(" (%v)", r.Error)
				}
				fmt.Println()
				log.Info(cmd.Context(), "health probe finished",
					observe.Field{Key: "probe", Value: name},
					observe.Field{Key: "status", Value: r.Status.String()},
					observe.Field{Key: "duration_ms", Value: r.Duration.Milliseconds()},
				)
			}

			overall := health.OverallStatus(results)
			log.Info(cmd.Context(), "health check complete",
				observe.Field{Key: "status", Value: overall.String()},
			)
			if overall == health.StatusUnhealthy {
				return fmt.Errorf("unhealthy")
			}
			return nil
		},
	}
}

// tenant groups the administrative tenant operations. These run against the
// store directly: operator sessions carry no token.
func tenantCmd(configPath *string) *cobra.Command {
	group := &cobra.Command{
		Use:   "tenant",
		Short: "Administrative tenant management",
	}

	withStore := func(fn func(*store.Store, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			return fn(st, args)
		}
	}

	group.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Register a tenant",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(st *store.Store, args []string) error {
				if err := st.CreateTenant(args[0]); err != nil {
					return err
				}
				fmt.Printf("created %s\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a tenant and all of its data",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(st *store.Store, args []string) error {
				if err := st.DeleteTenant(args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered tenants",
			Args:  cobra.NoArgs,
			RunE: withStore(func(st *store.Store, args []string) error {
				tenants, err := st.ListTenants()
				if err != nil {
					return err
				}
				for _, t := range tenants {
					fmt.Println(t)
				}
				return nil
			}),
		},
	)
	return group
}
