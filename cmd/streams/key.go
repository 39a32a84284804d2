package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"xdao.co/streams/keys"
)

func newKeyCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Minimal local key management",
		Long: `Manage ed25519 seeds in a local key store. Every key is addressed by
its did:key identifier, which is the controller written into commits.`,
	}
	cmd.AddCommand(newKeyInitCommand(root))
	cmd.AddCommand(newKeyDeriveCommand(root))
	cmd.AddCommand(newKeyListCommand(root))
	cmd.AddCommand(newKeyExportCommand(root))
	cmd.AddCommand(newKeyDIDCommand())
	return cmd
}

func (o *rootOptions) keyStore() (*keys.KeyStore, error) {
	return keys.NewKeyStore(o.cfg.KeysDir)
}

func newKeyInitCommand(root *rootOptions) *cobra.Command {
	var name, seedHex string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a root key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keys.ValidateName(name); err != nil {
				return usageError("invalid --name: %v", err)
			}
			var seed []byte
			if seedHex != "" {
				var err error
				if seed, err = keys.ParseSeed(seedHex); err != nil {
					return usageError("invalid --seed-hex: %v", err)
				}
			} else {
				seed = make([]byte, ed25519.SeedSize)
				if _, err := rand.Read(seed); err != nil {
					return err
				}
			}
			ks, err := root.keyStore()
			if err != nil {
				return err
			}
			key, err := ks.Create(name, seed, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created root key: %s\n", key.DID)
			fmt.Fprintf(out, "Stored at: %s\n", key.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "optional ed25519 seed as 64 hex chars")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing key files")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newKeyDeriveCommand(root *rootOptions) *cobra.Command {
	var from, role string
	var force bool
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a role key from a root key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keys.ValidateName(from); err != nil {
				return usageError("invalid --from: %v", err)
			}
			if err := keys.ValidateRole(role); err != nil {
				return usageError("invalid --role: %v", err)
			}
			ks, err := root.keyStore()
			if err != nil {
				return err
			}
			key, err := ks.Derive(from, role, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created role key: %s\n", key.DID)
			fmt.Fprintf(out, "Stored at: %s\n", key.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "root key name")
	cmd.Flags().StringVar(&role, "role", "", "role identifier (e.g. author, indexer)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing key files")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newKeyListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys and their roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := root.keyStore()
			if err != nil {
				return err
			}
			ids, err := ks.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range ids {
				fmt.Fprintln(out, e.Name)
				for _, r := range e.Roles {
					fmt.Fprintf(out, "  - %s\n", r)
				}
			}
			return nil
		},
	}
}

func newKeyExportCommand(root *rootOptions) *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the did:key of a stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := root.keyStore()
			if err != nil {
				return err
			}
			key, err := ks.Key(name, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.DID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&role, "role", "", "optional role")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newKeyDIDCommand() *cobra.Command {
	var seedHex string
	cmd := &cobra.Command{
		Use:   "did",
		Short: "Print the did:key for a seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := keys.ParseSeed(seedHex)
			if err != nil {
				return usageError("invalid --seed-hex: %v", err)
			}
			did, err := keys.DIDFromSeed(seed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), did)
			return nil
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	_ = cmd.MarkFlagRequired("seed-hex")
	return cmd
}

// signerFlags select the key commits are signed with.
type signerFlags struct {
	seedHex string
	name    string
	role    string
	keyFile string
}

func (f *signerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.seedHex, "seed-hex", "", "sign with this ed25519 seed")
	cmd.Flags().StringVar(&f.name, "signer", "", "sign with this stored key")
	cmd.Flags().StringVar(&f.role, "signer-role", "", "role of the stored key")
	cmd.Flags().StringVar(&f.keyFile, "key-file", "", "sign with the seed in this file")
}

func (f *signerFlags) signer(root *rootOptions) (*keys.Ed25519Signer, error) {
	ks, err := root.keyStore()
	if err != nil {
		return nil, err
	}
	seed, err := ks.Resolve(keys.SeedSource{Hex: f.seedHex, File: f.keyFile, Name: f.name, Role: f.role})
	if err != nil {
		return nil, usageError("signer: %v", err)
	}
	return keys.NewEd25519Signer(seed)
}
