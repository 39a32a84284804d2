package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"xdao.co/streams/events"
	"xdao.co/streams/streamid"
)

func newIDCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Decode and derive stream ids",
	}
	cmd.AddCommand(newIDInspectCommand())
	cmd.AddCommand(newIDGenesisCommand(root))
	return cmd
}

func newIDInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <streamid|commitid>",
		Short: "Print the parts of a stream or commit id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectID(cmd.OutOrStdout(), args[0])
		},
	}
}

func inspectID(w io.Writer, s string) error {
	if sid, err := streamid.FromString(s); err == nil {
		fmt.Fprintf(w, "stream:  %s\n", sid)
		fmt.Fprintf(w, "type:    %s (%d)\n", sid.TypeName(), sid.Type())
		fmt.Fprintf(w, "genesis: %s\n", sid.CID())
		fmt.Fprintf(w, "url:     %s\n", sid.URL())
		return nil
	}
	c, err := streamid.CommitIDFromString(s)
	if err != nil {
		return &exitError{code: exitCommandError, err: err}
	}
	commit := c.Commit().String()
	if c.IsGenesis() {
		commit += " (genesis)"
	}
	fmt.Fprintf(w, "stream:  %s\n", c.BaseID())
	fmt.Fprintf(w, "type:    %s (%d)\n", c.TypeName(), c.Type())
	fmt.Fprintf(w, "genesis: %s\n", c.CID())
	fmt.Fprintf(w, "commit:  %s\n", commit)
	fmt.Fprintf(w, "url:     %s\n", c.URL())
	return nil
}

type genesisOptions struct {
	model      string
	controller string
	uniqueHex  string
	put        bool
}

func newIDGenesisCommand(root *rootOptions) *cobra.Command {
	opts := &genesisOptions{}
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Derive the stream id of a deterministic genesis",
		Long: `Derive the stream id of the deterministic (unsigned, content-less)
genesis for a model and controller. Models with a SINGLE account relation
have exactly one such document per controller.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := streamid.FromString(opts.model)
			if err != nil {
				return usageError("invalid --model: %v", err)
			}
			var unique []byte
			if opts.uniqueHex != "" {
				if unique, err = hex.DecodeString(opts.uniqueHex); err != nil {
					return usageError("invalid --unique-hex: %v", err)
				}
			}
			p := events.NewDeterministicInit(m, opts.controller, unique)
			sid, err := events.DeterministicStreamID(p)
			if err != nil {
				return err
			}
			if opts.put {
				block, err := p.Encode()
				if err != nil {
					return err
				}
				cas, err := openCAS(root.cfg)
				if err != nil {
					return err
				}
				if _, err := cas.Put(block); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), sid)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.model, "model", "", "model stream id")
	cmd.Flags().StringVar(&opts.controller, "controller", "", "controller DID")
	cmd.Flags().StringVar(&opts.uniqueHex, "unique-hex", "", "optional unique bytes, hex")
	cmd.Flags().BoolVar(&opts.put, "put", false, "store the genesis block")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("controller")
	return cmd
}
