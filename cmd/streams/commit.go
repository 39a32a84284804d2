package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/streams/document"
	"xdao.co/streams/events"
	"xdao.co/streams/model"
	"xdao.co/streams/streamid"
)

func newCommitCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Create signed commits and store them",
	}
	cmd.AddCommand(newCommitInitCommand(root))
	cmd.AddCommand(newCommitUpdateCommand(root))
	return cmd
}

func readContent(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, usageError("read content: %v", err)
	}
	var content map[string]any
	if err := json.Unmarshal(b, &content); err != nil {
		return nil, usageError("parse content %s: %v", path, err)
	}
	return content, nil
}

// storeSigned signs p, stores the envelope and returns its CID.
func storeSigned(ctx context.Context, cfg *Config, signer events.Signer, p events.Payload) (cid.Cid, error) {
	env, err := events.Sign(ctx, signer, p)
	if err != nil {
		return cid.Undef, err
	}
	block, err := env.Encode()
	if err != nil {
		return cid.Undef, err
	}
	cas, err := openCAS(cfg)
	if err != nil {
		return cid.Undef, err
	}
	return cas.Put(block)
}

func newCommitInitCommand(root *rootOptions) *cobra.Command {
	var (
		sf          signerFlags
		modelFlag   string
		contentPath string
		uniqueHex   string
		shouldIndex bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a signed genesis commit",
		Long: `Create a signed genesis commit for a model instance document.

When the model is listed in the config and has a SET account relation the
unique value is derived from the content. Otherwise it is random unless
--unique-hex is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := streamid.FromString(modelFlag)
			if err != nil {
				return usageError("invalid --model: %v", err)
			}
			content, err := readContent(contentPath)
			if err != nil {
				return err
			}
			signer, err := sf.signer(root)
			if err != nil {
				return err
			}
			params := events.InitParams{Content: content, Controller: signer.DID(), Model: m}
			if uniqueHex != "" {
				if params.Unique, err = hex.DecodeString(uniqueHex); err != nil {
					return usageError("invalid --unique-hex: %v", err)
				}
			} else if def, ok, err := configuredModel(root.cfg, m); err != nil {
				return err
			} else if ok && def.AccountRelation.Type == model.AccountRelationSet {
				params.Unique = document.EncodeUnique(def.UniqueFields(), content)
			}
			if cmd.Flags().Changed("should-index") {
				params.ShouldIndex = &shouldIndex
			}
			p, err := events.NewInit(params)
			if err != nil {
				return err
			}
			id, err := storeSigned(cmd.Context(), root.cfg, signer, p)
			if err != nil {
				return err
			}
			sid, err := streamid.New(streamid.TypeModelInstanceDocument, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stream: %s\n", sid)
			fmt.Fprintf(out, "commit: %s\n", id)
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&modelFlag, "model", "", "model stream id")
	cmd.Flags().StringVar(&contentPath, "content", "", "JSON content file")
	cmd.Flags().StringVar(&uniqueHex, "unique-hex", "", "unique bytes, hex")
	cmd.Flags().BoolVar(&shouldIndex, "should-index", true, "indexing hint")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newCommitUpdateCommand(root *rootOptions) *cobra.Command {
	var (
		sf          signerFlags
		stream      string
		prev        string
		fromPath    string
		toPath      string
		shouldIndex bool
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Create a signed data commit turning one content into another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := streamid.FromString(stream)
			if err != nil {
				return usageError("invalid --stream: %v", err)
			}
			tip, err := parseCIDs([]string{prev})
			if err != nil {
				return err
			}
			from, err := readContent(fromPath)
			if err != nil {
				return err
			}
			to, err := readContent(toPath)
			if err != nil {
				return err
			}
			var hint *bool
			if cmd.Flags().Changed("should-index") {
				hint = &shouldIndex
			}
			p, err := events.NewData(streamid.FromStream(sid, tip[0]), from, to, hint)
			if err != nil {
				return err
			}
			signer, err := sf.signer(root)
			if err != nil {
				return err
			}
			id, err := storeSigned(cmd.Context(), root.cfg, signer, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", id)
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&stream, "stream", "", "document stream id")
	cmd.Flags().StringVar(&prev, "prev", "", "CID of the current tip commit")
	cmd.Flags().StringVar(&fromPath, "from", "", "JSON file with the current content")
	cmd.Flags().StringVar(&toPath, "to", "", "JSON file with the new content")
	cmd.Flags().BoolVar(&shouldIndex, "should-index", true, "indexing hint")
	for _, f := range []string{"stream", "prev", "from", "to"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

// configuredModel returns the definition of m when the config names it.
func configuredModel(cfg *Config, m streamid.StreamID) (*model.Definition, bool, error) {
	path, ok := cfg.Models[m.String()]
	if !ok {
		return nil, false, nil
	}
	defs, err := loadModels(map[string]string{m.String(): path})
	if err != nil {
		return nil, false, err
	}
	return defs[m.String()], true, nil
}
