package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/streams/document"
	"xdao.co/streams/keys"
	"xdao.co/streams/replay"
	"xdao.co/streams/storage"
	"xdao.co/streams/storage/bundle"
	"xdao.co/streams/streamid"
)

type replayOptions struct {
	models     []string
	bundlePath string
	maxSize    int
}

type replayResult struct {
	Stream string `json:"stream"`
	Tip    string `json:"tip"`
	State  any    `json:"state"`
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay [cid...]",
		Short: "Replay a commit log and print the resulting document state",
		Long: `Replay a commit log, in the given order, and print the final document
state as JSON. Commits are read from the block store, or from a bundle when
--bundle is given; bundle blocks are not written to the block store.

Model definitions come from the config file and --model flags.

Exit codes:
  0 - every commit applied
  1 - a commit was rejected
  2 - command error (bad flags, unreadable input)

Examples:
  streams replay --model kh4q0...=note.json bafy...genesis bafy...update
  streams replay --bundle notes.tar`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringArrayVar(&opts.models, "model", nil, "model definition as <model-id>=<file.json>, repeatable")
	cmd.Flags().StringVar(&opts.bundlePath, "bundle", "", "replay the log of this bundle")
	cmd.Flags().IntVar(&opts.maxSize, "max-document-size", 0, "override the content size ceiling in bytes")
	return cmd
}

func runReplay(cmd *cobra.Command, root *rootOptions, opts *replayOptions, args []string) error {
	modelFiles := make(map[string]string, len(root.cfg.Models)+len(opts.models))
	for k, v := range root.cfg.Models {
		modelFiles[k] = v
	}
	for _, m := range opts.models {
		id, path, ok := strings.Cut(m, "=")
		if !ok || id == "" || path == "" {
			return usageError("invalid --model %q: want <model-id>=<file>", m)
		}
		modelFiles[id] = path
	}
	defs, err := loadModels(modelFiles)
	if err != nil {
		return usageError("%v", err)
	}

	store := replay.NewStore(keys.Verifier{})
	for id, def := range defs {
		if err := store.RegisterModel(streamid.MustFromString(id), def); err != nil {
			return usageError("%v", err)
		}
	}

	log, err := parseCIDs(args)
	if err != nil {
		return err
	}
	cas, err := openCAS(root.cfg)
	if err != nil {
		return err
	}
	if opts.bundlePath != "" {
		mem := storage.NewMemoryCAS()
		b, err := os.ReadFile(opts.bundlePath)
		if err != nil {
			return usageError("read bundle: %v", err)
		}
		idx, err := bundle.Import(bytes.NewReader(b), mem)
		if err != nil {
			return err
		}
		if idx != nil && len(log) == 0 {
			if log, err = idx.LogCIDs(); err != nil {
				return err
			}
		}
		cas = storage.MultiCAS{Adapters: []storage.CAS{mem, cas}}
	}
	if len(log) == 0 {
		return usageError("nothing to replay: pass commit CIDs or --bundle")
	}

	reducerOpts := []document.Option{document.WithLogger(root.logger)}
	if opts.maxSize > 0 {
		reducerOpts = append(reducerOpts, document.WithMaxDocumentSize(opts.maxSize))
	}
	r := replay.New(store,
		replay.WithCAS(cas),
		replay.WithLogger(root.logger),
		replay.WithReducer(document.NewReducer(reducerOpts...)),
	)

	state, err := r.ReplayLog(cmd.Context(), log)
	if err != nil {
		return err
	}
	return printReplayResult(cmd, store, log[0], state)
}

func printReplayResult(cmd *cobra.Command, store *replay.Store, genesis cid.Cid, state any) error {
	sid, err := streamid.New(streamid.TypeModelInstanceDocument, genesis)
	if err != nil {
		return err
	}
	tip, _ := store.Tip(sid)
	b, err := json.MarshalIndent(replayResult{Stream: sid.String(), Tip: tip.String(), State: state}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
