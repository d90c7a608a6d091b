package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	"github.com/rzbill/killfeed/internal/killmail"
	"github.com/rzbill/killfeed/internal/runtime"
	"github.com/spf13/cobra"
)

const importBatchSize = 500

// readKillmails decodes a JSON array of killmails or a stream of JSON
// objects (one per line, or simply concatenated).
func readKillmails(r io.Reader) ([]killmail.Killmail, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var kms []killmail.Killmail
		if err := dec.Decode(&kms); err != nil {
			return nil, fmt.Errorf("decode killmail array: %w", err)
		}
		return kms, nil
	}
	var kms []killmail.Killmail
	for n := 1; ; n++ {
		var km killmail.Killmail
		err := dec.Decode(&km)
		if errors.Is(err, io.EOF) {
			return kms, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode killmail #%d: %w", n, err)
		}
		kms = append(kms, km)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

// importResult summarizes one import run.
type importResult struct {
	Read    int    `json:"read"`
	Added   int    `json:"added"`
	FirstID uint64 `json:"first_id"`
	LastID  uint64 `json:"last_id"`
}

// importKillmails appends kms to the runtime's record source in batches.
// Killmails already stored are left untouched.
func importKillmails(cmd *cobra.Command, rt *runtime.Runtime, kms []killmail.Killmail) (importResult, error) {
	ctx := cmd.Context()
	res := importResult{Read: len(kms)}
	before, err := rt.Stats(ctx)
	if err != nil {
		return res, err
	}
	for start := 0; start < len(kms); start += importBatchSize {
		end := min(start+importBatchSize, len(kms))
		if _, err := rt.Source().Append(ctx, kms[start:end]); err != nil {
			return res, fmt.Errorf("append killmails %d..%d: %w", start, end-1, err)
		}
	}
	after, err := rt.Stats(ctx)
	if err != nil {
		return res, err
	}
	res.Added = int(after.LastID - before.LastID)
	if res.Added > 0 {
		res.FirstID = before.LastID + 1
		res.LastID = after.LastID
	}
	return res, nil
}

// NewImportCommand returns `import FILE`, which loads killmails into the
// local record source. Use - for stdin.
func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load killmails (JSON array or JSON lines) into the local record source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			kms, err := readKillmails(in)
			if err != nil {
				return err
			}

			// Import never touches cursors; avoid dialing a shared store.
			cfg.Cursor.Driver = cfgpkg.CursorMemory
			rt, err := runtime.Open(runtime.Options{Config: cfg})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			res, err := importKillmails(cmd, rt, kms)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	addConfigFlag(cmd)
	cmd.Flags().String("data-dir", "", "Data directory (default from config or OS data dir)")
	cmd.Flags().String("source", "", "Record source: pebble|sqlite")
	cmd.Flags().String("sqlite-path", "", "SQLite database path for --source sqlite")
	return cmd
}
