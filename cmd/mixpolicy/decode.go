package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/mixpolicy/pkg/cli"
	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/policy/parcel"
	"mercator-hq/mixpolicy/pkg/policy/snapshot"
	"mercator-hq/mixpolicy/pkg/policy/source"
)

var decodeFlags struct {
	as  string
	hex bool
}

var decodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "Decode a parcel or a snapshot into a mix file",
	Long: `Decode a parcel or a CBOR snapshot and print it as a YAML mix file.

Parcels are decoded strictly: truncated input, trailing bytes and lists over
the mix or criteria limits are rejected. Snapshots are checked against their
digest. Use "-" to read standard input.

Examples:
  mixpolicy decode mixes.parcel
  curl -s localhost:8080/v1/snapshot | mixpolicy decode --as snapshot -`,
	Args: cobra.ExactArgs(1),
	RunE: decodeMixFile,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&decodeFlags.as, "as", encodingParcel, "encoding: parcel, snapshot")
	decodeCmd.Flags().BoolVar(&decodeFlags.hex, "hex", false, "input is hex")
}

func decodeMixFile(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return cli.NewCommandError("decode", err)
	}
	if decodeFlags.hex {
		if data, err = hex.DecodeString(string(bytes.TrimSpace(data))); err != nil {
			return cli.NewCommandError("decode", fmt.Errorf("invalid hex input: %w", err))
		}
	}

	var mixes []*mix.Mix
	switch decodeFlags.as {
	case encodingParcel:
		mixes, err = parcel.UnmarshalMixes(data)
	case encodingSnapshot:
		mixes, err = decodeSnapshot(data)
	default:
		return cli.NewConfigError("as", fmt.Sprintf("unknown encoding %q (want parcel or snapshot)", decodeFlags.as))
	}
	if err != nil {
		return cli.NewCommandError("decode", err)
	}

	out, err := source.Marshal(mixes)
	if err != nil {
		return cli.NewCommandError("decode", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func decodeSnapshot(data []byte) ([]*mix.Mix, error) {
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return snap.Restore()
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
