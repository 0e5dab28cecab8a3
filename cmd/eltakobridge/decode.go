package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp3"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/translate"
)

func decodeCommand() *cobra.Command {
	var (
		useESP3 bool
		profile string
	)

	cmd := &cobra.Command{
		Use:   "decode HEX",
		Short: "Decode a single ESP2 or ESP3 frame",
		Long: "Decode a single frame given as hex. Spaces, dashes and colons are ignored.\n" +
			"With --eep the payload is also decoded with that profile.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id eep.ID
			if profile != "" {
				var err error
				if id, err = eep.ParseID(profile); err != nil {
					return err
				}
			}
			return decode(cmd.OutOrStdout(), args[0], useESP3, id)
		},
	}
	cmd.Flags().BoolVar(&useESP3, "esp3", false, "Frame is ESP3 (default ESP2)")
	cmd.Flags().StringVar(&profile, "eep", "", "Decode the payload with this profile, e.g. A5-04-02")

	return cmd
}

func decode(w io.Writer, input string, useESP3 bool, id eep.ID) error {
	raw, err := parseHex(input)
	if err != nil {
		return err
	}
	t, err := decodeFrame(raw, useESP3)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, t)

	if id == (eep.ID{}) {
		return nil
	}
	v, err := eep.Decode(id, t.Payload())
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", id, err)
	}
	state, err := json.Marshal(eltako.StateMap(v))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", id, state)
	return nil
}

// decodeFrame parses one frame into the ESP2 telegram form the rest of the
// pipeline works on.
func decodeFrame(raw []byte, useESP3 bool) (esp2.Telegram, error) {
	if !useESP3 {
		return esp2.Decode(raw)
	}
	pkt, err := esp3.Decode(raw)
	if err != nil {
		return esp2.Telegram{}, err
	}
	return translate.ToESP2(pkt)
}

func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", "-", "", ":", "", "\t", "").Replace(s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return raw, nil
}
