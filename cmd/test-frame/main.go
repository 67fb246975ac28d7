// Command test-frame builds and decodes IoTEgg frames from the command line.
//
// Usage:
//
//	go run ./cmd/test-frame --color FF8000
//	go run ./cmd/test-frame --decode "40 54 08 00 00 AC 41 00 00 20 42 24"
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chaz8081/iotegg-node/internal/ble/protocol"
)

func main() {
	color := flag.String("color", "", "build a set-colour command for RRGGBB")
	decode := flag.String("decode", "", "decode a frame given as hex bytes")
	flag.Parse()

	var out string
	var err error
	switch {
	case *color != "":
		out, err = buildColor(*color)
	case *decode != "":
		out, err = decodeFrame(*decode)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "#")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	return hex.DecodeString(s)
}

func buildColor(s string) (string, error) {
	b, err := parseHex(s)
	if err != nil {
		return "", fmt.Errorf("colour: %w", err)
	}
	if len(b) != 3 {
		return "", fmt.Errorf("colour must be 3 bytes, got %d", len(b))
	}
	c := protocol.Color{R: b[0], G: b[1], B: b[2]}
	return fmt.Sprintf("handle %d <- % X", protocol.HandleCommandIn, protocol.EncodeSetColor(c)), nil
}

func decodeFrame(s string) (string, error) {
	b, err := parseHex(s)
	if err != nil {
		return "", fmt.Errorf("frame: %w", err)
	}
	if len(b) > 1 && b[1] == protocol.TagTelemetry {
		sample, err := protocol.DecodeTelemetry(b)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("telemetry: %.2f °C, %.1f %%RH", sample.TemperatureC, sample.HumidityPercent), nil
	}
	f, err := protocol.ParseInbound(b)
	if err != nil {
		return "", err
	}
	c, err := protocol.DecodeSetColor(f)
	if err != nil {
		return "", err
	}
	return "set colour " + c.String(), nil
}
