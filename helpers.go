package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"fiatjaf.com/sharebridge/sharing"
	"github.com/urfave/cli/v3"
)

// uint16Flag reads a uint flag that holds a threshold or a party count.
func uint16Flag(c *cli.Command, name string) (uint16, error) {
	v := c.Uint(name)
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("--%s %d is out of range, at most %d parties are supported", name, v, math.MaxUint16)
	}
	return uint16(v), nil
}

// parseQuorum reads a list like "0,2,4" into sorted party indices.
func parseQuorum(list string) ([]uint16, error) {
	parts := strings.Split(list, ",")
	quorum := make([]uint16, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid party index '%s': %w", part, err)
		}
		if slices.Contains(quorum, uint16(i)) {
			return nil, fmt.Errorf("party %d: %w", i, sharing.ErrDuplicatePoint)
		}
		quorum = append(quorum, uint16(i))
	}
	if len(quorum) == 0 {
		return nil, fmt.Errorf("empty quorum: %w", sharing.ErrEmptyInput)
	}
	slices.Sort(quorum)
	return quorum, nil
}

// readInput reads a file, or stdin when path is "" or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// decodeList accepts either a JSON array or a single JSON object.
func decodeList[V any](b []byte) ([]V, error) {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		var list []V
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var single V
	if err := json.Unmarshal(b, &single); err != nil {
		return nil, err
	}
	return []V{single}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput writes v as JSON to path, or to stdout when path is "" or "-".
func writeOutput(path string, v any) error {
	if path == "" || path == "-" {
		return writeJSON(os.Stdout, v)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeJSON(f, v)
}
