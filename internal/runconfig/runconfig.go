// Package runconfig parses the per-run config file: a small two-shape
// grammar that picks broadcast mode or agreement mode based on how
// many tokens sit on the first line.
package runconfig

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// BroadcastConfig says how many FIFO broadcasts this process should
// originate.
type BroadcastConfig struct {
	M int
}

// AgreementConfig carries the initial proposal for each slot, indexed
// by slot number (slot i is Proposals[i]).
type AgreementConfig struct {
	Proposals [][]int
}

// Config is the parsed config file, exactly one of Broadcast or
// Agreement set.
type Config struct {
	Broadcast *BroadcastConfig
	Agreement *AgreementConfig
}

// Load reads and parses path. The first line's token count decides the
// mode: fewer than 3 tokens means broadcast mode ("<M>"); 3 or more
// means agreement mode ("<P> <ds> <vs>" followed by P proposal lines).
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("runconfig: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("runconfig: %w", err)
	}
	if len(lines) == 0 {
		return Config{}, fmt.Errorf("runconfig: empty config file")
	}

	first := strings.Fields(lines[0])
	if len(first) < 3 {
		return loadBroadcast(first)
	}
	return loadAgreement(first, lines[1:])
}

func loadBroadcast(first []string) (Config, error) {
	if len(first) != 1 {
		return Config{}, fmt.Errorf("runconfig: broadcast mode expects one token, got %d", len(first))
	}
	m, err := strconv.Atoi(first[0])
	if err != nil {
		return Config{}, fmt.Errorf("runconfig: bad M %q: %w", first[0], err)
	}
	return Config{Broadcast: &BroadcastConfig{M: m}}, nil
}

func loadAgreement(first []string, rest []string) (Config, error) {
	p, err := strconv.Atoi(first[0])
	if err != nil {
		return Config{}, fmt.Errorf("runconfig: bad P %q: %w", first[0], err)
	}
	if len(rest) != p {
		return Config{}, fmt.Errorf("runconfig: header declares %d proposal lines, found %d", p, len(rest))
	}
	proposals := make([][]int, p)
	for i, line := range rest {
		vals, err := parseInts(line)
		if err != nil {
			return Config{}, fmt.Errorf("runconfig: slot %d: %w", i, err)
		}
		proposals[i] = vals
	}
	return Config{Agreement: &AgreementConfig{Proposals: proposals}}, nil
}

func parseInts(line string) ([]int, error) {
	fields := strings.Fields(line)
	vals := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", f, err)
		}
		vals[i] = v
	}
	return vals, nil
}
