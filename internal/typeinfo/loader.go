package typeinfo

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
)

// Load parses a type definition file, one type per non-blank, non-comment
// line, columns separated by whitespace:
//
//	name  canNode canWay canArea canRoute multipolygon address location poi lowzoom pinway
//
// Each column after name is "1"/"0". pinWay marks a type that must always
// classify as a way object even when its ways form a closed ring (consulted
// by stages/preprocess.classifyWayOrArea — a roundabout or fenced loop drawn
// as a closed highway/barrier way must never become an area). This is a
// deliberately small, explicit format (the production OST grammar is out of
// scope) good enough for an operator-authored or generated type definition
// file.
func Load(r io.Reader) (*TypeConfig, error) {
	tc := NewTypeConfig()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 11 {
			return nil, fmt.Errorf("typeinfo: line %d: expected 11 fields, got %d: %w", lineNo, len(fields), importerrors.ErrFormatViolation)
		}
		flags := make([]bool, 10)
		for i, f := range fields[1:] {
			b, err := strconv.ParseBool(boolToken(f))
			if err != nil {
				return nil, fmt.Errorf("typeinfo: line %d: bad flag %q: %w", lineNo, f, importerrors.ErrFormatViolation)
			}
			flags[i] = b
		}
		if _, exists := tc.ByName(fields[0]); exists {
			return nil, fmt.Errorf("typeinfo: line %d: duplicate type %q: %w", lineNo, fields[0], importerrors.ErrFormatViolation)
		}
		tc.Register(TypeInfo{
			Name:            fields[0],
			CanBeNode:       flags[0],
			CanBeWay:        flags[1],
			CanBeArea:       flags[2],
			CanRoute:        flags[3],
			IsMultipolygon:  flags[4],
			IndexAsAddress:  flags[5],
			IndexAsLocation: flags[6],
			IndexAsPOI:      flags[7],
			OptimizeLowZoom: flags[8],
			PinWay:          flags[9],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("typeinfo: scan: %w", importerrors.ErrIO)
	}
	if tc.TypeCount() == 0 {
		return nil, fmt.Errorf("typeinfo: no types registered: %w", importerrors.ErrConfigViolation)
	}
	return tc, nil
}

func boolToken(f string) string {
	switch f {
	case "1":
		return "true"
	case "0":
		return "false"
	default:
		return f
	}
}
