package gcode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	HeaderBegin = "; --- BEGIN_DDU_3DCLAYPRINTING_HEADER ---"
	HeaderEnd   = "; --- END_DDU_3DCLAYPRINTING_HEADER ---"

	KeyPrintSpeed      = "PRINTSPEED"
	KeyTravelSpeed     = "TRAVELSPEED"
	KeyRetractionSpeed = "RETRACTIONSPEED"
	KeyExtrusionRate   = "EXTRUSIONRATE"
	KeyLayerHeight     = "LAYERHEIGHT"
	KeyLineWidth       = "LINEWIDTH"
)

// Header holds the process values written between the header sentinels.
type Header struct {
	PrintSpeed      float64
	TravelSpeed     float64
	RetractionSpeed float64
	ExtrusionRate   float64
	LayerHeight     float64
	LineWidth       float64
}

// Command is one G0/G1 line. Z, E and F carry over from earlier lines when
// the line omits them.
type Command struct {
	G    int
	X    float64
	Y    float64
	Z    float64
	E    float64
	F    float64
	Line int
}

type Program struct {
	Header    Header
	HasHeader bool
	Commands  []Command
	// lines that are neither comments nor XY motion, e.g. G92 or M-codes
	Other []string
}

func ParseString(s string) (*Program, error) {
	return Parse(strings.NewReader(s))
}

func Parse(r io.Reader) (*Program, error) {
	prog := &Program{}

	inHeader := false
	var z, e, f float64

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		ln := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case strings.HasPrefix(ln, HeaderBegin):
			inHeader = true
			prog.HasHeader = true
		case strings.HasPrefix(ln, HeaderEnd):
			inHeader = false
		case strings.HasPrefix(ln, ";"):
			if inHeader {
				if err := prog.Header.set(ln); err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
			}
		default:
			cmd, ok, err := parseMotion(ln)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if !ok {
				if ln != "" {
					prog.Other = append(prog.Other, ln)
				}
				continue
			}

			if !cmd.hasZ {
				cmd.Z = z
			}
			if !cmd.hasE {
				cmd.E = e
			}
			if !cmd.hasF {
				cmd.F = f
			}
			z, e, f = cmd.Z, cmd.E, cmd.F
			cmd.Line = lineNo
			prog.Commands = append(prog.Commands, cmd.Command)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return prog, nil
}

type motion struct {
	Command
	hasZ, hasE, hasF bool
}

// parseMotion reads a G0/G1 line carrying both X and Y. Other lines, G04
// or G92 among them, are reported as not ok.
func parseMotion(ln string) (motion, bool, error) {
	code := ln
	if i := strings.Index(code, ";"); i >= 0 {
		code = code[:i]
	}
	words := strings.Fields(code)
	if len(words) == 0 || (words[0][0] != 'G' && words[0][0] != 'g') {
		return motion{}, false, nil
	}

	g, err := strconv.Atoi(words[0][1:])
	if err != nil || (g != 0 && g != 1) {
		return motion{}, false, nil
	}

	m := motion{Command: Command{G: g}}
	var hasX, hasY bool
	for _, word := range words[1:] {
		if len(word) < 2 {
			return motion{}, false, fmt.Errorf("bad word %q", word)
		}
		val, err := strconv.ParseFloat(word[1:], 64)
		if err != nil {
			return motion{}, false, fmt.Errorf("bad word %q: %w", word, err)
		}
		switch word[0] {
		case 'X', 'x':
			m.X, hasX = val, true
		case 'Y', 'y':
			m.Y, hasY = val, true
		case 'Z', 'z':
			m.Z, m.hasZ = val, true
		case 'E', 'e':
			m.E, m.hasE = val, true
		case 'F', 'f':
			m.F, m.hasF = val, true
		}
	}

	return m, hasX && hasY, nil
}

func (h *Header) set(ln string) error {
	kv := strings.TrimSpace(strings.TrimPrefix(ln, ";"))
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return nil
	}

	var dst *float64
	switch strings.TrimSpace(key) {
	case KeyPrintSpeed:
		dst = &h.PrintSpeed
	case KeyTravelSpeed:
		dst = &h.TravelSpeed
	case KeyRetractionSpeed:
		dst = &h.RetractionSpeed
	case KeyExtrusionRate:
		dst = &h.ExtrusionRate
	case KeyLayerHeight:
		dst = &h.LayerHeight
	case KeyLineWidth:
		dst = &h.LineWidth
	default:
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("header %s: %w", key, err)
	}
	*dst = v
	return nil
}
