package storage

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/attractor/internal/dynamo"
)

// Trajectory text files hold one state per line, components in %.18e
// separated by a single space. numpy.loadtxt reads them unchanged. Non-finite
// components use numpy's spelling (nan, inf, -inf).
const componentFormat = 'e'
const componentPrec = 18

func appendComponent(buf []byte, v float64) []byte {
	switch {
	case math.IsNaN(v):
		return append(buf, "nan"...)
	case math.IsInf(v, 1):
		return append(buf, "inf"...)
	case math.IsInf(v, -1):
		return append(buf, "-inf"...)
	}
	return strconv.AppendFloat(buf, v, componentFormat, componentPrec, 64)
}

func WriteTrajectory(w io.Writer, states []dynamo.State) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, s := range states {
		for j, v := range s {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			buf = appendComponent(buf[:0], v)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTrajectory parses the text format. Blank lines are skipped and every
// row must have the width of the first.
func ReadTrajectory(r io.Reader) ([]dynamo.State, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	states := make([]dynamo.State, 0)
	width := -1
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if width < 0 {
			width = len(fields)
		} else if len(fields) != width {
			return nil, fmt.Errorf("line %d: got %d components, want %d", line, len(fields), width)
		}

		s := make(dynamo.State, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			s[j] = v
		}
		states = append(states, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return states, nil
}
