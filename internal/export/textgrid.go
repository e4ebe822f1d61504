package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TextGrid writes d as a Praat long-format TextGrid with two interval tiers,
// "phones" and "words". Praat requires every tier to cover [0, xmax] without
// gaps, so spans the alignment leaves uncovered (word gaps, trailing audio)
// are filled with empty-text intervals. When an interval reaches past the
// document duration, xmax extends to cover it.
func TextGrid(w io.Writer, d *Document) error {
	phones := make([]interval, len(d.Phones))
	for i, p := range d.Phones {
		phones[i] = interval{xmin: p.Start, xmax: p.End, text: p.Phoneme}
	}
	words := make([]interval, len(d.Words))
	for i, ws := range d.Words {
		words[i] = interval{xmin: ws.Start, xmax: ws.End, text: ws.Word}
	}

	xmax := d.Duration
	for _, iv := range phones {
		if iv.xmax > xmax {
			xmax = iv.xmax
		}
	}
	for _, iv := range words {
		if iv.xmax > xmax {
			xmax = iv.xmax
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "File type = \"ooTextFile\"\nObject class = \"TextGrid\"\n\n")
	fmt.Fprintf(bw, "xmin = 0\nxmax = %s\n", num(xmax))
	fmt.Fprintf(bw, "tiers? <exists>\nsize = 2\nitem []:\n")
	writeTier(bw, 1, "phones", tile(phones, xmax), xmax)
	writeTier(bw, 2, "words", tile(words, xmax), xmax)
	return bw.Flush()
}

// interval is one tier entry with bounds in seconds.
type interval struct {
	xmin, xmax float64
	text       string
}

func writeTier(bw *bufio.Writer, index int, name string, ivs []interval, xmax float64) {
	fmt.Fprintf(bw, "    item [%d]:\n", index)
	fmt.Fprintf(bw, "        class = \"IntervalTier\"\n")
	fmt.Fprintf(bw, "        name = %s\n", quote(name))
	fmt.Fprintf(bw, "        xmin = 0\n")
	fmt.Fprintf(bw, "        xmax = %s\n", num(xmax))
	fmt.Fprintf(bw, "        intervals: size = %d\n", len(ivs))
	for i, iv := range ivs {
		fmt.Fprintf(bw, "        intervals [%d]:\n", i+1)
		fmt.Fprintf(bw, "            xmin = %s\n", num(iv.xmin))
		fmt.Fprintf(bw, "            xmax = %s\n", num(iv.xmax))
		fmt.Fprintf(bw, "            text = %s\n", quote(iv.text))
	}
}

// tile fills the gaps between spans with empty-text intervals so the result
// covers [0, xmax] contiguously. Gaps below tileEpsilon are absorbed rather
// than rendered as hairline intervals.
func tile(spans []interval, xmax float64) []interval {
	const tileEpsilon = 1e-6
	out := make([]interval, 0, 2*len(spans)+1)
	cursor := 0.0
	for _, s := range spans {
		if s.xmin > cursor+tileEpsilon {
			out = append(out, interval{xmin: cursor, xmax: s.xmin})
		}
		out = append(out, s)
		if s.xmax > cursor {
			cursor = s.xmax
		}
	}
	if xmax > cursor+tileEpsilon {
		out = append(out, interval{xmin: cursor, xmax: xmax})
	}
	return out
}

// num formats a bound the way Praat writes numbers, without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// quote wraps s in double quotes, doubling embedded quotes per the TextGrid
// convention.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
