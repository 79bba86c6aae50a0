package ir

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	blockColor = color.New(color.FgCyan).SprintFunc()
	funcColor  = color.New(color.FgGreen, color.Bold).SprintFunc()
)

// WriteTo writes the textual form of f to w.
func (f *Func) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("p%d %s", i, p)
	}
	fmt.Fprintf(&buf, "%s %s(%s)\n", funcColor("func"), f.Name, strings.Join(params, ", "))
	for _, b := range f.Blocks() {
		blk := f.blocks[b]
		header := b.String() + ":"
		if blk.Name != "" {
			header = fmt.Sprintf("%s: ; %s", b, blk.Name)
		}
		if len(blk.preds) > 0 {
			header += fmt.Sprintf(" <- %v", blk.preds)
		}
		fmt.Fprintln(&buf, blockColor(header))
		for _, id := range blk.instrs {
			fmt.Fprintf(&buf, "\t%s\n", f.instrs[id])
		}
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (f *Func) String() string {
	var buf bytes.Buffer
	f.WriteTo(&buf)
	return buf.String()
}
