package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// readLineBuf reads one trimmed line from r.
func readLineBuf(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func confirmPrompt(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line := strings.ToLower(readLineBuf(in))
	return line == "y" || line == "yes"
}
