package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/famledger/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetPassword reads a password from the terminal without echo. An empty
// password is rejected.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(pw)) == 0 {
		return nil, fmt.Errorf("%w: password is empty", common.ErrInvalidArgument)
	}
	return pw, nil
}

// GetPayload reads a record payload from reader. Input ends as soon as the
// lines read so far form a JSON object, on an empty line, or at EOF.
func GetPayload(reader *bufio.Reader, w io.Writer) (json.RawMessage, error) {
	if _, err := fmt.Fprint(w, "Payload (JSON object, empty line to finish):\n"); err != nil {
		return nil, err
	}

	var buf strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			break
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		if err != nil || isObject(buf.String()) {
			break
		}
	}
	return parsePayload(buf.String())
}

func isObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

// parsePayload checks that text is a single JSON object and reports where
// it stops being one.
func parsePayload(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: payload is empty", common.ErrInvalidArgument)
	}

	var obj map[string]json.RawMessage
	err := json.Unmarshal([]byte(text), &obj)
	var syn *json.SyntaxError
	switch {
	case errors.As(err, &syn):
		line, col := position(text, syn.Offset)
		return nil, fmt.Errorf("%w: payload is not valid JSON at line %d column %d: %v",
			common.ErrInvalidArgument, line, col, syn)
	case err != nil || obj == nil:
		return nil, fmt.Errorf("%w: payload must be a JSON object", common.ErrInvalidArgument)
	}
	return json.RawMessage(text), nil
}

// position turns a byte offset into a 1-based line and column.
func position(text string, offset int64) (line, col int) {
	offset = max(0, min(offset-1, int64(len(text))))
	before := text[:offset]
	line = strings.Count(before, "\n") + 1
	col = len(before) - strings.LastIndexByte(before, '\n')
	return line, col
}
