package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// doneSentinel terminates an SSE stream early without error.
const doneSentinel = "[DONE]"

// Frame is one decoded server-sent event: an optional event name and the
// accumulated data payload.
type Frame struct {
	Event string
	Data  string
}

// DecodeSSE reads server-sent events from a response body and invokes emit
// for each complete frame. A frame's data may be split across read buffers;
// lines are accumulated and the frame is emitted on the blank-line boundary.
// The [DONE] sentinel ends the stream. A non-empty tail left at stream close
// is flushed as a final frame. Malformed or heartbeat lines are skipped, not
// fatal; upstream models emit partial lines routinely.
func DecodeSSE(r io.Reader, emit func(Frame) error) error {
	reader := bufio.NewReader(r)
	var cur Frame
	var haveData bool

	flush := func() error {
		if !haveData {
			cur = Frame{}
			return nil
		}
		f := cur
		cur = Frame{}
		haveData = false
		if strings.TrimSpace(f.Data) == doneSentinel {
			return io.EOF
		}
		return emit(f)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if line != "" {
				appendSSELine(&cur, &haveData, strings.TrimRight(line, "\r\n"))
			}
			if ferr := flush(); ferr != nil && ferr != io.EOF {
				return ferr
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if ferr := flush(); ferr != nil {
				if ferr == io.EOF {
					return nil
				}
				return ferr
			}
			continue
		}
		appendSSELine(&cur, &haveData, line)
	}
}

func appendSSELine(cur *Frame, haveData *bool, line string) {
	switch {
	case strings.HasPrefix(line, "event:"):
		cur.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		chunk := strings.TrimPrefix(line, "data:")
		chunk = strings.TrimPrefix(chunk, " ")
		if *haveData {
			cur.Data += "\n" + chunk
		} else {
			cur.Data = chunk
			*haveData = true
		}
	case strings.HasPrefix(line, ":"):
		// comment / heartbeat
	default:
		// field we don't use (id:, retry:) or a partial line; skip
	}
}

// DecodeNDJSON reads newline-delimited JSON objects and invokes emit for
// each one that parses. Lines that fail to parse are skipped. A non-empty
// unterminated tail at stream close is decoded as a final object.
func DecodeNDJSON(r io.Reader, emit func(json.RawMessage) error) error {
	reader := bufio.NewReader(r)
	handle := func(line string) error {
		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}
		// some backends wrap NDJSON lines in SSE-style data: prefixes
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == doneSentinel {
			return io.EOF
		}
		if !json.Valid([]byte(line)) {
			return nil
		}
		return emit(json.RawMessage(line))
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if herr := handle(line); herr != nil && herr != io.EOF {
				return herr
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if herr := handle(line); herr != nil {
			if herr == io.EOF {
				return nil
			}
			return herr
		}
	}
}
