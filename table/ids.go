package table

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type idEntry struct {
	ID json.RawMessage `json:"id"`
}

// LoadIDList reads a subject or admission allow-list. The file is either a
// JSON array whose elements are ids (numbers or strings) or objects with an
// "id" field, or plain text with one id per line. Blank lines and lines
// starting with # are ignored.
func LoadIDList(path string) (map[int64]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read id list: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return parseJSONIDs(trimmed)
	}

	ids := make(map[int64]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	for lineNum := 1; sc.Scan(); lineNum++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, ok := ParseID(line)
		if !ok {
			return nil, fmt.Errorf("invalid id %q on line %d", line, lineNum)
		}
		ids[id] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan id list: %w", err)
	}
	return ids, nil
}

func parseJSONIDs(data []byte) (map[int64]struct{}, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse id list: %w", err)
	}

	ids := make(map[int64]struct{}, len(entries))
	for _, raw := range entries {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var e idEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("parse id entry: %w", err)
			}
			raw = e.ID
		}
		s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
		id, ok := ParseID(s)
		if !ok {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}
