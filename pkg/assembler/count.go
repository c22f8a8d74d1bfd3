package assembler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseCount reads engagement counts as the web client renders them:
// "1,234", "3.4K", "1.2M" or "2B". Abbreviated values are rounded to the
// nearest integer.
func ParseCount(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if s == "" {
		return 0, nil
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'k':
		multiplier = 1e3
	case 'm':
		multiplier = 1e6
	case 'b':
		multiplier = 1e9
	}
	if multiplier != 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return int(math.Round(n * multiplier)), nil
}

// count accepts a JSON number, an abbreviated string or null. Anything it
// cannot read becomes 0 rather than failing the record.
type count int

func (c *count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := ParseCount(s)
		if err != nil {
			*c = 0
			return nil
		}
		*c = count(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*c = count(f)
	return nil
}
