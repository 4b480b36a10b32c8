package lastresults

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidNumber is returned for input that is not a result number list.
var ErrInvalidNumber = errors.New("invalid result number")

const maxRangeSize = 1000

// ParseNumbers parses result numbers: "3", "1,3,5", "2-4" or a mix such as
// "1,3-5,7". Spaces separate like commas. Duplicates are dropped and the
// first-seen order is kept.
func ParseNumbers(input string) ([]int, error) {
	input = strings.ReplaceAll(input, " ", ",")

	var result []int
	seen := make(map[int]bool)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, end, err := parseRange(lo, hi)
			if err != nil {
				return nil, err
			}
			for n := start; n <= end; n++ {
				add(n)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidNumber, "%q is not a number", part)
		}
		if n < 1 {
			return nil, errors.Wrapf(ErrInvalidNumber, "%d must be positive", n)
		}
		add(n)
	}

	if len(result) == 0 {
		return nil, errors.Wrap(ErrInvalidNumber, "no numbers given")
	}
	return result, nil
}

func parseRange(lo, hi string) (int, int, error) {
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, errors.Wrapf(ErrInvalidNumber, "invalid range start %q", lo)
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, errors.Wrapf(ErrInvalidNumber, "invalid range end %q", hi)
	}
	switch {
	case start < 1:
		return 0, 0, errors.Wrapf(ErrInvalidNumber, "range start %d must be positive", start)
	case end < start:
		return 0, 0, errors.Wrapf(ErrInvalidNumber, "range end %d is before start %d", end, start)
	case end-start+1 > maxRangeSize:
		return 0, 0, errors.Wrapf(ErrInvalidNumber, "range %d-%d is too large (max %d)", start, end, maxRangeSize)
	}
	return start, end, nil
}

// ParseNumberArgs parses several arguments as one number list.
func ParseNumberArgs(args []string) ([]int, error) {
	return ParseNumbers(strings.Join(args, ","))
}
