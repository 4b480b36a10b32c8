package store

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	"modernc.org/sqlite"
)

func init() {
	// Backs the REGEXP operator used by compiled matches() predicates.
	// SQLite invokes "X REGEXP Y" as regexp(Y, X), i.e. (pattern, value).
	sqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
}

// patterns caches compiled patterns; a query evaluates the same pattern once
// per candidate row.
var patterns sync.Map // string -> *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}

func regexpFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("regexp expects 2 arguments")
	}

	pattern, ok := driverValueToString(args[0])
	if !ok || pattern == "" {
		return int64(0), nil
	}
	value, ok := driverValueToString(args[1])
	if !ok {
		return int64(0), nil
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	if re.MatchString(value) {
		return int64(1), nil
	}
	return int64(0), nil
}

func driverValueToString(v driver.Value) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	default:
		return fmt.Sprint(val), true
	}
}
