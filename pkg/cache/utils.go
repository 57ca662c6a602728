package cache

import (
	"fmt"
	"strings"
)

// GenerateKeyWithParams joins a prefix and parameters into a
// colon-separated cache key, e.g. "signals:BTCUSDT:1h".
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
