package aggregator

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key derives a request key from the url and the JSON form of payload.
// Payloads that cannot be marshalled hash by url alone.
func Key(url string, payload any) string {
	d := xxhash.New()
	_, _ = d.WriteString(url)
	_, _ = d.WriteString("\x00")
	if raw, err := json.Marshal(payload); err == nil {
		_, _ = d.Write(raw)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
