package logger

import (
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"tradedesk/internal/pkg/jsonutil"
)

var (
	payloadMu     sync.Mutex
	payloadLog    *log.Logger
	payloadEnable bool
)

// SetPayloadWriter sets the destination for raw endpoint bodies. nil disables it.
func SetPayloadWriter(w io.Writer) {
	payloadMu.Lock()
	defer payloadMu.Unlock()
	if w == nil {
		payloadLog = nil
		return
	}
	payloadLog = log.New(w, "", log.LstdFlags)
}

func EnablePayloadDump(enabled bool) {
	payloadMu.Lock()
	payloadEnable = enabled
	payloadMu.Unlock()
}

// LogPayload records the raw body returned for an endpoint.
func LogPayload(endpoint string, status int, body []byte) {
	payloadMu.Lock()
	l := payloadLog
	enabled := payloadEnable
	payloadMu.Unlock()
	if l == nil || !enabled {
		return
	}
	var b strings.Builder
	b.WriteString("[PAYLOAD][")
	b.WriteString(endpoint)
	b.WriteString("][")
	b.WriteString(statusText(status))
	b.WriteString("]\n")
	text := jsonutil.Pretty(body)
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func statusText(status int) string {
	if status <= 0 {
		return "-"
	}
	return strconv.Itoa(status)
}
