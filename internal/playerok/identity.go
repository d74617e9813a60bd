package playerok

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// Identity is the spoofed browser fingerprint attached to every request:
// randomized headers plus the browser profile the TLS layer impersonates.
// The bot-detection middleware in front of the API keys on these, so a
// blocked identity is regenerated wholesale rather than retried.
type Identity struct {
	Headers     map[string]string
	Impersonate string
}

var impersonateProfiles = []string{"chrome116", "chrome119"}

// NewIdentity generates a fresh fingerprint.
func NewIdentity() Identity {
	return Identity{
		Headers:     generateHeaders(),
		Impersonate: gofakeit.RandomString(impersonateProfiles),
	}
}

func generateHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                   gofakeit.UserAgent(),
		"Accept":                       "*/*",
		"Accept-Language":              gofakeit.LanguageBCP(),
		"Accept-Encoding":              "gzip, deflate, br, zstd",
		"Content-Type":                 "application/json",
		"Apollo-Require-Preflight":     fmt.Sprintf("%t", gofakeit.Bool()),
		"Access-Control-Allow-Headers": "sentry-trace, baggage",
		"Apollographql-Client-Name":    gofakeit.RandomString([]string{"web", "mobile", "desktop"}),
		"X-Timezone-Offset":            fmt.Sprintf("%d", gofakeit.Number(-720, 720)),
		"Sentry-Trace":                 fmt.Sprintf("%s-%s-0", uuid.New(), uuid.New()),
		"Baggage":                      generateBaggage(),
		"Origin":                       "https://playerok.com",
		"DNT":                          fmt.Sprintf("%d", gofakeit.Number(0, 1)),
		"Referer":                      gofakeit.URL(),
		"Sec-GPC":                      fmt.Sprintf("%d", gofakeit.Number(0, 1)),
		"Connection":                   "keep-alive",
		"Sec-Fetch-Dest":               gofakeit.RandomString([]string{"document", "embed", "empty", "object", "iframe", "audio", "video", "track", "report"}),
		"Sec-Fetch-Mode":               gofakeit.RandomString([]string{"navigate", "no-cors", "same-origin", "cors"}),
		"Sec-Fetch-Site":               gofakeit.RandomString([]string{"cross-site", "same-origin", "same-site", "none"}),
	}
}

// generateBaggage builds a plausible sentry baggage header.
func generateBaggage() string {
	release := hexString(12)
	publicKey := hexString(40)
	environment := gofakeit.RandomString([]string{"production", "staging", "development"})
	transaction := strings.Join([]string{
		gofakeit.RandomString([]string{"profile", "search", "chat"}),
		gofakeit.RandomString([]string{"products", "item", "user"}),
		gofakeit.RandomString([]string{"products", "item", "user"}),
	}, "/")
	sampleRate := gofakeit.Float64Range(0, 100)

	return fmt.Sprintf(
		"sentry-environment=%s,sentry-release=%s,sentry-public_key=%s,sentry-trace_id=%s,sentry-sample_rate=%.4f,sentry-transaction=%s,sentry-sampled=%t",
		environment, release, publicKey, uuid.New(), sampleRate, transaction, gofakeit.Bool(),
	)
}

func hexString(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:n]
}
