package loader

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const webUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var (
	scriptPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]+>`)
	spacePattern  = regexp.MustCompile(`[ \t]+`)
)

type webLoader struct {
	client *http.Client
}

func newWebLoader() webLoader {
	return webLoader{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (l webLoader) Load(ctx context.Context, sources []string) ([]Document, error) {
	docs := make([]Document, 0, len(sources))
	for _, url := range sources {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create web request: %w", err)
		}
		req.Header.Set("User-Agent", webUserAgent)

		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response from %s: %w", url, err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
		}

		content := StripHTML(string(body))
		if content == "" {
			continue
		}

		docs = append(docs, Document{
			Content:  content,
			Metadata: map[string]string{"source": url},
		})
	}
	return docs, nil
}

// StripHTML reduces an HTML page to its readable text: scripts, styles and
// tags removed, entities decoded, whitespace collapsed.
func StripHTML(raw string) string {
	text := scriptPattern.ReplaceAllString(raw, " ")
	text = stylePattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = spacePattern.ReplaceAllString(strings.TrimSpace(line), " ")
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}
