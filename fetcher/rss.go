package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/mmcdole/gofeed"
	"github.com/sat8bit/machi/topic"
)

// RSSFetcher は topic.Fetcher インターフェースのRSS実装です。
// ニュースフィードの見出しを、その日のプラン生成に注入する話題として取得します。
type RSSFetcher struct {
	url   string
	limit int
}

// NewRSSFetcher は新しい RSSFetcher を生成します。
// limit は取得する記事の上限数を指定します。0以下の場合は無制限。
func NewRSSFetcher(url string, limit int) topic.Fetcher {
	return &RSSFetcher{
		url:   url,
		limit: limit,
	}
}

// Fetch は指定されたURLからRSSフィードを取得し、*topic.Topicのスライスに変換します。
func (f *RSSFetcher) Fetch(ctx context.Context) ([]*topic.Topic, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed from %s: %w", f.url, err)
	}

	// 公開日で降順にソートして最新のものを取得しやすくする
	sort.Slice(feed.Items, func(i, j int) bool {
		iTime := feed.Items[i].PublishedParsed
		jTime := feed.Items[j].PublishedParsed
		if iTime == nil || jTime == nil {
			return i < j
		}
		return iTime.After(*jTime)
	})

	var topics []*topic.Topic
	for i, item := range feed.Items {
		if f.limit > 0 && i >= f.limit {
			break
		}

		// 要約はHTMLタグを落としてから切り詰める。
		// プロンプトに長文を流し込まないための門番。
		plainTextSummary := stripHTML(item.Description)
		truncatedSummary := truncateString(plainTextSummary, 200)

		topics = append(topics, &topic.Topic{
			Title:     item.Title,
			Summary:   truncatedSummary,
			SourceURL: item.Link,
		})
	}

	return topics, nil
}

// stripHTML は文字列からHTMLタグを削除します。
var htmlRegex = regexp.MustCompile("<[^>]*>")

func stripHTML(s string) string {
	return htmlRegex.ReplaceAllString(s, "")
}

// truncateString は文字列をrune単位で指定された長さに切り詰めます。
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}
