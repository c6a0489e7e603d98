package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dushixiang/flux/internal/config"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// NewsItem 一条市场新闻
type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

// NewsService 新闻上下文服务，从配置的JSON源拉取最近的市场新闻
type NewsService struct {
	logger  *zap.Logger
	feedURL string
	client  *http.Client
}

func NewNewsService(logger *zap.Logger, conf *config.Config) *NewsService {
	return &NewsService{
		logger:  logger,
		feedURL: conf.News.FeedURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchLatest 拉取最近的新闻条目，未配置新闻源时返回空
func (s *NewsService) FetchLatest(ctx context.Context, limit int) ([]NewsItem, error) {
	if s.feedURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read news feed: %w", err)
	}

	// 兼容裸数组和 {"items": [...]} 两种格式
	items := gjson.GetBytes(body, "items")
	if !items.Exists() {
		items = gjson.ParseBytes(body)
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("unexpected news feed format")
	}

	result := make([]NewsItem, 0, limit)
	for _, item := range items.Array() {
		if len(result) >= limit {
			break
		}
		title := item.Get("title").String()
		if title == "" {
			continue
		}
		result = append(result, NewsItem{
			Title:       title,
			Source:      item.Get("source").String(),
			PublishedAt: item.Get("published_at").String(),
		})
	}

	return result, nil
}
