package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/logger"
	"github.com/terra-graph/newsgraph/pkg/state"
	"github.com/terra-graph/newsgraph/pkg/store"
)

// NewsNamespace scopes the news pipeline's state keys.
const NewsNamespace = "news"

const (
	defaultNewsInterval   = 24 * time.Hour
	newsFetchFailureDelay = 60 * time.Second
	newsPageSize          = 100
	quotaHeader           = "X-API-Quota-Left"
	publishDateLayout     = "2006-01-02 15:04:05"
)

// IngestPublisher triggers asynchronous ingestion of unprocessed articles.
type IngestPublisher interface {
	PublishIngest(ctx context.Context, correlationID string) error
}

// NewsPipeline fetches the article window since the last run from the news
// API, stores the articles and triggers ingestion.
type NewsPipeline struct {
	fetcher   *Fetcher
	articles  store.ArticleStore
	state     state.Store
	publisher IngestPublisher
	apiURL    string
	apiKey    string
	sources   []string
	interval  time.Duration
}

// NewsPipelineParams configures a NewsPipeline. A zero Interval falls back
// to 24 hours.
type NewsPipelineParams struct {
	Fetcher   *Fetcher
	Articles  store.ArticleStore
	State     state.Store
	Publisher IngestPublisher
	APIURL    string
	APIKey    string
	Sources   []string
	Interval  time.Duration
}

// NewNewsPipeline creates a NewsPipeline.
func NewNewsPipeline(params NewsPipelineParams) *NewsPipeline {
	if params.Interval <= 0 {
		params.Interval = defaultNewsInterval
	}
	return &NewsPipeline{
		fetcher:   params.Fetcher,
		articles:  params.Articles,
		state:     params.State,
		publisher: params.Publisher,
		apiURL:    params.APIURL,
		apiKey:    params.APIKey,
		sources:   params.Sources,
		interval:  params.Interval,
	}
}

func (p *NewsPipeline) Namespace() string {
	return NewsNamespace
}

// Run fetches articles published since the last run, inserts them and
// publishes an ingest trigger. A fetch failure schedules a short retry
// instead of burning the daily window.
func (p *NewsPipeline) Run(ctx context.Context) (time.Time, error) {
	now := time.Now().UTC()
	lastFetch, err := p.lastFetch(ctx, now)
	if err != nil {
		return time.Time{}, err
	}

	articles, err := p.fetchWindow(ctx, lastFetch, now)
	if err != nil {
		return now.Add(newsFetchFailureDelay), fmt.Errorf("fetch news window: %w", err)
	}
	logger.Info("[News] fetched articles", "count", len(articles),
		"from", lastFetch.Format(time.RFC3339), "to", now.Format(time.RFC3339))

	if len(articles) > 0 {
		inserted, err := p.articles.InsertArticles(ctx, articles)
		if err != nil {
			return time.Time{}, fmt.Errorf("insert articles: %w", err)
		}
		logger.Info("[News] stored articles", "fetched", len(articles), "inserted", inserted)

		correlationID, err := gonanoid.New()
		if err != nil {
			return time.Time{}, fmt.Errorf("generate correlation id: %w", err)
		}
		if err := p.publisher.PublishIngest(ctx, correlationID); err != nil {
			return time.Time{}, fmt.Errorf("publish ingest trigger: %w", err)
		}
		logger.Info("[News] ingest triggered", "correlation_id", correlationID)
	}

	// the cursor moves only once the window's articles are safely stored,
	// so a failed insert or publish leaves the window to be refetched
	if err := p.state.Save(ctx, NewsNamespace, "last_fetch", now.Format(time.RFC3339), 0); err != nil {
		return time.Time{}, fmt.Errorf("save last_fetch: %w", err)
	}

	return now.Add(p.interval), nil
}

// lastFetch returns the start of the fetch window, defaulting to one
// interval back when the pipeline has never run.
func (p *NewsPipeline) lastFetch(ctx context.Context, now time.Time) (time.Time, error) {
	value, err := p.state.Get(ctx, NewsNamespace, "last_fetch")
	if err != nil {
		return time.Time{}, fmt.Errorf("read last_fetch: %w", err)
	}
	if value == "" {
		return now.Add(-p.interval), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last_fetch %q: %w", value, err)
	}
	return t, nil
}

// fetchWindow pages through the search endpoint until every available
// article is retrieved or the API quota runs out. The offset and the
// available check count raw items as the API delivers them; deduplication by
// id happens on top, since the API occasionally repeats items across pages.
func (p *NewsPipeline) fetchWindow(ctx context.Context, from, to time.Time) ([]common.Article, error) {
	var articles []common.Article
	seen := make(map[string]bool)
	fetched := 0

	for {
		body, header, err := p.fetcher.Fetch(ctx, p.apiURL, http.MethodGet,
			WithQuery("api-key", p.apiKey),
			WithQuery("language", "en"),
			WithQuery("earliest-publish-date", from.Format(publishDateLayout)),
			WithQuery("latest-publish-date", to.Format(publishDateLayout)),
			WithQuery("sort", "publish-time"),
			WithQuery("sort-direction", "DESC"),
			WithQuery("news-sources", strings.Join(p.sources, ",")),
			WithQuery("number", fmt.Sprint(newsPageSize)),
			WithQuery("offset", fmt.Sprint(fetched)),
		)
		if err != nil {
			return nil, err
		}

		var response newsAPIResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("decode news response: %w", err)
		}

		fetched += len(response.News)
		added := 0
		for _, item := range response.News {
			article := item.toArticle()
			if article.ItemID == "" || seen[article.ItemID] {
				continue
			}
			seen[article.ItemID] = true
			articles = append(articles, article)
			added++
		}

		if response.Available <= fetched || len(response.News) == 0 {
			break
		}
		// a page of nothing but repeats means the API is cycling
		if added == 0 {
			logger.Warn("[News] page contained no new items, stopping pagination",
				"fetched", fetched, "available", response.Available)
			break
		}
		if header.Get(quotaHeader) == "0" {
			logger.Warn("[News] API quota exhausted, stopping pagination",
				"retrieved", len(articles), "available", response.Available)
			break
		}
	}

	return articles, nil
}

type newsAPIResponse struct {
	Offset    int          `json:"offset"`
	Number    int          `json:"number"`
	Available int          `json:"available"`
	News      []newsAPIItem `json:"news"`
}

// newsAPIItem is one article as the API returns it. The body arrives under
// "text" and the id is numeric.
type newsAPIItem struct {
	ID            json.Number `json:"id"`
	Title         string      `json:"title"`
	Text          string      `json:"text"`
	Summary       string      `json:"summary"`
	URL           string      `json:"url"`
	Image         string      `json:"image"`
	Video         string      `json:"video"`
	PublishDate   string      `json:"publish_date"`
	Author        string      `json:"author"`
	Authors       []string    `json:"authors"`
	Category      string      `json:"category"`
	Language      string      `json:"language"`
	SourceCountry string      `json:"source_country"`
	Sentiment     float64     `json:"sentiment"`
}

func (i newsAPIItem) toArticle() common.Article {
	publishDate, err := time.Parse(publishDateLayout, i.PublishDate)
	if err != nil {
		publishDate, _ = time.Parse(time.RFC3339, i.PublishDate)
	}
	return common.Article{
		ItemID:        i.ID.String(),
		Title:         i.Title,
		Content:       i.Text,
		Summary:       i.Summary,
		URL:           i.URL,
		Image:         i.Image,
		Video:         i.Video,
		PublishDate:   publishDate,
		Author:        i.Author,
		Authors:       i.Authors,
		Category:      i.Category,
		Language:      i.Language,
		SourceCountry: i.SourceCountry,
		Sentiment:     i.Sentiment,
	}
}
