package pgx

import (
	"context"
	"fmt"

	"github.com/terra-graph/newsgraph/pkg/common"
)

const insertArticleSQL = `
INSERT INTO news_items (
	item_id, title, content, summary, url, image, video,
	publish_date, author, authors, category, language, source_country, sentiment
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (item_id) DO NOTHING;`

const selectUnprocessedSQL = `
SELECT item_id, title, content, summary, url, image, video,
	publish_date, author, authors, category, language, source_country, sentiment
FROM news_items
WHERE batch_id IS NULL
ORDER BY publish_date ASC
LIMIT $1;`

const markProcessedSQL = `
UPDATE news_items SET batch_id = $2 WHERE item_id = $1;`

func (s *Store) InsertArticles(ctx context.Context, articles []common.Article) (int, error) {
	inserted := 0
	for _, a := range articles {
		tag, err := s.conn.Exec(ctx, insertArticleSQL,
			a.ItemID, a.Title, a.Content, a.Summary, a.URL, a.Image, a.Video,
			a.PublishDate, a.Author, a.Authors, a.Category, a.Language, a.SourceCountry, a.Sentiment,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert article %s: %w", a.ItemID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *Store) UnprocessedArticles(ctx context.Context, limit int) ([]common.Article, error) {
	rows, err := s.conn.Query(ctx, selectUnprocessedSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []common.Article
	for rows.Next() {
		var a common.Article
		err := rows.Scan(
			&a.ItemID, &a.Title, &a.Content, &a.Summary, &a.URL, &a.Image, &a.Video,
			&a.PublishDate, &a.Author, &a.Authors, &a.Category, &a.Language, &a.SourceCountry, &a.Sentiment,
		)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *Store) MarkProcessed(ctx context.Context, itemID string, batchID string) error {
	tag, err := s.conn.Exec(ctx, markProcessedSQL, itemID, batchID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %s not found", itemID)
	}
	return nil
}
