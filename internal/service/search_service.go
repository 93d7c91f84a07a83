package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/internal/repository"
	"ai-doc-chat-go/pkg/embedding"
	"ai-doc-chat-go/pkg/log"
)

// SearchService finds chunks across all of a user's documents. Unlike the
// chat flow, which scores chunks in process, this goes through the search
// index and blends vector recall with keyword ranking.
type SearchService interface {
	HybridSearch(ctx context.Context, query string, topK int, userID uint) ([]model.SearchResponseDTO, error)
}

type searchService struct {
	embeddingClient embedding.Client
	esClient        *elasticsearch.Client
	docRepo         repository.DocumentRepository
	esCfg           config.ElasticsearchConfig
}

// NewSearchService creates a new SearchService instance.
func NewSearchService(embeddingClient embedding.Client, esClient *elasticsearch.Client, docRepo repository.DocumentRepository, esCfg config.ElasticsearchConfig) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		docRepo:         docRepo,
		esCfg:           esCfg,
	}
}

// HybridSearch runs a two-stage search: kNN over chunk vectors recalls
// semantically similar chunks, a BM25 rescore over the chunk text reorders
// them by keyword relevance. Results are always filtered to the caller's own
// documents.
func (s *searchService) HybridSearch(ctx context.Context, query string, topK int, userID uint) ([]model.SearchResponseDTO, error) {
	if topK <= 0 {
		topK = 10
	}
	log.Infof("[SearchService] hybrid search, query: '%s', topK: %d, user: %d", query, topK, userID)

	normalized := normalizeQuery(query)

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	recallK := topK * 10
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              recallK,
			"num_candidates": recallK,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"user_id": userID},
			},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"content": normalized,
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"user_id": userID},
				},
			},
		},
		"rescore": map[string]interface{}{
			"window_size": recallK,
			"query": map[string]interface{}{
				"rescore_query": map[string]interface{}{
					"match": map[string]interface{}{
						"content": map[string]interface{}{
							"query":    normalized,
							"operator": "and",
						},
					},
				},
				"query_weight":         0.2,
				"rescore_query_weight": 1.0,
			},
		},
		"size": topK,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.esCfg.IndexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] elasticsearch error, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.ChunkIndexDoc `json:"_source"`
				Score  float64             `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	if len(esResponse.Hits.Hits) == 0 {
		return []model.SearchResponseDTO{}, nil
	}

	unique := make(map[string]struct{})
	for _, hit := range esResponse.Hits.Hits {
		unique[hit.Source.DocumentID] = struct{}{}
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}
	titleMap, err := s.loadTitles(ids)
	if err != nil {
		return nil, err
	}

	results := make([]model.SearchResponseDTO, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		title := titleMap[hit.Source.DocumentID]
		if title == "" {
			title = "unknown document"
		}
		results = append(results, model.SearchResponseDTO{
			DocumentID: hit.Source.DocumentID,
			Title:      title,
			ChunkIndex: hit.Source.ChunkIndex,
			Content:    hit.Source.Content,
			Score:      hit.Score,
		})
	}

	log.Infof("[SearchService] hybrid search returned %d results", len(results))
	return results, nil
}

func (s *searchService) loadTitles(ids []string) (map[string]string, error) {
	docs, err := s.docRepo.FindBatchByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load document titles: %w", err)
	}

	titleMap := make(map[string]string, len(docs))
	for _, doc := range docs {
		titleMap[doc.ID] = doc.Title
	}
	return titleMap, nil
}

var (
	queryKeepRe  = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	querySpaceRe = regexp.MustCompile(`\s+`)
)

// normalizeQuery lowercases the query and strips punctuation so the keyword
// stage matches on content words. The raw query is still used for embedding.
func normalizeQuery(q string) string {
	lower := strings.ToLower(q)
	kept := queryKeepRe.ReplaceAllString(lower, " ")
	kept = strings.TrimSpace(querySpaceRe.ReplaceAllString(kept, " "))
	if kept == "" {
		return q
	}
	return kept
}
