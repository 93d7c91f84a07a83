// Package es provides the Elasticsearch chunk index used by hybrid search.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/pkg/log"
)

var ESClient *elasticsearch.Client

// InitES initializes the Elasticsearch client and ensures the chunk index
// exists with the configured vector dimensionality.
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	if dims <= 0 {
		dims = 1536
	}
	return createIndexIfNotExists(esCfg.IndexName, dims)
}

// createIndexIfNotExists checks whether the chunk index exists and creates
// it if not.
func createIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("failed to check whether index exists: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("index '%s' already exists", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("unexpected status code %d checking index '%s'", res.StatusCode, indexName)
		return fmt.Errorf("unexpected status code checking index: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_key": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" },
				"user_id": { "type": "long" }
			}
		}
	}`, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("failed to create index '%s': %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("Elasticsearch returned an error creating index '%s': %s", indexName, res.String())
		return errors.New("elasticsearch returned an error creating index")
	}

	log.Infof("index '%s' created successfully", indexName)
	return nil
}

// IndexChunk indexes a single embedded chunk.
func IndexChunk(ctx context.Context, indexName string, doc model.ChunkIndexDoc) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.ChunkKey,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("failed to index chunk into Elasticsearch: %s", res.String())
		return errors.New("failed to index chunk")
	}

	return nil
}

// DeleteByDocument removes every indexed chunk belonging to a document.
func DeleteByDocument(ctx context.Context, indexName, documentID string) error {
	query := fmt.Sprintf(`{"query": {"term": {"document_id": %q}}}`, documentID)
	req := esapi.DeleteByQueryRequest{
		Index: []string{indexName},
		Body:  strings.NewReader(query),
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("failed to delete document chunks from Elasticsearch: %s", res.String())
		return errors.New("failed to delete document chunks from index")
	}
	return nil
}
