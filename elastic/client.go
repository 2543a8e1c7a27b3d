// Package elastic provides a lazily connected Elasticsearch client with
// configurable secret management, and a promptplace.Searcher backed by it.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/letmevibethatforyou/promptplace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultIndex is the index prompts are synced into and searched from.
const DefaultIndex = "prompts"

const (
	scrollKeepAlive = time.Minute
	scrollPageSize  = 1000
)

// indexMapping mirrors the document shape written by IndexDocument.
const indexMapping = `{
  "mappings": {
    "properties": {
      "title":       {"type": "text", "analyzer": "standard"},
      "description": {"type": "text"},
      "category":    {"type": "keyword"},
      "price":       {"type": "float"},
      "sellerName":  {"type": "text"},
      "image":       {"type": "keyword"},
      "rating":      {"type": "float"}
    }
  }
}`

// Secrets holds the Elasticsearch connection settings.
type Secrets struct {
	// Node is the cluster URL.
	Node string `json:"node"`
	// APIKey is the optional base64 encoded API key.
	APIKey string `json:"api_key"`
}

// FetchSecrets is a function type that retrieves Elasticsearch credentials.
// It allows for different secret retrieval strategies (static, environment variables, etc.).
type FetchSecrets func() (Secrets, error)

// StaticSecrets returns a FetchSecrets function that provides static credentials.
func StaticSecrets(node, apiKey string) FetchSecrets {
	return func() (Secrets, error) {
		return Secrets{
			Node:   node,
			APIKey: apiKey,
		}, nil
	}
}

// EnvSecrets reads ELASTICSEARCH_NODE and the optional ELASTICSEARCH_API_KEY.
func EnvSecrets() FetchSecrets {
	return func() (Secrets, error) {
		node := os.Getenv("ELASTICSEARCH_NODE")
		if node == "" {
			return Secrets{}, fmt.Errorf("ELASTICSEARCH_NODE environment variable is not set")
		}

		return Secrets{
			Node:   node,
			APIKey: os.Getenv("ELASTICSEARCH_API_KEY"),
		}, nil
	}
}

// Document is the indexed form of a listing. The listing id is the
// document id and is not repeated in the source.
type Document struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	SellerName  string  `json:"sellerName"`
	Image       string  `json:"image"`
	Rating      float64 `json:"rating"`
}

// NewDocument converts a listing into its indexed form.
func NewDocument(r promptplace.SearchResult) Document {
	r = promptplace.Normalize(r)
	return Document{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		SellerName:  r.SellerName,
		Image:       r.Image,
		Rating:      r.Rating,
	}
}

// Result converts an indexed document back into a listing.
func (d Document) Result(id string) promptplace.SearchResult {
	return promptplace.SearchResult{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Price:       d.Price,
		SellerName:  d.SellerName,
		Image:       d.Image,
		Rating:      d.Rating,
	}
}

// Client wraps an Elasticsearch client that is built on first use.
type Client struct {
	getClient func() (*elasticsearch.Client, error)
	tracer    trace.Tracer
}

// NewClient creates a client. Secrets are fetched on the first call that
// needs the cluster, not here.
func NewClient(fetchSecrets FetchSecrets) *Client {
	getClient := sync.OnceValues(func() (*elasticsearch.Client, error) {
		secrets, err := fetchSecrets()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch secrets: %w", err)
		}

		if secrets.Node == "" {
			return nil, fmt.Errorf("node is empty")
		}

		return elasticsearch.NewClient(elasticsearch.Config{
			Addresses:    []string{secrets.Node},
			APIKey:       secrets.APIKey,
			DisableRetry: true,
		})
	})

	tracer := otel.Tracer("promptplace-elastic")

	return &Client{
		getClient: getClient,
		tracer:    tracer,
	}
}

// client returns the underlying client, reporting configuration problems as
// ErrBackendUnavailable.
func (c *Client) client() (*elasticsearch.Client, error) {
	es, err := c.getClient()
	if err != nil {
		return nil, errors.WithSecondaryError(
			promptplace.ErrBackendUnavailable,
			errors.Wrap(err, "failed to get Elasticsearch client"),
		)
	}
	return es, nil
}

// Ping is the liveness probe run before every search.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.ping")
	defer span.End()

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return err
	}

	res, err := es.Ping(es.Ping.WithContext(ctx))
	if err := checkResponse(res, err, "ping"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ping failed")
		return errors.WithSecondaryError(promptplace.ErrBackendUnavailable, err)
	}
	closeBody(res)

	span.SetStatus(codes.Ok, "cluster reachable")
	return nil
}

// EnsureIndex creates indexName with the listing mapping unless it already
// exists. It reports whether the index was created.
func (c *Client) EnsureIndex(ctx context.Context, indexName string) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.ensure_index",
		trace.WithAttributes(
			attribute.String("elasticsearch.index_name", indexName),
		),
	)
	defer span.End()

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return false, err
	}

	res, err := es.Indices.Exists([]string{indexName}, es.Indices.Exists.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check index")
		return false, fmt.Errorf("failed to check Elasticsearch index %s: %w", indexName, err)
	}
	closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		span.SetStatus(codes.Ok, "index exists")
		return false, nil
	case http.StatusNotFound:
	default:
		err := fmt.Errorf("unexpected status %s checking Elasticsearch index %s", res.Status(), indexName)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check index")
		return false, err
	}

	res, err = es.Indices.Create(indexName,
		es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		es.Indices.Create.WithContext(ctx),
	)
	if err := checkResponse(res, err, "create index"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("failed to create index %s", indexName))
		return false, fmt.Errorf("failed to create Elasticsearch index %s: %w", indexName, err)
	}
	closeBody(res)

	span.SetStatus(codes.Ok, "index created")
	return true, nil
}

// IndexDocument writes a single listing under its id.
func (c *Client) IndexDocument(ctx context.Context, indexName string, listing promptplace.SearchResult) error {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.index_document",
		trace.WithAttributes(
			attribute.String("elasticsearch.index_name", indexName),
			attribute.String("elasticsearch.document_id", listing.ID),
		),
	)
	defer span.End()

	if listing.ID == "" {
		err := errors.New("listing has no id")
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing id")
		return err
	}

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return err
	}

	body, err := json.Marshal(NewDocument(listing))
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	res, err := es.Index(indexName, bytes.NewReader(body),
		es.Index.WithDocumentID(listing.ID),
		es.Index.WithContext(ctx),
	)
	if err := checkResponse(res, err, "index document"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("failed to index document in %s", indexName))
		return fmt.Errorf("failed to index document %s in Elasticsearch index %s: %w", listing.ID, indexName, err)
	}
	closeBody(res)

	span.SetStatus(codes.Ok, "document indexed")
	return nil
}

// DeleteDocument removes a listing. Deleting a missing document is not an error.
func (c *Client) DeleteDocument(ctx context.Context, indexName, id string) error {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.delete_document",
		trace.WithAttributes(
			attribute.String("elasticsearch.index_name", indexName),
			attribute.String("elasticsearch.document_id", id),
		),
	)
	defer span.End()

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return err
	}

	res, err := es.Delete(indexName, id, es.Delete.WithContext(ctx))
	if err == nil && res.StatusCode == http.StatusNotFound {
		closeBody(res)
		span.SetStatus(codes.Ok, "document already absent")
		return nil
	}
	if err := checkResponse(res, err, "delete document"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("failed to delete document from %s", indexName))
		return fmt.Errorf("failed to delete document %s from Elasticsearch index %s: %w", id, indexName, err)
	}
	closeBody(res)

	span.SetStatus(codes.Ok, "document deleted")
	return nil
}

// BulkIndex writes many listings in one request.
func (c *Client) BulkIndex(ctx context.Context, indexName string, listings []promptplace.SearchResult) error {
	if len(listings) == 0 {
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "elasticsearch.bulk_index",
		trace.WithAttributes(
			attribute.String("elasticsearch.index_name", indexName),
			attribute.Int("elasticsearch.document_count", len(listings)),
		),
	)
	defer span.End()

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return err
	}

	body, err := bulkBody(indexName, listings)
	if err != nil {
		return err
	}

	res, err := es.Bulk(bytes.NewReader(body), es.Bulk.WithContext(ctx))
	if err := checkResponse(res, err, "bulk index"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("failed to bulk index %d documents", len(listings)))
		return fmt.Errorf("failed to bulk index into Elasticsearch index %s: %w", indexName, err)
	}
	defer closeBody(res)

	var summary struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		return errors.Wrap(err, "failed to decode bulk response")
	}
	if summary.Errors {
		var failed []string
		for _, item := range summary.Items {
			for _, op := range item {
				if op.Status >= http.StatusMultipleChoices {
					failed = append(failed, op.ID)
				}
			}
		}
		err := errors.Newf("%d of %d documents failed: %s", len(failed), len(listings), strings.Join(failed, ", "))
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial bulk failure")
		return err
	}

	span.SetStatus(codes.Ok, fmt.Sprintf("bulk indexed %d documents successfully", len(listings)))
	return nil
}

// Refresh makes recent writes visible to search.
func (c *Client) Refresh(ctx context.Context, indexName string) error {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.refresh",
		trace.WithAttributes(
			attribute.String("elasticsearch.index_name", indexName),
		),
	)
	defer span.End()

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return err
	}

	res, err := es.Indices.Refresh(
		es.Indices.Refresh.WithIndex(indexName),
		es.Indices.Refresh.WithContext(ctx),
	)
	if err := checkResponse(res, err, "refresh"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return fmt.Errorf("failed to refresh Elasticsearch index %s: %w", indexName, err)
	}
	closeBody(res)

	span.SetStatus(codes.Ok, "index refreshed")
	return nil
}

type searchHit struct {
	ID     string   `json:"_id"`
	Source Document `json:"_source"`
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Took     int64  `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// search posts body to the _search endpoint of indexName.
func (c *Client) search(ctx context.Context, indexName string, body []byte) (*searchResponse, error) {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.search",
		trace.WithAttributes(
			attribute.String("elasticsearch.index_name", indexName),
		),
	)
	defer span.End()

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return nil, err
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(indexName),
		es.Search.WithBody(bytes.NewReader(body)),
	)
	if err := checkResponse(res, err, "search"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	decoded, err := decodeSearch(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode search response")
		return nil, err
	}

	span.SetAttributes(attribute.Int("elasticsearch.hits", len(decoded.Hits.Hits)))
	span.SetStatus(codes.Ok, "")
	return decoded, nil
}

// DocumentIDs lists the id of every document in indexName, paging through
// a scroll.
func (c *Client) DocumentIDs(ctx context.Context, indexName string) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "elasticsearch.document_ids",
		trace.WithAttributes(
			attribute.String("elasticsearch.index_name", indexName),
		),
	)
	defer span.End()

	es, err := c.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return nil, err
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(indexName),
		es.Search.WithScroll(scrollKeepAlive),
		es.Search.WithSize(scrollPageSize),
		es.Search.WithSource("false"),
		es.Search.WithBody(strings.NewReader(`{"query":{"match_all":{}}}`)),
	)
	if err := checkResponse(res, err, "list documents"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list documents")
		return nil, fmt.Errorf("failed to list documents in Elasticsearch index %s: %w", indexName, err)
	}
	page, err := decodeSearch(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode scroll page")
		return nil, err
	}

	scrollID := page.ScrollID
	defer func() { c.clearScroll(ctx, es, scrollID) }()

	var ids []string
	for len(page.Hits.Hits) > 0 {
		for _, hit := range page.Hits.Hits {
			ids = append(ids, hit.ID)
		}
		if scrollID == "" {
			break
		}

		res, err := es.Scroll(
			es.Scroll.WithContext(ctx),
			es.Scroll.WithScrollID(scrollID),
			es.Scroll.WithScroll(scrollKeepAlive),
		)
		if err := checkResponse(res, err, "scroll"); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scroll failed")
			return nil, fmt.Errorf("failed to scroll Elasticsearch index %s: %w", indexName, err)
		}
		if page, err = decodeSearch(res); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode scroll page")
			return nil, err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}

	span.SetAttributes(attribute.Int("elasticsearch.document_count", len(ids)))
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// clearScroll releases a scroll context. Failures only shorten its life to
// the keep-alive.
func (c *Client) clearScroll(ctx context.Context, es *elasticsearch.Client, scrollID string) {
	if scrollID == "" {
		return
	}
	body, err := json.Marshal(map[string][]string{"scroll_id": {scrollID}})
	if err != nil {
		return
	}
	res, err := es.ClearScroll(
		es.ClearScroll.WithContext(context.WithoutCancel(ctx)),
		es.ClearScroll.WithBody(bytes.NewReader(body)),
	)
	if checkResponse(res, err, "clear scroll") == nil {
		closeBody(res)
	}
}

// decodeSearch reads and closes a successful search or scroll response.
func decodeSearch(res *esapi.Response) (*searchResponse, error) {
	defer closeBody(res)
	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode search response")
	}
	return &decoded, nil
}

// closeBody drains and closes a response body so its connection goes back
// to the pool.
func closeBody(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

// checkResponse folds transport errors and error statuses into one error.
// On error the response body is closed; on success the caller must close
// it with closeBody.
func checkResponse(res *esapi.Response, err error, op string) error {
	if err != nil {
		return errors.Wrapf(err, "elasticsearch %s", op)
	}
	if !res.IsError() {
		return nil
	}
	defer res.Body.Close()

	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(res.Body)
	if json.Unmarshal(raw, &e) == nil && e.Error.Type != "" {
		return errors.Newf("elasticsearch %s: %s: %s: %s", op, res.Status(), e.Error.Type, e.Error.Reason)
	}
	return errors.Newf("elasticsearch %s: %s", op, res.Status())
}

// bulkBody renders the NDJSON payload of a bulk index request.
func bulkBody(indexName string, listings []promptplace.SearchResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, listing := range listings {
		if listing.ID == "" {
			return nil, errors.Newf("listing %q has no id", listing.Title)
		}
		meta := map[string]map[string]string{
			"index": {"_index": indexName, "_id": listing.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, errors.Wrap(err, "failed to encode bulk metadata")
		}
		if err := enc.Encode(NewDocument(listing)); err != nil {
			return nil, errors.Wrap(err, "failed to encode bulk document")
		}
	}
	return buf.Bytes(), nil
}
