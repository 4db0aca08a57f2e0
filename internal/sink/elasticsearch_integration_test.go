//go:build integration

package sink_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sink"
	"github.com/jonesrussell/north-cloud/notice-crawler/testutils"
)

func TestIntegration_ElasticsearchSink(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	esContainer, err := testutils.StartElasticsearch(ctx)
	require.NoError(t, err, "failed to start Elasticsearch container")
	defer func() {
		_ = esContainer.Stop(ctx)
	}()

	client, err := sink.NewElasticsearchClient(ctx, sink.ElasticsearchConfig{
		URL:      esContainer.Address,
		Username: esContainer.Username,
		Password: esContainer.Password,
		CACert:   esContainer.CACert,
	}, logger.NewNop())
	require.NoError(t, err, "failed to create Elasticsearch client")

	const index = "notice_crawl_items_it"
	s := sink.NewElasticsearchSink(client, index, logger.NewNop())

	require.NoError(t, s.EnsureIndex(ctx))
	require.NoError(t, s.EnsureIndex(ctx), "EnsureIndex must be idempotent")

	item := testItem()
	require.NoError(t, s.Emit(ctx, item))

	item.Title = "更新后的标题"
	require.NoError(t, s.Emit(ctx, item), "re-emitting the same id must overwrite")

	res, err := client.Get(index, item.ID, client.Get.WithContext(ctx))
	require.NoError(t, err)
	defer res.Body.Close()
	require.False(t, res.IsError(), res.String())

	var doc struct {
		Source struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"_source"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&doc))
	assert.Equal(t, item.ID, doc.Source.ID)
	assert.Equal(t, "更新后的标题", doc.Source.Title)
	assert.Equal(t, item.Content, doc.Source.Content)

	countRes, err := client.Count(client.Count.WithIndex(index), client.Count.WithContext(ctx))
	require.NoError(t, err)
	defer countRes.Body.Close()

	var count struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(countRes.Body).Decode(&count))
	assert.Equal(t, 1, count.Count)
}
