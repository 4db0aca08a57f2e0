//go:build integration

// Package testutils provides helpers shared by integration tests.
package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/elasticsearch"
)

const (
	// ElasticsearchImage is the image used by integration tests.
	ElasticsearchImage = "docker.elastic.co/elasticsearch/elasticsearch:8.11.0"
	// ElasticsearchPassword is the password of the elastic user.
	ElasticsearchPassword = "changeme"
	// DefaultElasticsearchStartupTimeout bounds container startup.
	DefaultElasticsearchStartupTimeout = 2 * time.Minute
)

// ElasticsearchContainer manages a test Elasticsearch instance.
type ElasticsearchContainer struct {
	Container *elasticsearch.ElasticsearchContainer
	Address   string
	Username  string
	Password  string
	CACert    []byte
}

// StartElasticsearch starts an Elasticsearch container. Stop it with Stop.
func StartElasticsearch(ctx context.Context) (*ElasticsearchContainer, error) {
	startCtx, cancel := context.WithTimeout(ctx, DefaultElasticsearchStartupTimeout)
	defer cancel()

	esContainer, err := elasticsearch.Run(startCtx, ElasticsearchImage,
		elasticsearch.WithPassword(ElasticsearchPassword),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Elasticsearch container: %w", err)
	}

	return &ElasticsearchContainer{
		Container: esContainer,
		Address:   esContainer.Settings.Address,
		Username:  "elastic",
		Password:  esContainer.Settings.Password,
		CACert:    esContainer.Settings.CACert,
	}, nil
}

// Stop stops and removes the container.
func (e *ElasticsearchContainer) Stop(ctx context.Context) error {
	if e.Container == nil {
		return nil
	}
	return testcontainers.TerminateContainer(e.Container, testcontainers.StopContext(ctx))
}
