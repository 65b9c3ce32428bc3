// Package graphdb publishes workspace graphs to Memgraph/Neo4j over Bolt
package graphdb

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// Config holds graph database connection settings
type Config struct {
	// Scheme is the Bolt URI scheme: bolt, bolt+s, neo4j or neo4j+s. Empty means bolt.
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
	// Database selects a named database. Memgraph ignores it.
	Database    string
	MaxPoolSize int
}

// URI renders the driver target
func (c Config) URI() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "bolt"
	}
	if c.Port == 0 {
		return fmt.Sprintf("%s://%s", scheme, c.Host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func (c Config) auth() neo4j.AuthToken {
	if c.Username == "" {
		return neo4j.NoAuth()
	}
	return neo4j.BasicAuth(c.Username, c.Password, "")
}

// Client owns one Bolt driver and opens a session per transaction
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   ectologger.Logger
}

// NewClient creates the driver. No connection is made until first use or Ping.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI(), cfg.auth(), func(dc *config.Config) {
		if cfg.MaxPoolSize > 0 {
			dc.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
	})
	if err != nil {
		return nil, fmt.Errorf("graph driver for %s: %w", cfg.URI(), err)
	}
	return &Client{driver: driver, database: cfg.Database, logger: logger}, nil
}

// Ping checks that the server answers
func (c *Client) Ping(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Graph database unreachable")
		return err
	}
	return nil
}

// Close releases every pooled connection
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// ExecuteWrite runs work in a managed write transaction. The driver retries transient failures.
func (c *Client) ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	ctx, span := tracing.StartSpan(ctx, "graphdb.Client.ExecuteWrite")
	defer span.End()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	defer func() {
		if err := session.Close(ctx); err != nil {
			c.logger.WithContext(ctx).WithError(err).Debug("Graph session close failed")
		}
	}()
	return session.ExecuteWrite(ctx, work)
}
