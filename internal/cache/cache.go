// Package cache stores built arc-flow graphs in Redis, keyed by a digest
// of the instance they were built from.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/piwi3910/arcflow/internal/engine"
	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "arcflow:graph:"

// GraphCache keeps .afg texts in Redis.
type GraphCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a cache backed by client. Entries expire after ttl; a zero
// ttl keeps them until evicted.
func New(client *redis.Client, ttl time.Duration) *GraphCache {
	return &GraphCache{client: client, ttl: ttl}
}

// Digest returns the hex SHA-256 of the instance in its canonical text
// form. Instances that read back equal share a digest.
func Digest(inst *model.Instance) (string, error) {
	var buf bytes.Buffer
	if err := format.WriteInstance(&buf, inst); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func (c *GraphCache) makeKey(digest string) string {
	return keyPrefix + digest
}

// Get returns the cached instance and graph for digest. The boolean is
// false on a cache miss.
func (c *GraphCache) Get(ctx context.Context, digest string) (*model.Instance, *engine.Graph, bool, error) {
	data, err := c.client.Get(ctx, c.makeKey(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("failed to GET graph %s: %w", digest, err)
	}
	inst, g, err := format.ReadAFG(strings.NewReader(data))
	if err != nil {
		return nil, nil, false, fmt.Errorf("cached graph %s is corrupt: %w", digest, err)
	}
	return inst, g, true, nil
}

// Put stores the graph built from inst under digest.
func (c *GraphCache) Put(ctx context.Context, digest string, inst *model.Instance, g *engine.Graph) error {
	var buf bytes.Buffer
	if err := format.WriteAFG(&buf, inst, g); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.makeKey(digest), buf.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET graph %s: %w", digest, err)
	}
	return nil
}

// Delete removes the graph cached under digest and reports whether an
// entry was present.
func (c *GraphCache) Delete(ctx context.Context, digest string) (bool, error) {
	n, err := c.client.Del(ctx, c.makeKey(digest)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to DEL graph %s: %w", digest, err)
	}
	return n > 0, nil
}

// Ping checks the connection to Redis.
func (c *GraphCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
