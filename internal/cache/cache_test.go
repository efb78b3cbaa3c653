package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/piwi3910/arcflow/internal/engine"
	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*GraphCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, ttl), mr
}

func sampleGraph(t *testing.T, input string) (*model.Instance, *engine.Graph) {
	t.Helper()
	inst, err := format.ReadInstance(strings.NewReader(input), format.VBP)
	require.NoError(t, err)
	g, err := engine.Build(inst)
	require.NoError(t, err)
	return inst, g
}

func TestDigest_Stable(t *testing.T) {
	a, _ := sampleGraph(t, "1 10 2 3 4 5 2")
	b, _ := sampleGraph(t, "NDIMS: 1\nW: 10\nM: 2\n3 4\n5 2\n")
	c, _ := sampleGraph(t, "1 10 2 3 4 5 3")

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	dc, err := Digest(c)
	require.NoError(t, err)

	assert.Len(t, da, 64)
	assert.Equal(t, da, db)
	assert.NotEqual(t, da, dc)
}

func TestGraphCache_PutGet(t *testing.T) {
	c, _ := newTestCache(t, 0)
	ctx := context.Background()
	inst, g := sampleGraph(t, "1 10 2 3 4 5 2")
	digest, err := Digest(inst)
	require.NoError(t, err)

	_, _, ok, err := c.Get(ctx, digest)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, digest, inst, g))

	inst2, g2, ok, err := c.Get(ctx, digest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, inst, inst2)
	assert.Equal(t, g.Arcs, g2.Arcs)
	assert.Equal(t, g.Ts, g2.Ts)
	assert.Equal(t, g.NV, g2.NV)
}

func TestGraphCache_TTL(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	inst, g := sampleGraph(t, "1 10 1 3 4")
	digest, err := Digest(inst)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, digest, inst, g))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+digest))

	mr.FastForward(2 * time.Minute)
	_, _, ok, err := c.Get(ctx, digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGraphCache_Corrupt(t *testing.T) {
	c, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set(keyPrefix+"bad", "not a graph"))

	_, _, ok, err := c.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestGraphCache_Delete(t *testing.T) {
	c, mr := newTestCache(t, 0)
	ctx := context.Background()
	inst, g := sampleGraph(t, "1 10 1 3 4")
	digest, err := Digest(inst)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, digest, inst, g))
	removed, err := c.Delete(ctx, digest)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, mr.Exists(keyPrefix+digest))

	removed, err = c.Delete(ctx, digest)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGraphCache_Unavailable(t *testing.T) {
	c, mr := newTestCache(t, 0)
	mr.Close()

	assert.Error(t, c.Ping(context.Background()))
	_, _, _, err := c.Get(context.Background(), "x")
	assert.Error(t, err)
}
