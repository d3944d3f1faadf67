package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPingWithoutPool(t *testing.T) {
	assert.Error(t, (&Postgres{}).Ping(context.Background()))

	var pg *Postgres
	assert.Error(t, pg.Ping(context.Background()))
}
