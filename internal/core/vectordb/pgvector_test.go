package vectordb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchQueryPushesThresholdIntoPredicate(t *testing.T) {
	q := searchQuery(`1 - (embedding <=> $2)`, true)

	// The threshold must gate rows before LIMIT, not after: a page of limit
	// rows is a page of qualifying rows.
	assert.Contains(t, q, `AND 1 - (embedding <=> $2) >= $3`)
	assert.Contains(t, q, "LIMIT $4")
	assert.Less(t, strings.Index(q, ">= $3"), strings.Index(q, "ORDER BY"))
}

func TestSearchQueryWithoutThreshold(t *testing.T) {
	q := searchQuery(`-(embedding <-> $2)`, false)

	assert.NotContains(t, q, ">=")
	assert.Contains(t, q, "LIMIT $3")
}
